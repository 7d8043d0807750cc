package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/metrics"
)

const minioBackend = "minio"

// ErrEmptyObject is returned when asked to store a zero-length image
var ErrEmptyObject = errors.New("image payload is empty")

// MinIOStorage hosts report images in an S3-compatible bucket
type MinIOStorage struct {
	client         *minio.Client
	bucketName     string
	endpoint       string
	publicEndpoint string
	now            func() time.Time
}

// MinIOConfig locates the bucket that hosts report images
type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	// PublicRead grants anonymous GetObject on a bucket created at startup.
	// Leave it off when a proxy or CDN serves PublicEndpoint.
	PublicRead bool
}

// NewMinIOStorage creates the client and makes sure the bucket exists.
// Bootstrap failures are logged; uploads will surface them later.
func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinIOStorage{
		client:         client,
		bucketName:     cfg.Bucket,
		endpoint:       cfg.Endpoint,
		publicEndpoint: cleanEndpoint(cfg.PublicEndpoint, cfg.Endpoint),
		now:            time.Now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.ensureBucket(ctx, cfg.PublicRead); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("MinIO bucket bootstrap incomplete")
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("public_endpoint", s.publicEndpoint).
		Str("bucket", cfg.Bucket).
		Bool("public_read", cfg.PublicRead).
		Msg("MinIO storage initialized")

	return s, nil
}

// ensureBucket creates the bucket when missing. An existing bucket keeps
// whatever policy its owner gave it.
func (s *MinIOStorage) ensureBucket(ctx context.Context, publicRead bool) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	log.Info().Str("bucket", s.bucketName).Msg("Bucket created")

	if !publicRead {
		return nil
	}
	policy, err := publicReadPolicy(s.bucketName)
	if err != nil {
		return err
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucketName, policy); err != nil {
		return fmt.Errorf("set public read policy: %w", err)
	}
	return nil
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy allows anonymous downloads of every object in bucket
func publicReadPolicy(bucket string) (string, error) {
	doc, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encode bucket policy: %w", err)
	}
	return string(doc), nil
}

// Upload stores payload under a fresh key and returns its public URL.
// preset selects the key prefix.
func (s *MinIOStorage) Upload(ctx context.Context, payload []byte, filename, contentType, preset string) (string, error) {
	start := time.Now()
	if len(payload) == 0 {
		metrics.RecordMediaUpload(minioBackend, "invalid", time.Since(start))
		return "", ErrEmptyObject
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := objectKey(preset, filename, s.now(), uuid.New())

	_, err := s.client.PutObject(
		ctx,
		s.bucketName,
		key,
		bytes.NewReader(payload),
		int64(len(payload)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		metrics.RecordMediaUpload(minioBackend, "failed", time.Since(start))
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	publicURL := s.GetImageURL(key)
	metrics.RecordMediaUpload(minioBackend, "ok", time.Since(start))

	log.Info().
		Str("filename", filename).
		Str("key", key).
		Str("url", publicURL).
		Msg("Image uploaded successfully")

	return publicURL, nil
}

// GetImageURL returns the public URL for an image
func (s *MinIOStorage) GetImageURL(key string) string {
	return publicObjectURL(s.publicEndpoint, s.bucketName, key)
}

// HealthCheck verifies the MinIO connection
func (s *MinIOStorage) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket '%s' does not exist", s.bucketName)
	}
	return nil
}

func objectKey(preset, filename string, now time.Time, id uuid.UUID) string {
	prefix := strings.Trim(preset, "/ ")
	if prefix == "" {
		prefix = "reports"
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, now.UTC().Format("2006-01-02"), id.String(), strings.ToLower(filepath.Ext(filename)))
}

// cleanEndpoint strips quotes, whitespace and trailing slashes that tend to
// sneak in from .env files. An empty public endpoint falls back to endpoint.
func cleanEndpoint(public, endpoint string) string {
	if strings.TrimSpace(public) == "" {
		public = endpoint
	}
	public = strings.TrimSpace(public)
	public = strings.Trim(public, `"'= `)
	return strings.TrimSuffix(public, "/")
}

// publicObjectURL forces https unless the endpoint already carries a scheme
func publicObjectURL(endpoint, bucket, key string) string {
	if strings.Contains(endpoint, "://") {
		return fmt.Sprintf("%s/%s/%s", endpoint, bucket, key)
	}
	return fmt.Sprintf("https://%s/%s/%s", endpoint, bucket, key)
}
