package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/metrics"
)

const (
	// DefaultCloudinaryAPIURL is the base of the upload API; the cloud name is appended
	DefaultCloudinaryAPIURL = "https://api.cloudinary.com/v1_1"
	// DefaultCDNHost serves delivered and transformed assets
	DefaultCDNHost = "res.cloudinary.com"

	cloudinaryBackend = "cloudinary"
	maxResponseBytes  = 1 << 20
)

// CloudinaryClient relays images to the Cloudinary unsigned upload API
type CloudinaryClient struct {
	cloudName string
	uploadURL string
	cdnHost   string
	client    *http.Client
}

// NewCloudinaryClient creates a new upload client.
// A zero timeout falls back to 30 seconds.
func NewCloudinaryClient(cloudName, apiURL, cdnHost string, timeout time.Duration) *CloudinaryClient {
	if apiURL == "" {
		apiURL = DefaultCloudinaryAPIURL
	}
	if cdnHost == "" {
		cdnHost = DefaultCDNHost
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CloudinaryClient{
		cloudName: cloudName,
		uploadURL: fmt.Sprintf("%s/%s/image/upload", strings.TrimSuffix(apiURL, "/"), cloudName),
		cdnHost:   cdnHost,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// uploadResponse holds the only field of the upload answer we care about
type uploadResponse struct {
	SecureURL *string `json:"secure_url"`
}

// Upload sends payload as a single file part plus the upload preset and
// returns the secure URL of the created asset.
func (c *CloudinaryClient) Upload(ctx context.Context, payload []byte, filename, contentType, preset string) (string, error) {
	start := time.Now()

	if len(payload) == 0 {
		metrics.RecordMediaUpload(cloudinaryBackend, "invalid", time.Since(start))
		return "", ErrInvalidInput
	}

	boundary, err := newBoundary(payload)
	if err != nil {
		metrics.RecordMediaUpload(cloudinaryBackend, "invalid", time.Since(start))
		return "", &UploadFailedError{Err: err}
	}
	body := buildMultipart(boundary, payload, filename, contentType, preset)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(body))
	if err != nil {
		metrics.RecordMediaUpload(cloudinaryBackend, "failed", time.Since(start))
		return "", &UploadFailedError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordMediaUpload(cloudinaryBackend, "failed", time.Since(start))
		return "", &UploadFailedError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RecordMediaUpload(cloudinaryBackend, "failed", time.Since(start))
		return "", &UploadFailedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("Cloudinary upload returned error")
		metrics.RecordMediaUpload(cloudinaryBackend, "failed", time.Since(start))
		return "", &UploadFailedError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	secureURL, err := parseSecureURL(respBody)
	if err != nil {
		log.Error().Err(err).Str("body", string(respBody)).Msg("Cloudinary upload response not understood")
		metrics.RecordMediaUpload(cloudinaryBackend, "parse_error", time.Since(start))
		return "", err
	}

	metrics.RecordMediaUpload(cloudinaryBackend, "ok", time.Since(start))
	log.Info().
		Str("filename", filename).
		Int("size", len(payload)).
		Str("url", secureURL).
		Msg("Image uploaded to Cloudinary")

	return secureURL, nil
}

// parseSecureURL decodes the upload answer and returns its secure_url,
// which must be an absolute URL.
func parseSecureURL(body []byte) (string, error) {
	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &UploadParseError{Body: string(body), Err: err}
	}
	if parsed.SecureURL == nil || *parsed.SecureURL == "" {
		return "", &UploadParseError{Body: string(body)}
	}

	u, err := url.Parse(*parsed.SecureURL)
	if err != nil {
		return "", &UploadParseError{Body: string(body), Err: err}
	}
	if !u.IsAbs() || u.Host == "" {
		return "", &UploadParseError{Body: string(body), Err: fmt.Errorf("secure_url %q is not an absolute URL", *parsed.SecureURL)}
	}
	return *parsed.SecureURL, nil
}

// ResizedURL returns the CDN URL of publicID scaled to width x height for this cloud
func (c *CloudinaryClient) ResizedURL(publicID string, width, height int) string {
	return resizedURL(c.cdnHost, c.cloudName, publicID, width, height)
}

// HealthCheck verifies the client is configured
func (c *CloudinaryClient) HealthCheck(ctx context.Context) error {
	if c.cloudName == "" {
		return fmt.Errorf("cloudinary cloud name not configured")
	}
	return nil
}

// ResizedURL formats the default CDN URL for a stored asset at the given dimensions
func ResizedURL(cloudName, publicID string, width, height int) string {
	return resizedURL(DefaultCDNHost, cloudName, publicID, width, height)
}

func resizedURL(host, cloudName, publicID string, width, height int) string {
	return fmt.Sprintf("https://%s/%s/image/upload/w_%d,h_%d/%s", host, cloudName, width, height, publicID)
}

var publicIDPattern = regexp.MustCompile(`/upload/(?:v\d+/)?(.+?)(?:\.[^./]+)?$`)

// ExtractPublicID returns the asset identifier embedded in a delivery URL,
// without version segment or file extension. It returns "" when url is not
// an upload URL.
func ExtractPublicID(rawURL string) string {
	m := publicIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}
