package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Host        string
	Port        string
	LogLevel    string
	CORSOrigins []string

	StoreDriver  string
	StoreTimeout time.Duration
	MongoURI     string
	MongoDB      string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string

	MediaBackend           string
	UploadTimeout          time.Duration
	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryAPIURL       string
	CloudinaryCDNHost      string
	MinIOEndpoint          string
	MinIOPublicEndpoint    string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOBucket            string
	MinIOUseSSL            bool
	MinIOPublicRead        bool

	RabbitMQURL      string
	RabbitMQExchange string

	ValidateCoordinates bool
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	cfg := &Config{
		Host:        getEnv("GATEWAY_HOST", "0.0.0.0"),
		Port:        getEnv("GATEWAY_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", "mongo")),
		StoreTimeout: getDuration("STORE_TIMEOUT", 8*time.Second),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "road_damage"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", "postgres"),
		DBName:       getEnv("DB_NAME", "postgres"),
		DBSSLMode:    getEnv("DB_SSL_MODE", "disable"),

		MediaBackend:           strings.ToLower(getEnv("MEDIA_BACKEND", "cloudinary")),
		UploadTimeout:          getDuration("UPLOAD_TIMEOUT", 30*time.Second),
		CloudinaryCloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryUploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", ""),
		CloudinaryAPIURL:       getEnv("CLOUDINARY_API_URL", ""),
		CloudinaryCDNHost:      getEnv("CLOUDINARY_CDN_HOST", ""),
		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOPublicEndpoint:    getEnv("MINIO_PUBLIC_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", "minioadmin123"),
		MinIOBucket:            getEnv("MINIO_BUCKET_NAME", "road-damage-images"),
		MinIOUseSSL:            getEnv("MINIO_USE_SSL", "false") == "true",

		// empty disables event publishing
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "road-damage.events"),

		ValidateCoordinates: getEnv("VALIDATE_COORDINATES", "false") == "true",
	}

	// a separate public endpoint usually means a proxy serves the images
	publicRead := "true"
	if cfg.MinIOPublicEndpoint != "" {
		publicRead = "false"
	}
	cfg.MinIOPublicRead = getEnv("MINIO_PUBLIC_READ", publicRead) == "true"

	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
