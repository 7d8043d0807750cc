package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/handlers"
	"github.com/roaddamage/report-gateway/internal/services"
	"github.com/roaddamage/report-gateway/internal/storage"
)

// reportBackend is a report store that can also report its health
type reportBackend interface {
	services.ReportStore
	handlers.HealthChecker
}

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	config := loadConfig()

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("host", config.Host).
		Str("port", config.Port).
		Str("store", config.StoreDriver).
		Str("media", config.MediaBackend).
		Msg("Starting road damage report gateway")

	checks := make(map[string]handlers.HealthChecker)

	store, closeStore := initStore(config)
	defer closeStore()
	checks["store"] = store

	uploader, resizer, mediaCheck := initMedia(config)
	if mediaCheck != nil {
		checks["media"] = mediaCheck
	}

	opts := services.ServiceOptions{
		Preset:            config.CloudinaryUploadPreset,
		StrictCoordinates: config.ValidateCoordinates,
	}
	if config.RabbitMQURL != "" {
		log.Info().Msg("Initializing RabbitMQ publisher...")
		publisher, err := services.NewRabbitMQPublisher(config.RabbitMQURL, config.RabbitMQExchange)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ unavailable - report events will not be published")
		} else {
			defer publisher.Close()
			opts.Publisher = publisher
			checks["rabbitmq"] = publisher
		}
	}

	reportService := services.NewReportService(store, uploader, opts)
	stats := services.NewStatsAggregator(store)
	handler := handlers.NewHandler(reportService, stats, resizer, checks)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		Handler:      setupRouter(handler, config.CORSOrigins),
		ReadTimeout:  config.UploadTimeout + 15*time.Second,
		WriteTimeout: config.UploadTimeout + config.StoreTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("address", srv.Addr).
			Msg("Server starting...")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	log.Info().Msg("Server exited gracefully")
}

// initStore connects the configured report store. A connection failure
// leaves the store in degraded mode instead of aborting startup.
func initStore(config *Config) (reportBackend, func()) {
	switch config.StoreDriver {
	case "postgres":
		log.Info().Msg("Initializing Postgres storage...")
		pg, err := storage.NewPostgresStorage(
			config.DBHost,
			config.DBPort,
			config.DBUser,
			config.DBPassword,
			config.DBName,
			config.DBSSLMode,
			config.StoreTimeout,
		)
		if err != nil {
			log.Error().Err(err).Msg("Postgres unavailable - serving fallback reports")
			return storage.NewPostgresStoreFromDB(nil, config.StoreTimeout), func() {}
		}
		return pg, func() { pg.Close() }

	default:
		if config.StoreDriver != "mongo" {
			log.Warn().Str("driver", config.StoreDriver).Msg("Unknown store driver, using mongo")
		}
		client, err := storage.ConnectMongo(context.Background(), config.MongoURI, config.StoreTimeout)
		if err != nil {
			log.Error().Err(err).Msg("MongoDB unavailable - serving fallback reports")
			return storage.NewMongoStore(nil, config.StoreTimeout), func() {}
		}

		store := storage.NewMongoStore(client.Database(config.MongoDB), config.StoreTimeout)
		if err := store.EnsureIndexes(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to create report indexes")
		}
		return store, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Error().Err(err).Msg("MongoDB disconnect failed")
			}
		}
	}
}

// initMedia builds the image uploader. Every return value is a nil
// interface when the backend is disabled or unreachable.
func initMedia(config *Config) (services.MediaUploader, handlers.ImageResizer, handlers.HealthChecker) {
	switch config.MediaBackend {
	case "cloudinary":
		if config.CloudinaryCloudName == "" {
			log.Warn().Msg("CLOUDINARY_CLOUD_NAME not set - uploads will fail")
		}
		client := services.NewCloudinaryClient(
			config.CloudinaryCloudName,
			config.CloudinaryAPIURL,
			config.CloudinaryCDNHost,
			config.UploadTimeout,
		)
		return client, client, client

	case "minio":
		log.Info().Msg("Initializing MinIO storage...")
		minioStorage, err := storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:       config.MinIOEndpoint,
			PublicEndpoint: config.MinIOPublicEndpoint,
			AccessKey:      config.MinIOAccessKey,
			SecretKey:      config.MinIOSecretKey,
			Bucket:         config.MinIOBucket,
			UseSSL:         config.MinIOUseSSL,
			PublicRead:     config.MinIOPublicRead,
		})
		if err != nil {
			log.Error().Err(err).Msg("MinIO unavailable - images will be ignored")
			return nil, nil, nil
		}
		return minioStorage, nil, minioStorage

	default:
		log.Warn().Str("backend", config.MediaBackend).Msg("Image upload disabled - attached images will be ignored")
		return nil, nil, nil
	}
}
