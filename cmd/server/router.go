package main

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/roaddamage/report-gateway/internal/handlers"
	"github.com/roaddamage/report-gateway/internal/metrics"
)

// setupRouter configures all routes and middleware.
// CORS wraps the whole router so preflight requests are answered before route matching.
func setupRouter(h *handlers.Handler, origins []string) http.Handler {
	r := mux.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(metricsMiddleware)
	r.Use(recoveryMiddleware)

	visitor := r.PathPrefix("/api/visitor").Subrouter()
	visitor.HandleFunc("/reports", h.ListReportsHandler).Methods("GET")
	visitor.HandleFunc("/reports", h.CreateReportHandler).Methods("POST")
	visitor.HandleFunc("/reports/stats", h.StatsHandler).Methods("GET")
	visitor.HandleFunc("/images/resized", h.ResizedImageHandler).Methods("GET")
	visitor.HandleFunc("/images/{publicId:.+}/resized", h.ResizedImageHandler).Methods("GET")

	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	log.Info().Msg("Routes configured successfully")

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	})(r)
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration_ms", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// metricsMiddleware records request counts and latency per route template
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		var route string
		if cr := mux.CurrentRoute(r); cr != nil {
			route, _ = cr.GetPathTemplate()
		}
		metrics.RecordHTTPRequest(route, r.Method, wrapped.statusCode, time.Since(start))
	})
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
