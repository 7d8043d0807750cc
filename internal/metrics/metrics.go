// Package metrics exposes Prometheus collectors for the report gateway.
//
// Collectors are registered on the default registry at package init through
// promauto and served by promhttp on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_gateway_http_requests_total",
			Help: "Total number of HTTP requests by route template, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_gateway_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Media upload metrics
	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_gateway_media_uploads_total",
			Help: "Total number of image uploads by backend and outcome",
		},
		[]string{"backend", "outcome"}, // "ok", "failed", "parse_error", "invalid"
	)

	MediaUploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_gateway_media_upload_duration_seconds",
			Help:    "Duration of outbound image uploads in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)

	// Report pipeline metrics
	ReportsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_gateway_reports_submitted_total",
			Help: "Total number of report submissions by outcome",
		},
		[]string{"outcome"}, // "created", "invalid", "upload_failed", "persist_failed"
	)

	DegradedReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_gateway_degraded_reads_total",
			Help: "Total number of reads answered from the fallback dataset or with partial data",
		},
		[]string{"operation"}, // "list", "count"
	)
)

// RecordHTTPRequest records one served HTTP request
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordMediaUpload records the outcome and duration of one upload attempt
func RecordMediaUpload(backend, outcome string, duration time.Duration) {
	MediaUploadsTotal.WithLabelValues(backend, outcome).Inc()
	MediaUploadDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordSubmission records the outcome of one report submission
func RecordSubmission(outcome string) {
	ReportsSubmittedTotal.WithLabelValues(outcome).Inc()
}

// RecordDegradedRead records a read served in degraded mode
func RecordDegradedRead(operation string) {
	DegradedReadsTotal.WithLabelValues(operation).Inc()
}
