// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)
)

// Security metrics track what the request security layer accepts and rejects
var (
	// GateDecisionsTotal counts gate verdicts. reason is empty for accepted requests.
	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_gate_decisions_total",
			Help: "Total number of request gate decisions",
		},
		[]string{"result", "reason"},
	)

	// UploadValidationFailuresTotal counts upload rejections by failed rule
	UploadValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_upload_validation_failures_total",
			Help: "Total number of upload validation failures by rule",
		},
		[]string{"rule"},
	)

	// UploadSizeBytes measures the size of accepted uploads
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "security_upload_size_bytes",
			Help: "Size of accepted image uploads in bytes",
			Buckets: []float64{
				10240, 51200, 102400, 512000,
				1048576, 2097152, 5242880, 10485760, // up to 10MB
			},
		},
	)

	// InputRejectionsTotal counts entry fields rejected by the injection heuristic
	InputRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_input_rejections_total",
			Help: "Total number of entry fields rejected as unsafe",
		},
		[]string{"field"},
	)

	// InputSanitizedTotal counts entry fields changed by the sanitizer
	InputSanitizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_input_sanitized_total",
			Help: "Total number of entry fields modified by sanitization",
		},
		[]string{"field"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// EntriesCreatedTotal counts diary entries persisted
	EntriesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "food_entries_created_total",
			Help: "Total number of food diary entries created",
		},
	)
)

// Resilience metrics track the circuit breakers around shared backends
var (
	// CircuitBreakerState is 0 when closed, 1 when half-open and 2 when open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerRejectionsTotal counts calls refused without reaching the backend
	CircuitBreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}
