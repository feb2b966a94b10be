package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics using Prometheus.
//
// All metrics are registered on a custom registry so tests and multiple
// limiters in one process stay isolated. Expose it with
// promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}).
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// checksTotal labels: limiter_type, status ("allowed" | "denied").
	checksTotal *prometheus.CounterVec

	// Buckets target sub-millisecond in-memory checks and a few ms for Redis.
	checkDuration *prometheus.HistogramVec

	storeErrors *prometheus.CounterVec
	activeKeys  *prometheus.GaugeVec
	swept       *prometheus.CounterVec
	evictions   *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	checksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fooddiary_rate_limit_checks_total",
			Help: "Rate limit checks by limiter type and status",
		},
		[]string{"limiter_type", "status"},
	)

	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fooddiary_rate_limit_check_duration_seconds",
			Help:    "Duration of rate limit checks",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"limiter_type"},
	)

	storeErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fooddiary_rate_limit_store_errors_total",
			Help: "Failed rate limit store operations",
		},
		[]string{"limiter_type"},
	)

	activeKeys := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fooddiary_rate_limit_active_keys",
			Help: "Keys held after the last sweep",
		},
		[]string{"limiter_type"},
	)

	swept := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fooddiary_rate_limit_swept_total",
			Help: "Expired entries removed by the background sweep",
		},
		[]string{"limiter_type"},
	)

	evictions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fooddiary_rate_limit_evictions_total",
			Help: "Entries evicted because the store reached capacity",
		},
		[]string{"limiter_type"},
	)

	registry.MustRegister(checksTotal, checkDuration, storeErrors, activeKeys, swept, evictions)

	return &PrometheusMetrics{
		registry:      registry,
		checksTotal:   checksTotal,
		checkDuration: checkDuration,
		storeErrors:   storeErrors,
		activeKeys:    activeKeys,
		swept:         swept,
		evictions:     evictions,
	}
}

// Registry returns the Prometheus registry containing all rate limit metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) RecordAllowed(limiterType string) {
	m.checksTotal.WithLabelValues(limiterType, "allowed").Inc()
}

func (m *PrometheusMetrics) RecordDenied(limiterType string) {
	m.checksTotal.WithLabelValues(limiterType, "denied").Inc()
}

func (m *PrometheusMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiterType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordStoreError(limiterType string) {
	m.storeErrors.WithLabelValues(limiterType).Inc()
}

func (m *PrometheusMetrics) SetActiveKeys(limiterType string, count int) {
	m.activeKeys.WithLabelValues(limiterType).Set(float64(count))
}

func (m *PrometheusMetrics) RecordSweep(limiterType string, removed int) {
	m.swept.WithLabelValues(limiterType).Add(float64(removed))
}

// RecordEviction counts capacity evictions. A steady rate usually means
// MaxKeys is too small or many distinct clients are probing.
func (m *PrometheusMetrics) RecordEviction(limiterType string, count int) {
	m.evictions.WithLabelValues(limiterType).Add(float64(count))
}
