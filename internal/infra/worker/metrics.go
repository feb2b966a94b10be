package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SweeperMetrics holds the Prometheus metrics of the sweep job.
type SweeperMetrics struct {
	RunsTotal            *prometheus.CounterVec
	DurationSeconds      prometheus.Histogram
	RemovedTotal         *prometheus.CounterVec
	LastSuccessTimestamp prometheus.Gauge
}

// NewSweeperMetrics registers the sweep metrics with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	f := promauto.With(reg)
	return &SweeperMetrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_sweep_runs_total",
			Help: "Total number of sweep runs by status (success/failure)",
		}, []string{"status"}),

		DurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ratelimit_sweep_duration_seconds",
			Help:    "Duration of sweep runs in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),

		RemovedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_sweep_removed_total",
			Help: "Total number of entries removed by the sweeper",
		}, []string{"kind"}),

		LastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "ratelimit_sweep_last_success_timestamp",
			Help: "Unix timestamp of the last successful sweep",
		}),
	}
}

// RecordRun increments the run counter for status ("success" or "failure").
func (m *SweeperMetrics) RecordRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordDuration observes the duration of a run in seconds.
func (m *SweeperMetrics) RecordDuration(seconds float64) {
	m.DurationSeconds.Observe(seconds)
}

// RecordRemoved adds count to the removed counter for kind ("window" or "burst").
func (m *SweeperMetrics) RecordRemoved(kind string, count int) {
	if count > 0 {
		m.RemovedTotal.WithLabelValues(kind).Add(float64(count))
	}
}

// RecordLastSuccess stamps the current time.
func (m *SweeperMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
