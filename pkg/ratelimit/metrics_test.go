package ratelimit

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func findFamily(t *testing.T, m *PrometheusMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func counterValue(f *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range f.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestPrometheusMetrics_RecordsLimiterActivity(t *testing.T) {
	metrics := NewPrometheusMetrics()
	clock := newFakeClock(time.Unix(1_700_000_000, 0))
	store := NewInMemoryStore(DefaultInMemoryStoreConfig())
	limiter := NewFixedWindowLimiter(store,
		WithClock(clock),
		WithMetrics(metrics),
		WithLimiterType("gate"),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = limiter.Check(ctx, "k", 2, time.Second)
	}

	checks := findFamily(t, metrics, "fooddiary_rate_limit_checks_total")
	if checks == nil {
		t.Fatal("checks metric not registered")
	}
	if got := counterValue(checks, map[string]string{"limiter_type": "gate", "status": "allowed"}); got != 2 {
		t.Errorf("allowed = %v, want 2", got)
	}
	if got := counterValue(checks, map[string]string{"limiter_type": "gate", "status": "denied"}); got != 1 {
		t.Errorf("denied = %v, want 1", got)
	}

	clock.Advance(2 * time.Second)
	if _, err := limiter.Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	swept := findFamily(t, metrics, "fooddiary_rate_limit_swept_total")
	if swept == nil || counterValue(swept, map[string]string{"limiter_type": "gate"}) != 1 {
		t.Error("swept counter not incremented")
	}

	active := findFamily(t, metrics, "fooddiary_rate_limit_active_keys")
	if active == nil || active.GetMetric()[0].GetGauge().GetValue() != 0 {
		t.Error("active keys gauge not reset to 0")
	}

	if findFamily(t, metrics, "fooddiary_rate_limit_check_duration_seconds") == nil {
		t.Error("check duration histogram not registered")
	}
}

func TestPrometheusMetrics_StoreErrorsAndEvictions(t *testing.T) {
	metrics := NewPrometheusMetrics()
	metrics.RecordStoreError("upload")
	metrics.RecordEviction("upload", 7)

	if f := findFamily(t, metrics, "fooddiary_rate_limit_store_errors_total"); f == nil || counterValue(f, nil) != 1 {
		t.Error("store error counter not recorded")
	}
	if f := findFamily(t, metrics, "fooddiary_rate_limit_evictions_total"); f == nil || counterValue(f, nil) != 7 {
		t.Error("eviction counter not recorded")
	}
}

func TestNoOpMetrics_SatisfiesInterface(t *testing.T) {
	var m Metrics = NewNoOpMetrics()
	m.RecordAllowed("x")
	m.RecordDenied("x")
	m.RecordCheckDuration("x", time.Millisecond)
	m.RecordStoreError("x")
	m.SetActiveKeys("x", 1)
	m.RecordSweep("x", 1)
	m.RecordEviction("x", 1)
}
