package ratelimit

import "time"

// NoOpMetrics implements Metrics and discards everything.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (m *NoOpMetrics) RecordAllowed(string)                      {}
func (m *NoOpMetrics) RecordDenied(string)                       {}
func (m *NoOpMetrics) RecordCheckDuration(string, time.Duration) {}
func (m *NoOpMetrics) RecordStoreError(string)                   {}
func (m *NoOpMetrics) SetActiveKeys(string, int)                 {}
func (m *NoOpMetrics) RecordSweep(string, int)                   {}
func (m *NoOpMetrics) RecordEviction(string, int)                {}
