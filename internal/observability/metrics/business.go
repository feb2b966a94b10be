package metrics

import (
	"time"

	"food-diary/pkg/security/gate"
)

// GateRecorder implements gate.Recorder on top of GateDecisionsTotal.
type GateRecorder struct{}

var _ gate.Recorder = GateRecorder{}

// RecordAccepted counts a request the gate let through.
func (GateRecorder) RecordAccepted() {
	GateDecisionsTotal.WithLabelValues("accepted", "").Inc()
}

// RecordRejected counts a rejection under its reason.
func (GateRecorder) RecordRejected(reason gate.Reason) {
	GateDecisionsTotal.WithLabelValues("rejected", string(reason)).Inc()
}

// RecordUploadRejected records one failed upload rule
// (size, type, name or signature).
func RecordUploadRejected(rule string) {
	UploadValidationFailuresTotal.WithLabelValues(rule).Inc()
}

// RecordUploadAccepted records the size of an upload that passed validation.
func RecordUploadAccepted(sizeBytes int64) {
	UploadSizeBytes.Observe(float64(sizeBytes))
}

// RecordInputRejected records an entry field refused by the injection check.
func RecordInputRejected(field string) {
	InputRejectionsTotal.WithLabelValues(field).Inc()
}

// RecordInputSanitized records an entry field the sanitizer rewrote.
func RecordInputSanitized(field string) {
	InputSanitizedTotal.WithLabelValues(field).Inc()
}

// RecordEntryCreated records a persisted diary entry.
func RecordEntryCreated() {
	EntriesCreatedTotal.Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_entry", "list_entries").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBreakerState publishes a breaker's state (0 closed, 1 half-open, 2 open).
func RecordBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordBreakerRejection counts a call an open breaker refused.
func RecordBreakerRejection(name string) {
	CircuitBreakerRejectionsTotal.WithLabelValues(name).Inc()
}
