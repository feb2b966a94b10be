// Package tracing provides OpenTelemetry tracing integration.
//
// NewProvider installs a sampling TracerProvider as the global provider;
// Middleware starts a server span per request. The security gate creates a
// child "gate.evaluate" span from the same global provider.
package tracing
