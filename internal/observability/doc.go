// Package observability groups the service's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog construction and request-scoped loggers
//   - metrics: Prometheus collectors for HTTP traffic and security outcomes
//   - tracing: OpenTelemetry provider setup and HTTP server spans
package observability
