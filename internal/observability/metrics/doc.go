// Package metrics provides the application's Prometheus collectors.
//
// HTTP collectors cover every route. Security collectors count gate
// verdicts by reason, upload validation failures by rule and entry fields
// rejected or rewritten by input checks. Rate limiter internals are
// exported by pkg/ratelimit on its own registry.
//
// All collectors here register with the Prometheus default registry and are
// exposed via the /metrics endpoint.
package metrics
