// Package http provides the HTTP middleware, health and metrics endpoints of
// the food diary API. Route handlers live in subpackages.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"food-diary/internal/handler/http/respond"
	"food-diary/internal/resilience/circuitbreaker"
	"food-diary/pkg/ratelimit"
)

// Check states. Only StateDown turns the overall answer into 503.
const (
	StateUp       = "healthy"
	StateDegraded = "degraded"
	StateDown     = "unhealthy"
)

// poolSaturation is the in-use share of the DB pool reported as degraded.
const poolSaturation = 0.8

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"` // RFC 3339
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the outcome of one dependency check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Pinger is implemented by stores reachable over the network, such as ratelimit.RedisStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateLimitProbe describes the rate limit store for health reporting.
type RateLimitProbe struct {
	Backend ratelimit.Backend
	Pinger  Pinger                         // nil for the in-memory store
	Breaker *circuitbreaker.CircuitBreaker // nil when the store is not wrapped
}

// HealthHandler reports database and rate limit store health.
//
// Rate limiting fails closed, so an unreachable store or an open breaker
// leaves the service unable to accept gated traffic: both report StateDown.
type HealthHandler struct {
	DB        *sql.DB
	Version   string
	RateLimit *RateLimitProbe

	CSPReportOnly bool
	Logger        *slog.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	probes := map[string]func(context.Context) CheckStatus{
		"database": h.checkDatabase,
		"csp": func(context.Context) CheckStatus {
			return CheckStatus{Status: StateUp, Details: map[string]any{"report_only": h.CSPReportOnly}}
		},
	}
	if h.RateLimit != nil {
		probes["rate_limiter"] = h.checkRateLimiter
	}

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckStatus, len(probes))
		g      errgroup.Group
	)
	for name, probe := range probes {
		g.Go(func() error {
			res := probe(ctx)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    StateUp,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}
	code := http.StatusOK
	for _, c := range checks {
		if c.Status == StateDown {
			resp.Status = StateDown
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	respond.JSON(w, code, resp)
}

func (h *HealthHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// checkDatabase pings the entry store and reports pool usage. A pool with
// no connection cap, or one nearly exhausted, is degraded but still serving.
func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if h.DB == nil {
		return CheckStatus{Status: StateDown, Message: "not configured"}
	}
	if err := h.DB.PingContext(ctx); err != nil {
		h.logger().ErrorContext(ctx, "health: database ping failed", slog.Any("error", err))
		return CheckStatus{Status: StateDown, Message: "ping failed"}
	}

	s := h.DB.Stats()
	res := CheckStatus{Status: StateUp, Details: map[string]any{
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration_ms":     s.WaitDuration.Milliseconds(),
	}}

	switch {
	case s.MaxOpenConnections == 0:
		res.Status, res.Message = StateDegraded, "connection pool is unbounded"
	case float64(s.InUse) >= poolSaturation*float64(s.MaxOpenConnections):
		res.Status, res.Message = StateDegraded, "connection pool nearly exhausted"
	}
	return res
}

func (h *HealthHandler) checkRateLimiter(ctx context.Context) CheckStatus {
	p := h.RateLimit
	res := CheckStatus{Status: StateUp, Details: map[string]any{"backend": string(p.Backend)}}

	if p.Breaker != nil {
		res.Details["circuit_breaker"] = p.Breaker.State().String()
		if p.Breaker.IsOpen() {
			res.Status, res.Message = StateDown, "store circuit open"
			return res
		}
	}
	if p.Pinger != nil {
		if err := p.Pinger.Ping(ctx); err != nil {
			h.logger().ErrorContext(ctx, "health: rate limit store ping failed", slog.Any("error", err))
			res.Status, res.Message = StateDown, "store unreachable"
		}
	}
	return res
}

// ReadyHandler answers readiness probes. The database and, when configured,
// the rate limit store must both answer a ping.
type ReadyHandler struct {
	DB        *sql.DB
	RateLimit Pinger
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if msg := h.notReady(ctx); msg != "" {
		http.Error(w, msg, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ready"))
}

func (h *ReadyHandler) notReady(ctx context.Context) string {
	switch {
	case h.DB == nil:
		return "database not configured"
	case h.DB.PingContext(ctx) != nil:
		return "database not ready"
	case h.RateLimit != nil && h.RateLimit.Ping(ctx) != nil:
		return "rate limit store not ready"
	}
	return ""
}

// LiveHandler answers liveness probes with 200 "alive".
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("alive"))
}
