// Package gate runs the fixed per-request security pipeline:
// origin check, then rate limit, then bearer-token shape.
//
// Each stage either advances or stops the request with a specific reason.
// Field-level validation (sanitising, upload checks) belongs to the route
// handlers that run after an accepted request.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"food-diary/pkg/ratelimit"
	"food-diary/pkg/security/origin"
	"food-diary/pkg/security/token"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonOriginInvalid  Reason = "origin_invalid"
	ReasonRateLimited    Reason = "rate_limited"
	ReasonTokenMalformed Reason = "token_malformed"
)

// Stage is a step of the pipeline.
type Stage string

const (
	StageStart       Stage = "start"
	StageOrigin      Stage = "origin_check"
	StageRateLimit   Stage = "rate_limit_check"
	StageTokenFormat Stage = "token_format_check"
	StageAccepted    Stage = "accepted"
	StageRejected    Stage = "rejected"
)

// Result is the verdict for one request.
type Result struct {
	Accepted bool
	Reason   Reason

	// Stage is where the pipeline stopped: StageAccepted, or the check that rejected.
	Stage Stage

	// Decision is the rate limit verdict, nil if the pipeline stopped before
	// the rate limit stage or the store failed.
	Decision *ratelimit.Decision
}

// Limiter is the rate limiter the gate consults.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Decision, error)
}

// Recorder receives gate outcomes for metrics.
type Recorder interface {
	RecordAccepted()
	RecordRejected(reason Reason)
}

// KeyFunc returns the client identifier used for rate limiting, typically the client IP.
type KeyFunc func(r *http.Request) (string, error)

// Config configures the gate.
type Config struct {
	AllowList origin.AllowList

	// Limit requests per Window per client key.
	Limit  int
	Window time.Duration

	Token token.Validator

	// RequireToken rejects requests without an Authorization header. When
	// false, a missing header passes but a malformed one is still rejected.
	RequireToken bool

	// KeyPrefix namespaces rate limit keys. Default: "gate:".
	KeyPrefix string
}

// Gate evaluates requests against Config. It holds no mutable state of its
// own; the limiter owns the counters.
type Gate struct {
	cfg      Config
	limiter  Limiter
	burst    *ratelimit.BurstGuard
	keyFunc  KeyFunc
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option customises a Gate.
type Option func(*Gate)

// WithKeyFunc sets how the client key is derived. Default: host of RemoteAddr.
func WithKeyFunc(f KeyFunc) Option {
	return func(g *Gate) {
		if f != nil {
			g.keyFunc = f
		}
	}
}

// WithBurstGuard layers a token bucket over the fixed window.
func WithBurstGuard(b *ratelimit.BurstGuard) Option {
	return func(g *Gate) { g.burst = b }
}

func WithRecorder(r Recorder) Option {
	return func(g *Gate) {
		if r != nil {
			g.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gate) {
		if tp != nil {
			g.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "food-diary/gate"

// DefaultKeyPrefix namespaces the gate's rate limit keys.
const DefaultKeyPrefix = "gate:"

// New validates cfg and builds a Gate.
func New(cfg Config, limiter Limiter, opts ...Option) (*Gate, error) {
	if limiter == nil {
		return nil, errors.New("gate: limiter is required")
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("gate: limit and window must be positive, got %d per %s", cfg.Limit, cfg.Window)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	g := &Gate{
		cfg:      cfg,
		limiter:  limiter,
		keyFunc:  remoteAddrKey,
		recorder: noopRecorder{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type bypassKey struct{}

// WithBypass marks ctx as coming from a same-process caller. Such requests
// may omit both Origin and Referer.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassFrom(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Evaluate runs Start -> OriginCheck -> RateLimitCheck -> TokenFormatCheck
// and stops at the first rejection.
func (g *Gate) Evaluate(ctx context.Context, r *http.Request) Result {
	ctx, span := g.tracer.Start(ctx, "gate.evaluate",
		trace.WithAttributes(attribute.String("http.route", r.URL.Path)))
	defer span.End()

	res := g.evaluate(ctx, r)

	span.SetAttributes(
		attribute.Bool("gate.accepted", res.Accepted),
		attribute.String("gate.stage", string(res.Stage)),
	)
	if !res.Accepted {
		span.SetAttributes(attribute.String("gate.reason", string(res.Reason)))
		span.SetStatus(codes.Error, string(res.Reason))
		g.recorder.RecordRejected(res.Reason)
	} else {
		g.recorder.RecordAccepted()
	}
	return res
}

func (g *Gate) evaluate(ctx context.Context, r *http.Request) Result {
	var decision *ratelimit.Decision
	stage := StageStart

	for {
		switch stage {
		case StageStart:
			stage = StageOrigin

		case StageOrigin:
			if !origin.IsAllowed(r.Header.Get("Origin"), r.Header.Get("Referer"), g.cfg.AllowList, bypassFrom(ctx)) {
				return reject(stage, ReasonOriginInvalid, nil)
			}
			stage = StageRateLimit

		case StageRateLimit:
			var ok bool
			decision, ok = g.checkRate(ctx, r)
			if !ok {
				return reject(stage, ReasonRateLimited, decision)
			}
			stage = StageTokenFormat

		case StageTokenFormat:
			if !g.tokenOK(r) {
				return reject(stage, ReasonTokenMalformed, decision)
			}
			return Result{Accepted: true, Stage: StageAccepted, Decision: decision}
		}
	}
}

// checkRate fails closed: any store error rejects the request.
func (g *Gate) checkRate(ctx context.Context, r *http.Request) (*ratelimit.Decision, bool) {
	client, err := g.keyFunc(r)
	if err != nil || client == "" {
		g.logger.WarnContext(ctx, "gate: client key extraction failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return nil, false
	}
	key := g.cfg.KeyPrefix + client

	decision, err := g.limiter.Check(ctx, key, g.cfg.Limit, g.cfg.Window)
	if err != nil {
		g.logger.ErrorContext(ctx, "gate: rate limit store failure, rejecting",
			slog.String("key", key),
			slog.Any("error", err))
		return nil, false
	}
	if !decision.Allowed {
		return decision, false
	}
	if g.burst != nil && !g.burst.Allow(key) {
		denied := *decision
		denied.Allowed = false
		denied.Remaining = 0
		denied.RetryAfter = time.Second
		return &denied, false
	}
	return decision, true
}

func (g *Gate) tokenOK(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		return !g.cfg.RequireToken
	}
	tok, ok := token.FromAuthorization(header)
	if !ok {
		return false
	}
	return g.cfg.Token.Valid(tok)
}

func reject(stage Stage, reason Reason, d *ratelimit.Decision) Result {
	return Result{Accepted: false, Reason: reason, Stage: stage, Decision: d}
}

func remoteAddrKey(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return "", errors.New("empty remote address")
		}
		return r.RemoteAddr, nil
	}
	return host, nil
}

type noopRecorder struct{}

func (noopRecorder) RecordAccepted()        {}
func (noopRecorder) RecordRejected(Reason) {}
