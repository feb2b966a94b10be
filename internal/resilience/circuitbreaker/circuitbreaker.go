// Package circuitbreaker protects calls to shared backends (the rate limit
// store and the entry database) using github.com/sony/gobreaker.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"food-diary/internal/observability/metrics"
)

// Config holds the settings of one breaker.
type Config struct {
	// Name labels logs and the circuit_breaker_* metrics.
	Name string

	// MaxRequests may pass while half-open.
	MaxRequests uint32

	// Interval clears the counts while closed. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration

	// The breaker trips once at least MinRequests calls were counted and the
	// failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// RateLimitStoreConfig returns configuration for the shared rate limit store.
// The open timeout is short: while open every gated request is rejected, so
// the breaker should probe the store again quickly.
func RateLimitStoreConfig() Config {
	return Config{
		Name:             "ratelimit-store",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreaker is a named gobreaker.CircuitBreaker that reports its state
// to Prometheus.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a breaker from cfg. It starts closed.
func New(cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{name: cfg.Name}
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		// A caller that gave up says nothing about the backend's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.RecordBreakerState(name, int(to))
		},
	})
	metrics.RecordBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return cb
}

// Execute runs fn unless the circuit is open, in which case it returns an
// error matching IsUnavailable without calling fn.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := cb.breaker.Execute(fn)
	if IsUnavailable(err) {
		metrics.RecordBreakerRejection(cb.name)
	}
	return res, err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether calls are currently refused outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// IsUnavailable reports whether err came from a breaker refusing the call,
// either because it is open or because the half-open probe quota is used up.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// guard runs fn through cb and restores its static result type.
func guard[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
