package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker routes entry queries through a breaker so a slow or
// unavailable Postgres fails requests fast instead of tying up handlers.
//
// There is no QueryRowContext: a *sql.Row reports its error only on Scan,
// after the breaker has already counted the call as a success.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig trips after five calls in a row fail and probes again after 30s.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// NewDBCircuitBreaker wraps db with DBConfig.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

func (d *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return guard(d.cb, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

func (d *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return guard(d.cb, func() (sql.Result, error) {
		return d.db.ExecContext(ctx, query, args...)
	})
}

func (d *DBCircuitBreaker) State() gobreaker.State {
	return d.cb.State()
}

func (d *DBCircuitBreaker) IsOpen() bool {
	return d.cb.IsOpen()
}
