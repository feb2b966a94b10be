// Package ratelimit provides framework-agnostic fixed-window rate limiting.
//
// The limiter algorithm is independent of where counters live: state is read
// and written through an injected Store so the in-memory sharded map can be
// replaced by a shared backend (Redis) without touching the algorithm.
package ratelimit

import (
	"context"
	"time"
)

// Store persists rate limit entries keyed by an opaque string
// (for example "upload:<userId>" or "gate:<ip>").
//
// Implementations must be safe for concurrent use. They are not required to
// serialise read-modify-write sequences; the limiter does that itself.
type Store interface {
	// Get returns the entry for key. The boolean is false when no entry exists.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set creates or replaces the entry for key.
	Set(ctx context.Context, key string, entry Entry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// SweepableStore is implemented by stores that keep closed windows until a
// sweep removes them. The background sweep only runs against such stores.
//
// DeleteExpired must read and delete under the same lock the store takes in
// Set, so a window opened by a concurrent check, from any limiter sharing the
// store, is never removed.
type SweepableStore interface {
	Keys(ctx context.Context) ([]string, error)

	// DeleteExpired removes key if its window has closed at now and reports
	// whether it did.
	DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error)
}

// AtomicStore is implemented by stores that can perform the whole
// fixed-window step in one round trip.
//
// Stores shared between processes (Redis) implement it because the limiter's
// in-process locks cannot serialise checks made by other instances.
type AtomicStore interface {
	Store

	// Hit applies one fixed-window check for key at now and returns the
	// resulting entry together with the allow verdict. A denied hit must not
	// change the stored count.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (entry Entry, allowed bool, err error)
}

// Metrics records rate limiting activity.
//
// Implementations can use Prometheus or discard everything (NoOpMetrics).
type Metrics interface {
	// RecordAllowed records a check that let the request through.
	RecordAllowed(limiterType string)

	// RecordDenied records a check that rejected the request.
	RecordDenied(limiterType string)

	// RecordCheckDuration records how long a check took, store round trip included.
	RecordCheckDuration(limiterType string, duration time.Duration)

	// RecordStoreError records a failed store operation.
	RecordStoreError(limiterType string)

	// SetActiveKeys records the number of keys observed by the last sweep.
	SetActiveKeys(limiterType string, count int)

	// RecordSweep records how many expired entries a sweep removed.
	RecordSweep(limiterType string, removed int)

	// RecordEviction records entries dropped because a store hit capacity.
	RecordEviction(limiterType string, count int)
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
