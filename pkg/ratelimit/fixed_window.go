package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// ErrInvalidLimit is returned when Check is called with a non-positive limit or window.
var ErrInvalidLimit = errors.New("ratelimit: limit and window must be positive")

// lockStripes is the number of mutexes guarding per-key read-modify-write.
const lockStripes = 256

// FixedWindowLimiter counts requests per key in fixed windows.
//
// Every read-modify-write on a key is serialised by one of lockStripes mutexes
// chosen by hashing the key, so checks on the same key never interleave while
// checks on different keys rarely contend. Sweep leaves locking to the store:
// SweepableStore.DeleteExpired reads and deletes under the store's own lock,
// so limiters sharing one store never remove each other's fresh windows.
//
// A client can issue 2*limit requests across a window boundary (limit at the
// end of one window, limit again at the start of the next). Callers needing
// strict burst control layer a BurstGuard on top.
type FixedWindowLimiter struct {
	store       Store
	clock       Clock
	metrics     Metrics
	limiterType string
	keyPrefix   string

	locks [lockStripes]sync.Mutex
}

// LimiterOption configures a FixedWindowLimiter.
type LimiterOption func(*FixedWindowLimiter)

// WithClock overrides the time source.
func WithClock(c Clock) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m Metrics) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLimiterType sets the label used in decisions and metrics.
func WithLimiterType(name string) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if name != "" {
			l.limiterType = name
		}
	}
}

// WithKeyPrefix limits Sweep to keys starting with prefix. Limiters sharing a
// store each sweep their own namespace.
func WithKeyPrefix(prefix string) LimiterOption {
	return func(l *FixedWindowLimiter) {
		l.keyPrefix = prefix
	}
}

// NewFixedWindowLimiter creates a limiter backed by store.
func NewFixedWindowLimiter(store Store, opts ...LimiterOption) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		store:       store,
		clock:       &SystemClock{},
		metrics:     NewNoOpMetrics(),
		limiterType: "default",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check applies one request against key's window.
//
// A new or expired entry starts a window of length window with count 1.
// An open window with count below limit is incremented. Otherwise the request
// is denied and the count is left untouched.
func (l *FixedWindowLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Decision, error) {
	if limit <= 0 || window <= 0 {
		return nil, ErrInvalidLimit
	}

	start := time.Now()
	defer func() {
		l.metrics.RecordCheckDuration(l.limiterType, time.Since(start))
	}()

	now := l.clock.Now()

	var (
		entry   Entry
		allowed bool
		err     error
	)
	if atomic, ok := l.store.(AtomicStore); ok {
		entry, allowed, err = atomic.Hit(ctx, key, limit, window, now)
	} else {
		entry, allowed, err = l.checkLocked(ctx, key, limit, window, now)
	}
	if err != nil {
		l.metrics.RecordStoreError(l.limiterType)
		return nil, fmt.Errorf("rate limit check %q: %w", key, err)
	}

	if allowed {
		l.metrics.RecordAllowed(l.limiterType)
	} else {
		l.metrics.RecordDenied(l.limiterType)
	}

	return newDecision(key, l.limiterType, limit, entry, allowed, now), nil
}

func (l *FixedWindowLimiter) checkLocked(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Entry, bool, error) {
	mu := l.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	current, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Entry{}, false, err
	}

	next, allowed := step(current, found, limit, window, now)
	if !allowed {
		return next, false, nil
	}
	if err := l.store.Set(ctx, key, next); err != nil {
		return Entry{}, false, err
	}
	return next, true, nil
}

// Reset drops the entry for key so the next check opens a fresh window.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	mu := l.lockFor(key)
	mu.Lock()
	defer mu.Unlock()
	return l.store.Delete(ctx, key)
}

// Sweep deletes every entry under the limiter's key prefix whose window has
// closed and returns how many were removed. Stores that do not hold closed
// windows (Redis expires keys itself) are skipped.
func (l *FixedWindowLimiter) Sweep(ctx context.Context) (int, error) {
	sweepable, ok := l.store.(SweepableStore)
	if !ok {
		return 0, nil
	}

	keys, err := sweepable.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rate limit keys: %w", err)
	}

	seen, removed := 0, 0
	for _, key := range keys {
		if !strings.HasPrefix(key, l.keyPrefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		seen++
		deleted, err := sweepable.DeleteExpired(ctx, key, l.clock.Now())
		if err != nil {
			return removed, fmt.Errorf("sweep %q: %w", key, err)
		}
		if deleted {
			removed++
		}
	}

	l.metrics.SetActiveKeys(l.limiterType, seen-removed)
	l.metrics.RecordSweep(l.limiterType, removed)
	return removed, nil
}

// LimiterType returns the label used for decisions and metrics.
func (l *FixedWindowLimiter) LimiterType() string {
	return l.limiterType
}

func (l *FixedWindowLimiter) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.locks[h.Sum32()%lockStripes]
}
