package circuitbreaker

import (
	"context"
	"time"

	"food-diary/pkg/ratelimit"
)

// BreakerStore routes rate limit store calls through a circuit breaker.
// While the circuit is open every call fails fast with gobreaker.ErrOpenState,
// which the gate turns into a rate_limited rejection.
type BreakerStore struct {
	cb    *CircuitBreaker
	inner ratelimit.Store
}

// breakerAtomicStore additionally forwards Hit so a wrapped Redis store keeps
// its single round trip check.
type breakerAtomicStore struct {
	*BreakerStore
	atomic ratelimit.AtomicStore
}

// breakerSweepableStore forwards the sweep calls for stores that support it.
type breakerSweepableStore struct {
	*BreakerStore
	sweepable ratelimit.SweepableStore
}

// WrapStore protects store with cb. The returned store implements
// ratelimit.AtomicStore or ratelimit.SweepableStore exactly when store does.
func WrapStore(store ratelimit.Store, cb *CircuitBreaker) ratelimit.Store {
	base := &BreakerStore{cb: cb, inner: store}
	if a, ok := store.(ratelimit.AtomicStore); ok {
		return &breakerAtomicStore{BreakerStore: base, atomic: a}
	}
	if sw, ok := store.(ratelimit.SweepableStore); ok {
		return &breakerSweepableStore{BreakerStore: base, sweepable: sw}
	}
	return base
}

type getResult struct {
	entry ratelimit.Entry
	found bool
}

func (s *BreakerStore) Get(ctx context.Context, key string) (ratelimit.Entry, bool, error) {
	r, err := guard(s.cb, func() (getResult, error) {
		e, found, err := s.inner.Get(ctx, key)
		return getResult{entry: e, found: found}, err
	})
	return r.entry, r.found, err
}

func (s *BreakerStore) Set(ctx context.Context, key string, entry ratelimit.Entry) error {
	_, err := guard(s.cb, func() (struct{}, error) {
		return struct{}{}, s.inner.Set(ctx, key, entry)
	})
	return err
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := guard(s.cb, func() (struct{}, error) {
		return struct{}{}, s.inner.Delete(ctx, key)
	})
	return err
}

// Breaker returns the circuit breaker guarding the store.
func (s *BreakerStore) Breaker() *CircuitBreaker {
	return s.cb
}

type hitResult struct {
	entry   ratelimit.Entry
	allowed bool
}

func (s *breakerAtomicStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (ratelimit.Entry, bool, error) {
	r, err := guard(s.cb, func() (hitResult, error) {
		e, allowed, err := s.atomic.Hit(ctx, key, limit, window, now)
		return hitResult{entry: e, allowed: allowed}, err
	})
	return r.entry, r.allowed, err
}

func (s *breakerSweepableStore) Keys(ctx context.Context) ([]string, error) {
	return guard(s.cb, func() ([]string, error) {
		return s.sweepable.Keys(ctx)
	})
}

func (s *breakerSweepableStore) DeleteExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	return guard(s.cb, func() (bool, error) {
		return s.sweepable.DeleteExpired(ctx, key, now)
	})
}
