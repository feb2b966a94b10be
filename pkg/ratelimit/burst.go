package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BurstGuard is an optional per-key token bucket layered on top of the fixed
// window limiter. It smooths the 2*limit burst a client can produce across a
// window boundary.
type BurstGuard struct {
	mu      sync.Mutex
	entries map[string]*burstEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	clock   Clock
}

type burstEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// BurstGuardOption configures a BurstGuard.
type BurstGuardOption func(*BurstGuard)

// WithBurstIdleTTL sets how long an unused bucket is kept before Cleanup drops it.
func WithBurstIdleTTL(d time.Duration) BurstGuardOption {
	return func(g *BurstGuard) {
		if d > 0 {
			g.idleTTL = d
		}
	}
}

// WithBurstClock overrides the time source.
func WithBurstClock(c Clock) BurstGuardOption {
	return func(g *BurstGuard) {
		if c != nil {
			g.clock = c
		}
	}
}

// NewBurstGuard creates a guard refilling rps tokens per second up to burst.
func NewBurstGuard(rps float64, burst int, opts ...BurstGuardOption) *BurstGuard {
	if burst < 1 {
		burst = 1
	}
	g := &BurstGuard{
		entries: make(map[string]*burstEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		clock:   &SystemClock{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow reports whether key may spend one token now.
func (g *BurstGuard) Allow(key string) bool {
	now := g.clock.Now()

	g.mu.Lock()
	ent, ok := g.entries[key]
	if !ok {
		ent = &burstEntry{lim: rate.NewLimiter(g.rps, g.burst)}
		g.entries[key] = ent
	}
	ent.lastSeen = now
	g.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than the idle TTL and returns how many were removed.
func (g *BurstGuard) Cleanup() int {
	cutoff := g.clock.Now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for k, ent := range g.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(g.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked buckets.
func (g *BurstGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
