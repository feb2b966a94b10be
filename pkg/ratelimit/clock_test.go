package ratelimit

import (
	"sync/atomic"
	"time"
)

// fakeClock is a Clock that only moves when a test advances it.
type fakeClock struct {
	nanos atomic.Int64
}

func newFakeClock(t time.Time) *fakeClock {
	c := &fakeClock{}
	c.nanos.Store(t.UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, c.nanos.Load()) }

func (c *fakeClock) Advance(d time.Duration) { c.nanos.Add(int64(d)) }
