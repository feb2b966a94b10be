package ratelimit

import (
	"fmt"
	"time"
)

// Decision represents the result of a rate limit check.
type Decision struct {
	// Key is the identifier that was checked (e.g. "gate:203.0.113.7").
	Key string

	// Allowed indicates whether the request should be permitted.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is max(0, Limit - count) after this check.
	Remaining int

	// ResetAt is when the current window closes.
	ResetAt time.Time

	// RetryAfter is ResetAt minus the check time, never negative.
	RetryAfter time.Duration

	// LimiterType identifies which limiter made this decision ("gate", "upload").
	LimiterType string
}

// String returns a human-readable representation of the decision.
func (d *Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"Decision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key,
			d.LimiterType,
			d.Remaining,
			d.Limit,
			d.ResetAt.Format(time.RFC3339),
		)
	}

	return fmt.Sprintf(
		"Decision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s, ResetAt: %s}",
		d.Key,
		d.LimiterType,
		d.Limit,
		d.RetryAfter.String(),
		d.ResetAt.Format(time.RFC3339),
	)
}

// ResetAtUnix returns the reset time as a Unix timestamp for X-RateLimit-Reset.
func (d *Decision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the retry delay in whole seconds, rounded up so a
// client honouring Retry-After never retries before the window closes.
func (d *Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	seconds := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		seconds++
	}
	return seconds
}

func newDecision(key, limiterType string, limit int, entry Entry, allowed bool, now time.Time) *Decision {
	remaining := limit - entry.Count
	if remaining < 0 || !allowed {
		remaining = 0
	}
	retryAfter := entry.WindowResetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Decision{
		Key:         key,
		Allowed:     allowed,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     entry.WindowResetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}
