package ratelimit

import "time"

// Entry is the fixed-window counter stored per key.
//
// Count never decreases within a window. A check made after WindowResetAt
// starts a new window with Count 1.
type Entry struct {
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"window_reset_at"`
}

// Expired reports whether the window has closed at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.WindowResetAt)
}

// step applies one fixed-window check to e and returns the new entry and the
// verdict. The entry is returned unchanged when the check is denied.
func step(e Entry, found bool, limit int, window time.Duration, now time.Time) (Entry, bool) {
	if !found || e.Expired(now) {
		return Entry{Count: 1, WindowResetAt: now.Add(window)}, true
	}
	if e.Count < limit {
		e.Count++
		return e, true
	}
	return e, false
}
