package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration rejects zero and negative durations, which would
// make a window, ticker or timeout meaningless.
func ValidatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %v", d)
	}
	return nil
}

// ValidateDurationRange requires lo <= d <= hi.
func ValidateDurationRange(d, lo, hi time.Duration) error {
	switch {
	case lo > hi:
		return fmt.Errorf("invalid range [%v, %v]", lo, hi)
	case d < lo || d > hi:
		return fmt.Errorf("duration %v is outside [%v, %v]", d, lo, hi)
	}
	return nil
}
