// Package worker runs background maintenance for the API process: the
// rate limit sweeper that drops closed windows and idle burst buckets.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "food-diary/pkg/config"
)

// SweeperConfig holds the sweeper schedule.
//
// Environment variables:
//   - SWEEP_SCHEDULE: cron expression or descriptor (default "@every <interval>")
//   - SWEEP_TIMEZONE: IANA zone the schedule is evaluated in (default "UTC")
//   - SWEEP_TIMEOUT: upper bound for a single run (default 30s)
type SweeperConfig struct {
	Schedule string
	Timezone string
	Timeout  time.Duration
}

// DefaultConfig returns a config that sweeps once per interval.
func DefaultConfig(interval time.Duration) SweeperConfig {
	if interval <= 0 {
		interval = time.Minute
	}
	return SweeperConfig{
		Schedule: "@every " + interval.String(),
		Timezone: "UTC",
		Timeout:  30 * time.Second,
	}
}

// Validate checks that the schedule parses, the zone exists and the timeout is positive.
func (c SweeperConfig) Validate() error {
	if err := pkgconfig.ValidateCronSchedule(c.Schedule); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	if err := pkgconfig.ValidateDurationRange(c.Timeout, time.Second, time.Hour); err != nil {
		return fmt.Errorf("sweep timeout: %w", err)
	}
	return nil
}

// LoadConfigFromEnv reads the sweeper settings. Invalid values fall back to
// the defaults derived from interval and are logged; the result is always usable.
func LoadConfigFromEnv(interval time.Duration, logger *slog.Logger) SweeperConfig {
	def := DefaultConfig(interval)
	cfg := SweeperConfig{
		Schedule: pkgconfig.GetEnvString("SWEEP_SCHEDULE", def.Schedule),
		Timezone: pkgconfig.GetEnvString("SWEEP_TIMEZONE", def.Timezone),
		Timeout:  pkgconfig.GetEnvDuration("SWEEP_TIMEOUT", def.Timeout),
	}

	if err := pkgconfig.ValidateCronSchedule(cfg.Schedule); err != nil {
		logger.Warn("invalid sweep schedule, using default",
			slog.String("value", cfg.Schedule),
			slog.String("default", def.Schedule),
			slog.Any("error", err))
		cfg.Schedule = def.Schedule
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		logger.Warn("invalid sweep timezone, using default",
			slog.String("value", cfg.Timezone),
			slog.String("default", def.Timezone))
		cfg.Timezone = def.Timezone
	}
	if err := pkgconfig.ValidateDurationRange(cfg.Timeout, time.Second, time.Hour); err != nil {
		logger.Warn("invalid sweep timeout, using default",
			slog.Duration("value", cfg.Timeout),
			slog.Duration("default", def.Timeout))
		cfg.Timeout = def.Timeout
	}
	return cfg
}
