package config

import (
	"log/slog"

	"food-diary/pkg/ratelimit"
)

// LoadRateLimitConfig reads the limiter infrastructure settings.
//
// Environment variables:
//   - RATELIMIT_ENABLED: turn limiting off in development (default: true)
//   - RATELIMIT_BACKEND: "memory" or "redis" (default: memory)
//   - RATELIMIT_MAX_KEYS: in-memory store capacity (default: 10000)
//   - RATELIMIT_SWEEP_INTERVAL: expired entry sweep period (default: 1m)
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, RATELIMIT_REDIS_PREFIX: redis backend
//   - RATELIMIT_CB_FAILURE_THRESHOLD: breaker failure ratio in [0,1] (default: 0.6)
//   - RATELIMIT_CB_MIN_REQUESTS: requests before the breaker may trip (default: 5)
//   - RATELIMIT_CB_RECOVERY_TIMEOUT: open state duration (default: 30s)
//
// Invalid values fall back to defaults with a warning. A redis backend
// without an address is the one error, since silently using memory would
// split limits across instances.
func LoadRateLimitConfig() (*ratelimit.Config, error) {
	defaults := ratelimit.DefaultConfig()

	cfg := &ratelimit.Config{
		Enabled:                 GetEnvBool("RATELIMIT_ENABLED", true),
		Backend:                 ratelimit.Backend(GetEnvString("RATELIMIT_BACKEND", string(defaults.Backend))),
		MaxActiveKeys:           GetEnvInt("RATELIMIT_MAX_KEYS", defaults.MaxActiveKeys),
		SweepInterval:           GetEnvDuration("RATELIMIT_SWEEP_INTERVAL", defaults.SweepInterval),
		RedisAddr:               GetEnvString("REDIS_ADDR", ""),
		RedisPassword:           GetEnvString("REDIS_PASSWORD", ""),
		RedisDB:                 GetEnvInt("REDIS_DB", 0),
		RedisPrefix:             GetEnvString("RATELIMIT_REDIS_PREFIX", defaults.RedisPrefix),
		BreakerFailureThreshold: GetEnvFloat("RATELIMIT_CB_FAILURE_THRESHOLD", defaults.BreakerFailureThreshold),
		BreakerMinRequests:      uint32(max(0, GetEnvInt("RATELIMIT_CB_MIN_REQUESTS", int(defaults.BreakerMinRequests)))),
		BreakerTimeout:          GetEnvDuration("RATELIMIT_CB_RECOVERY_TIMEOUT", defaults.BreakerTimeout),
	}

	if !cfg.Backend.IsValid() {
		slog.Warn("invalid RATELIMIT_BACKEND, using default",
			slog.String("value", string(cfg.Backend)),
			slog.String("default", string(defaults.Backend)))
		cfg.Backend = defaults.Backend
	}
	if err := ValidatePositiveDuration(cfg.SweepInterval); err != nil {
		slog.Warn("invalid RATELIMIT_SWEEP_INTERVAL, using default",
			slog.String("error", err.Error()))
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.MaxActiveKeys < 0 {
		slog.Warn("invalid RATELIMIT_MAX_KEYS, using default",
			slog.Int("value", cfg.MaxActiveKeys))
		cfg.MaxActiveKeys = defaults.MaxActiveKeys
	}
	if cfg.BreakerFailureThreshold < 0 || cfg.BreakerFailureThreshold > 1 {
		slog.Warn("invalid RATELIMIT_CB_FAILURE_THRESHOLD, using default",
			slog.Float64("value", cfg.BreakerFailureThreshold))
		cfg.BreakerFailureThreshold = defaults.BreakerFailureThreshold
	}
	if err := ValidatePositiveDuration(cfg.BreakerTimeout); err != nil {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
