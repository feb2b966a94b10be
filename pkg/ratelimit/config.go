package ratelimit

import (
	"fmt"
	"time"
)

// Backend selects where rate limit entries are stored.
type Backend string

const (
	// BackendMemory keeps entries in this process only.
	BackendMemory Backend = "memory"

	// BackendRedis shares entries across instances through Redis.
	BackendRedis Backend = "redis"
)

// IsValid checks if the backend is a recognized value.
func (b Backend) IsValid() bool {
	switch b {
	case BackendMemory, BackendRedis:
		return true
	default:
		return false
	}
}

// Config contains the limiter infrastructure settings.
//
// Per-route limits (gate, upload) live in the security config; this struct
// covers storage and housekeeping.
type Config struct {
	// Backend selects the store implementation.
	Backend Backend

	// MaxActiveKeys bounds the in-memory store.
	MaxActiveKeys int

	// SweepInterval is how often expired entries are removed.
	SweepInterval time.Duration

	// RedisAddr, RedisPassword and RedisDB configure BackendRedis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Circuit breaker around the Redis store.
	BreakerFailureThreshold float64
	BreakerMinRequests      uint32
	BreakerTimeout          time.Duration

	// Enabled turns limiting off entirely when false (development only).
	Enabled bool
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if !c.Backend.IsValid() {
		return fmt.Errorf("Backend has invalid value %q", c.Backend)
	}
	if c.MaxActiveKeys < 0 {
		return fmt.Errorf("MaxActiveKeys must be non-negative, got %d", c.MaxActiveKeys)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SweepInterval must be non-negative, got %s", c.SweepInterval)
	}
	if c.Backend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("RedisAddr is required when Backend is %q", BackendRedis)
	}
	if c.BreakerFailureThreshold < 0 || c.BreakerFailureThreshold > 1 {
		return fmt.Errorf("BreakerFailureThreshold must be within [0,1], got %v", c.BreakerFailureThreshold)
	}
	if c.BreakerTimeout < 0 {
		return fmt.Errorf("BreakerTimeout must be non-negative, got %s", c.BreakerTimeout)
	}
	return nil
}

// ApplyDefaults fills zero values with safe defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.MaxActiveKeys == 0 {
		c.MaxActiveKeys = defaultMaxKeys
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = defaultRedisPrefix
	}
	if c.BreakerFailureThreshold == 0 {
		c.BreakerFailureThreshold = 0.6
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// DefaultConfig returns a Config with safe default values.
func DefaultConfig() *Config {
	config := &Config{Enabled: true}
	config.ApplyDefaults()
	return config
}
