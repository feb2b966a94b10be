// Package config reads process configuration from environment variables.
//
// Invalid values never abort startup: the default is used and a warning is
// logged, so a typo degrades to safe behaviour instead of a crash loop.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the value of key, or defaultValue when unset or empty.
func GetEnvString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt returns key parsed as an integer.
//
//	port := GetEnvInt("PORT", 8080)
func GetEnvInt(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		warnInvalid(key, valueStr, strconv.Itoa(defaultValue), err)
		return defaultValue
	}
	return value
}

// GetEnvFloat returns key parsed as a float64.
func GetEnvFloat(key string, defaultValue float64) float64 {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		warnInvalid(key, valueStr, strconv.FormatFloat(defaultValue, 'g', -1, 64), err)
		return defaultValue
	}
	return value
}

// GetEnvBool returns key parsed with strconv.ParseBool ("1", "true", "F", ...).
func GetEnvBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		warnInvalid(key, valueStr, strconv.FormatBool(defaultValue), err)
		return defaultValue
	}
	return value
}

// GetEnvDuration returns key parsed with time.ParseDuration ("30s", "1h30m").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		warnInvalid(key, valueStr, defaultValue.String(), err)
		return defaultValue
	}
	return value
}

// GetEnvStringList returns a comma-separated list with blanks removed.
//
//	// TRUSTED_PROXIES="10.0.0.0/8, 172.16.0.0/12"
//	proxies := GetEnvStringList("TRUSTED_PROXIES", nil)
func GetEnvStringList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func warnInvalid(key, value, defaultValue string, err error) {
	slog.Warn("invalid value for environment variable, using default",
		slog.String("key", key),
		slog.String("value", value),
		slog.String("default", defaultValue),
		slog.String("error", err.Error()))
}
