package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

// IntFromEnv returns the positive integer in key, or def.
func IntFromEnv(key string, def int) int {
	if n := intFromEnv(key, def); n > 0 {
		return n
	}
	return def
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// SkipMigrations disables AutoMigrate on startup (SKIP_MIGRATIONS=true).
func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS")
}

// RateLimitEnabled turns on the redis fixed-window limiter (RATE_LIMIT_ENABLED=true).
func RateLimitEnabled() bool {
	return boolFromEnv("RATE_LIMIT_ENABLED")
}

func RateLimitMaxRequests() int64 {
	return int64(IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600))
}

func RateLimitWindow() time.Duration {
	return time.Duration(IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
}

// ReportCacheEnabled caches stats responses in redis (ENABLE_REPORT_CACHE=true).
func ReportCacheEnabled() bool {
	return boolFromEnv("ENABLE_REPORT_CACHE")
}

// ReportCacheTTL is REPORT_CACHE_TTL_SECONDS, default 120s.
func ReportCacheTTL() time.Duration {
	return time.Duration(IntFromEnv("REPORT_CACHE_TTL_SECONDS", 120)) * time.Second
}

// ReportSlowThreshold is REPORT_SLOW_MS, default 500ms.
func ReportSlowThreshold() time.Duration {
	return time.Duration(IntFromEnv("REPORT_SLOW_MS", 500)) * time.Millisecond
}
