// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the whole service configuration.
type Config struct {
	// App
	AppEnv   string // development, staging, production
	AppDebug bool

	// PostgreSQL
	DatabaseURL string

	// StoreConnections is how many pooled store connections the load
	// balancer spreads reads and writes over.
	StoreConnections int

	// Redis (optional, enables the cross-instance bridge)
	RedisURL     string
	RedisEnabled bool

	// HTTP Server
	HTTPHost string
	HTTPPort int

	// Engine tuning
	CacheCapacity   int
	BatchSize       int
	FlushInterval   time.Duration
	MaxConcurrent   int
	CallTimeout     time.Duration
	SweepInterval   time.Duration
	HealthInterval  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		AppDebug:         getEnvBool("APP_DEBUG", false),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		StoreConnections: getEnvInt("STORE_CONNECTIONS", 4),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisEnabled:     getEnvBool("REDIS_ENABLED", false),
		HTTPHost:         getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		CacheCapacity:    getEnvInt("CACHE_CAPACITY", 1000),
		BatchSize:        getEnvInt("UPDATE_BATCH_SIZE", 100),
		FlushInterval:    getEnvDuration("UPDATE_FLUSH_INTERVAL", 50*time.Millisecond),
		MaxConcurrent:    getEnvInt("UPDATE_MAX_CONCURRENT", 1000),
		CallTimeout:      getEnvDuration("CALL_TIMEOUT", 5*time.Second),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Minute),
		HealthInterval:   getEnvDuration("HEALTH_INTERVAL", 30*time.Second),
		ShutdownTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisEnabled && cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required when REDIS_ENABLED is set")
	}
	if cfg.StoreConnections < 1 {
		cfg.StoreConnections = 1
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ENV HELPERS
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
