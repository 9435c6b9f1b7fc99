// Package config provides environment-driven configuration for buildhub.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL        Secret
	Port               string
	ListenHost         string
	MetricsPort        string
	CORSOrigins        []string
	LogLevel           string
	JWTSecret          Secret
	RedisAddr          string
	SDKCacheTTL        time.Duration
	DBMaxConns         int32
	AuditQueueSize     int
	AuditRetentionDays int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: Secret(envOrDefault("DATABASE_URL", "")),
		Port:        envOrDefault("PORT", "3030"),
		ListenHost:  envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MetricsPort: envOrDefault("METRICS_PORT", "9091"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		JWTSecret:   Secret(envOrDefault("JWT_SECRET", "")),
		RedisAddr:   envOrDefault("REDIS_ADDR", ""),
	}

	maxConns, err := strconv.Atoi(envOrDefault("DB_MAX_CONNS", "21"))
	if err != nil || maxConns < 2 || maxConns > 200 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be an integer between 2 and 200")
	}
	cfg.DBMaxConns = int32(maxConns)

	queueSize, err := strconv.Atoi(envOrDefault("AUDIT_QUEUE_SIZE", "1000"))
	if err != nil || queueSize < 1 || queueSize > 100000 {
		return nil, fmt.Errorf("AUDIT_QUEUE_SIZE must be an integer between 1 and 100000")
	}
	cfg.AuditQueueSize = queueSize

	retention, err := strconv.Atoi(envOrDefault("AUDIT_RETENTION_DAYS", "90"))
	if err != nil || retention < 0 || retention > 3650 {
		return nil, fmt.Errorf("AUDIT_RETENTION_DAYS must be an integer between 0 and 3650")
	}
	cfg.AuditRetentionDays = retention

	ttl, err := time.ParseDuration(envOrDefault("SDK_CACHE_TTL", "30s"))
	if err != nil || ttl < time.Second || ttl > time.Hour {
		return nil, fmt.Errorf("SDK_CACHE_TTL must be a duration between 1s and 1h")
	}
	cfg.SDKCacheTTL = ttl

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the Prometheus listen address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

// CacheEnabled reports whether SDK payloads are cached in Redis.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
