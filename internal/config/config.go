package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Beacon server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// RateLimitConfig carries per-second budgets for the two traffic scopes.
// Ingest gets a higher default budget than analytics reads.
type RateLimitConfig struct {
	IngestPerSecond int
	ReadPerSecond   int
}

// CacheConfig carries TTLs for the cache-aside analytics queries.
type CacheConfig struct {
	EventSummaryTTL time.Duration
	UserStatsTTL    time.Duration
}

// AuthConfig configures the placeholder dev auth used for app registration
// and key management until a real identity provider is wired in.
type AuthConfig struct {
	DevUserEmail string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("BEACON_PORT", 8080),
			Env:  envString("BEACON_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			IngestPerSecond: envInt("INGEST_RPS_LIMIT", 100),
			ReadPerSecond:   envInt("READ_RPS_LIMIT", 20),
		},
		Cache: CacheConfig{
			EventSummaryTTL: envDurationSecs("CACHE_TTL_SUMMARY_SECS", 90*time.Second),
			UserStatsTTL:    envDurationSecs("CACHE_TTL_USER_STATS_SECS", 60*time.Second),
		},
		Auth: AuthConfig{
			DevUserEmail: os.Getenv("DEV_USER_EMAIL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.RateLimit.IngestPerSecond <= 0 {
		return fmt.Errorf("INGEST_RPS_LIMIT must be positive, got %d", c.RateLimit.IngestPerSecond)
	}
	if c.RateLimit.ReadPerSecond <= 0 {
		return fmt.Errorf("READ_RPS_LIMIT must be positive, got %d", c.RateLimit.ReadPerSecond)
	}

	if c.Cache.EventSummaryTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SUMMARY_SECS must be positive")
	}
	if c.Cache.UserStatsTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_USER_STATS_SECS must be positive")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
