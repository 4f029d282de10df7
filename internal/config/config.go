package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Config holds the service configuration.
type Config struct {
	Environment string
	Addr        string

	SnapshotDriver string // "postgres" or "sqlite"
	DatabaseURL    string
	SQLitePath     string

	RedisAddr           string
	RateLimitCapacity   int
	RateLimitRefillRate int
	MaxBodyBytes        int64
	IPAllowlist         []string

	DateToleranceDays int
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:         getenv("APP_ENV", "development"),
		Addr:                getenv("API_ADDR", ":8080"),
		SnapshotDriver:      getenv("SNAPSHOT_DRIVER", "postgres"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          getenv("SQLITE_PATH", "conciliador.db"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RateLimitCapacity:   getenvInt("API_RATE_LIMIT_CAPACITY", 20),
		RateLimitRefillRate: getenvInt("API_RATE_LIMIT_REFILL_PER_SEC", 10),
		MaxBodyBytes:        int64(getenvInt("API_MAX_BODY_BYTES", 8<<20)),
		DateToleranceDays:   getenvInt("MATCH_DATE_TOLERANCE_DAYS", 3),
	}

	if raw := os.Getenv("API_IP_ALLOWLIST"); raw != "" {
		cfg.IPAllowlist = strings.Split(raw, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.SnapshotDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when SNAPSHOT_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when SNAPSHOT_DRIVER=sqlite")
		}
	default:
		return errors.New("SNAPSHOT_DRIVER must be postgres or sqlite, got " + c.SnapshotDriver)
	}

	if c.DateToleranceDays < 0 {
		return errors.New("MATCH_DATE_TOLERANCE_DAYS must not be negative")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
