// Package config loads client and server settings from a YAML file or from
// DATA_GOV_IN_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
)

// Config holds all settings for the data.gov.in client and MCP server.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	RateLimit RateLimitConfig    `yaml:"rate_limit"`
	Cache     CacheConfig        `yaml:"cache"`
	Retry     RetryConfig        `yaml:"retry"`
	Page      PageConfig         `yaml:"pagination"`
	Audit     models.AuditConfig `yaml:"audit"`
}

// RateLimitConfig bounds the client-side call rate.
type RateLimitConfig struct {
	Calls  int           `yaml:"calls"`
	Period time.Duration `yaml:"period"`

	// RedisAddr switches to the Redis-backed shared limiter when set, for
	// running several instances against one upstream quota.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// CacheConfig controls the in-memory response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
}

// RetryConfig controls retry of transient network failures.
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	Delay         time.Duration `yaml:"delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// PageConfig bounds pagination parameters.
type PageConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Default returns a Config with the standard data.gov.in settings.
func Default() *Config {
	return &Config{
		BaseURL: "https://api.data.gov.in",
		Timeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Calls:  100,
			Period: time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
			MaxSize: 1000,
		},
		Retry: RetryConfig{
			MaxRetries:    3,
			Delay:         time.Second,
			BackoffFactor: 2.0,
		},
		Page: PageConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Audit: models.AuditConfig{
			DBPath:        "datagov_audit.db",
			RetentionDays: 30,
		},
	}
}

// Load reads a YAML config file over the defaults, expanding ${VAR}
// references from the environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from DATA_GOV_IN_* environment variables over the
// defaults. Durations are plain integer seconds to match the variables the
// server has always documented (DATA_GOV_IN_TIMEOUT=30 and so on).
func FromEnv() *Config {
	cfg := Default()

	cfg.APIKey = envString("DATA_GOV_IN_API_KEY", cfg.APIKey)
	cfg.BaseURL = envString("DATA_GOV_IN_BASE_URL", cfg.BaseURL)
	cfg.Timeout = envSeconds("DATA_GOV_IN_TIMEOUT", cfg.Timeout)

	cfg.RateLimit.Calls = envInt("DATA_GOV_IN_RATE_LIMIT_CALLS", cfg.RateLimit.Calls)
	cfg.RateLimit.Period = envSeconds("DATA_GOV_IN_RATE_LIMIT_PERIOD", cfg.RateLimit.Period)
	cfg.RateLimit.RedisAddr = envString("DATA_GOV_IN_REDIS_ADDR", cfg.RateLimit.RedisAddr)

	cfg.Cache.Enabled = envBool("DATA_GOV_IN_CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.TTL = envSeconds("DATA_GOV_IN_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.MaxSize = envInt("DATA_GOV_IN_CACHE_MAX_SIZE", cfg.Cache.MaxSize)

	cfg.Retry.MaxRetries = envInt("DATA_GOV_IN_MAX_RETRIES", cfg.Retry.MaxRetries)
	cfg.Retry.Delay = envFloatSeconds("DATA_GOV_IN_RETRY_DELAY", cfg.Retry.Delay)
	cfg.Retry.BackoffFactor = envFloat("DATA_GOV_IN_BACKOFF_FACTOR", cfg.Retry.BackoffFactor)

	cfg.Page.DefaultLimit = envInt("DATA_GOV_IN_DEFAULT_LIMIT", cfg.Page.DefaultLimit)
	cfg.Page.MaxLimit = envInt("DATA_GOV_IN_MAX_LIMIT", cfg.Page.MaxLimit)

	cfg.Audit.Enabled = envBool("DATA_GOV_IN_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.DBPath = envString("DATA_GOV_IN_AUDIT_DB", cfg.Audit.DBPath)

	return cfg
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.RateLimit.Calls <= 0 {
		return fmt.Errorf("rate_limit.calls must be positive, got %d", c.RateLimit.Calls)
	}
	if c.RateLimit.Period <= 0 {
		return fmt.Errorf("rate_limit.period must be positive, got %v", c.RateLimit.Period)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be non-negative, got %v", c.Cache.TTL)
	}
	if c.Cache.Enabled && c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got %d", c.Cache.MaxSize)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be non-negative, got %d", c.Retry.MaxRetries)
	}
	if c.Page.DefaultLimit <= 0 || c.Page.DefaultLimit > c.Page.MaxLimit {
		return fmt.Errorf("pagination.default_limit must be between 1 and %d, got %d",
			c.Page.MaxLimit, c.Page.DefaultLimit)
	}
	return nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envFloatSeconds(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}
