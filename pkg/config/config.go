package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Cache backends.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds permission cache settings.
type CacheConfig struct {
	Backend       string `yaml:"backend"`
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	MemorySize    int    `yaml:"memory_size"`
}

// ObservabilityConfig holds logging and metrics settings. LogLevelName is
// the serialized form; LogLevel is derived from it after loading.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel `yaml:"-"`
	LogLevelName   string                 `yaml:"log_level"`
	MetricsEnabled bool                   `yaml:"metrics_enabled"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/gatehouse?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:    CacheBackendRedis,
			RedisURL:   "redis://localhost:6379/0",
			RedisDB:    -1,
			MemorySize: 16384,
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.InfoLevel,
			MetricsEnabled: true,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by GATEHOUSE_CONFIG_FILE, and GATEHOUSE_* environment variables, in
// that order. Environment always wins.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("GATEHOUSE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays settings from a YAML file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.Observability.LogLevelName != "" {
		c.Observability.LogLevel = observability.ParseLogLevel(c.Observability.LogLevelName)
	}
	return nil
}

// loadEnv overlays settings from GATEHOUSE_* environment variables.
func (c *Config) loadEnv() {
	if url := getEnv("GATEHOUSE_POSTGRES_URL", ""); url != "" {
		c.Database.URL = url
	}
	if maxConns := getEnvInt("GATEHOUSE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		c.Database.MaxOpenConns = maxConns
	}
	if idleConns := getEnvInt("GATEHOUSE_POSTGRES_IDLE_CONNS", 0); idleConns > 0 {
		c.Database.MaxIdleConns = idleConns
	}
	if lifetime := getEnvDuration("GATEHOUSE_POSTGRES_CONN_LIFETIME", 0); lifetime > 0 {
		c.Database.ConnMaxLifetime = lifetime
	}

	if backend := getEnv("GATEHOUSE_CACHE_BACKEND", ""); backend != "" {
		c.Cache.Backend = strings.ToLower(backend)
	}
	if redisURL := getEnv("GATEHOUSE_REDIS_URL", ""); redisURL != "" {
		c.Cache.RedisURL = redisURL
	}
	if redisPassword := getEnv("GATEHOUSE_REDIS_PASSWORD", ""); redisPassword != "" {
		c.Cache.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("GATEHOUSE_REDIS_DB", -1); redisDB >= 0 {
		c.Cache.RedisDB = redisDB
	}
	if size := getEnvInt("GATEHOUSE_MEMORY_CACHE_SIZE", 0); size > 0 {
		c.Cache.MemorySize = size
	}

	if level := getEnv("GATEHOUSE_LOG_LEVEL", ""); level != "" {
		c.Observability.LogLevel = observability.ParseLogLevel(level)
	}
	if enabled := getEnv("GATEHOUSE_METRICS_ENABLED", ""); enabled != "" {
		c.Observability.MetricsEnabled = strings.ToLower(enabled) == "true" || enabled == "1"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max idle connections (%d) cannot exceed max open connections (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Cache.Backend {
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache backend")
		}
	case CacheBackendMemory:
		if c.Cache.MemorySize <= 0 {
			return fmt.Errorf("memory cache size must be positive")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be redis or memory)", c.Cache.Backend)
	}

	return nil
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
