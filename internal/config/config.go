// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for
// zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	Database  DatabaseConfig   `yaml:"database"`
	Providers []ProviderConfig `yaml:"providers"`
	Routing   RoutingConfig    `yaml:"routing"`
	Cache     CacheConfig      `yaml:"cache"`
	Ask       AskConfig        `yaml:"ask"`
	Logging   LoggingConfig    `yaml:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// AuthConfig contains token verification and tenant provisioning settings.
type AuthConfig struct {
	JWTSecret     string      `yaml:"jwt_secret"`
	AutoProvision bool        `yaml:"auto_provision"`
	DefaultQuota  QuotaConfig `yaml:"default_quota"`
}

// QuotaConfig holds the limits assigned to newly provisioned tenants.
type QuotaConfig struct {
	DailyTokenLimit   int64 `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64 `yaml:"monthly_token_limit"`
	RequestsPerMinute int   `yaml:"requests_per_minute"`
	MaxConcurrent     int   `yaml:"max_concurrent"`
}

// DatabaseConfig contains tenant store settings. Driver "postgres" uses the
// DSN; driver "memory" keeps everything in-process and is meant for tests
// and local development.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ProviderConfig defines a single LLM provider configuration.
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers"`
}

// RoutingConfig contains provider selection settings.
type RoutingConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
}

// CacheConfig contains response cache settings. Type is "local" or "redis".
type CacheConfig struct {
	Type       string        `yaml:"type"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig contains redis connection settings for the cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AskConfig contains retrieval-augmented answering settings.
type AskConfig struct {
	Model           string `yaml:"model"`
	TopK            int    `yaml:"top_k"`
	MaxContextChars int    `yaml:"max_context_chars"`
	RetrieverURL    string `yaml:"retriever_url"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Auth: AuthConfig{
			AutoProvision: true,
			DefaultQuota: QuotaConfig{
				DailyTokenLimit:   100000,
				MonthlyTokenLimit: 500000,
				RequestsPerMinute: 20,
				MaxConcurrent:     0,
			},
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Routing: RoutingConfig{
			DefaultProvider: "gemini",
			DefaultModel:    "gemini-1.5-flash",
		},
		Cache: CacheConfig{
			Type:       "local",
			MaxEntries: 5000,
			TTL:        4 * time.Hour,
		},
		Ask: AskConfig{
			Model:           "gemini-1.5-flash",
			TopK:            4,
			MaxContextChars: 12000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "aigateway",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %d: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.APIKey == "" {
			return fmt.Errorf("provider %q: api_key is required", p.Name)
		}
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	switch c.Cache.Type {
	case "local":
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries must be positive")
		}
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache type: %q", c.Cache.Type)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if q := c.Auth.DefaultQuota; q.DailyTokenLimit <= 0 || q.MonthlyTokenLimit <= 0 {
		return fmt.Errorf("auth.default_quota limits must be positive")
	}

	if c.Ask.TopK <= 0 {
		return fmt.Errorf("ask.top_k must be positive")
	}

	return nil
}
