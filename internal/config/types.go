package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Storage        StorageConfig        `yaml:"storage"`
	Accounts       AccountsConfig       `yaml:"accounts"`
	Idempotency    IdempotencyConfig    `yaml:"idempotency"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	RoutePrefix        string   `yaml:"route_prefix"`          // Optional prefix for all routes (e.g., "/api")
	AdminMetricsAPIKey string   `yaml:"admin_metrics_api_key"` // Optional bearer key protecting /metrics
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // Maximum number of open connections (default: 25)
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // Maximum number of idle connections (default: 5)
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // Maximum lifetime of connections (default: 5m)
	QueryTimeout    Duration `yaml:"query_timeout"`     // Per-query deadline (default: 5s)
}

// StorageConfig holds ledger storage configuration.
type StorageConfig struct {
	Backend       string              `yaml:"backend"`        // "memory" or "postgres"
	PostgresURL   string              `yaml:"postgres_url"`   // PostgreSQL connection string
	PostgresPool  PostgresPoolConfig  `yaml:"postgres_pool"`  // PostgreSQL connection pool settings
	AutoMigrate   bool                `yaml:"auto_migrate"`   // Create schema on startup (default: true)
	SchemaMapping SchemaMappingConfig `yaml:"schema_mapping"` // Table name mappings
}

// SchemaMappingConfig holds table name mappings for custom schemas.
type SchemaMappingConfig struct {
	Payments TableMappingConfig `yaml:"payments"`
	Refunds  TableMappingConfig `yaml:"refunds"`
}

// TableMappingConfig defines a single table mapping.
type TableMappingConfig struct {
	TableName string `yaml:"table_name"`
}

// AccountsConfig selects and configures the accounts service used for authorization holds.
type AccountsConfig struct {
	Backend string   `yaml:"backend"`  // "dummy" or "http"
	BaseURL string   `yaml:"base_url"` // Accounts service root URL (http backend)
	Timeout Duration `yaml:"timeout"`  // HTTP client timeout (default: 10s)
}

// IdempotencyConfig controls Idempotency-Key handling on create endpoints.
type IdempotencyConfig struct {
	Enabled  bool     `yaml:"enabled"`   // default: true
	Backend  string   `yaml:"backend"`   // "memory" or "redis"
	RedisURL string   `yaml:"redis_url"` // redis://host:6379/0
	TTL      Duration `yaml:"ttl"`       // How long responses are replayable (default: 24h)
}

// RateLimitConfig holds rate limiting configuration.
// Protects the accounts service, which degrades under load.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`

	PerIPEnabled bool     `yaml:"per_ip_enabled"`
	PerIPLimit   int      `yaml:"per_ip_limit"`
	PerIPWindow  Duration `yaml:"per_ip_window"`
}

// CircuitBreakerConfig holds circuit breaker configuration for external services.
type CircuitBreakerConfig struct {
	Enabled  bool                 `yaml:"enabled"`  // Enable circuit breakers (default: true)
	Accounts BreakerServiceConfig `yaml:"accounts"` // Accounts service breaker
}

// BreakerServiceConfig configures a circuit breaker for a specific external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // Max requests in half-open state (default: 3)
	Interval            Duration `yaml:"interval"`             // Stats reset interval in closed state (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // Open state timeout before half-open (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Consecutive failures to trip (default: 5)
	FailureRatio        float64  `yaml:"failure_ratio"`        // Failure ratio to trip 0.0-1.0 (default: 0.5)
	MinRequests         uint32   `yaml:"min_requests"`         // Minimum requests before checking ratio (default: 10)
}
