package config

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":4000"
	}
	c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.SchemaMapping.Payments.TableName == "" {
		c.Storage.SchemaMapping.Payments.TableName = "payments"
	}
	if c.Storage.SchemaMapping.Refunds.TableName == "" {
		c.Storage.SchemaMapping.Refunds.TableName = "refunds"
	}
	if c.Storage.PostgresPool.QueryTimeout.Duration <= 0 {
		c.Storage.PostgresPool.QueryTimeout = Duration{Duration: 5 * time.Second}
	}

	c.Accounts.Backend = strings.ToLower(strings.TrimSpace(c.Accounts.Backend))
	if c.Accounts.Backend == "" {
		c.Accounts.Backend = "dummy"
	}
	if c.Accounts.Timeout.Duration <= 0 {
		c.Accounts.Timeout = Duration{Duration: 10 * time.Second}
	}

	c.Idempotency.Backend = strings.ToLower(strings.TrimSpace(c.Idempotency.Backend))
	if c.Idempotency.Backend == "" {
		c.Idempotency.Backend = "memory"
	}
	if c.Idempotency.TTL.Duration <= 0 {
		c.Idempotency.TTL = Duration{Duration: 24 * time.Hour}
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, "storage.postgres_url (or DATABASE_URL) is required when storage.backend is 'postgres'")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is not supported (use memory or postgres)", c.Storage.Backend))
	}

	switch c.Accounts.Backend {
	case "dummy":
	case "http":
		if err := validateHTTPURL(c.Accounts.BaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("accounts.base_url: %v", err))
		}
	default:
		errs = append(errs, fmt.Sprintf("accounts.backend %q is not supported (use dummy or http)", c.Accounts.Backend))
	}

	if c.Idempotency.Enabled {
		switch c.Idempotency.Backend {
		case "memory":
		case "redis":
			if c.Idempotency.RedisURL == "" {
				errs = append(errs, "idempotency.redis_url is required when idempotency.backend is 'redis'")
			}
		default:
			errs = append(errs, fmt.Sprintf("idempotency.backend %q is not supported (use memory or redis)", c.Idempotency.Backend))
		}
	}

	if c.RateLimit.GlobalEnabled && c.RateLimit.GlobalLimit <= 0 {
		errs = append(errs, "rate_limit.global_limit must be positive when global limiting is enabled")
	}
	if c.RateLimit.PerIPEnabled && c.RateLimit.PerIPLimit <= 0 {
		errs = append(errs, "rate_limit.per_ip_limit must be positive when per-IP limiting is enabled")
	}

	if ratio := c.CircuitBreaker.Accounts.FailureRatio; ratio < 0 || ratio > 1 {
		errs = append(errs, "circuit_breaker.accounts.failure_ratio must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("required when accounts.backend is 'http'")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https":
	case "":
		return errors.New("missing scheme")
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
// If pool config is not specified, applies sensible defaults.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25 // default
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5 // default
	}

	// maxIdle cannot exceed maxOpen
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute // default
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
