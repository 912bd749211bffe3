package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use the CARDPAY_ prefix, except DATABASE_URL which is honoured as a fallback.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "CARDPAY_SERVER_ADDRESS")
	setIfEnv(&c.Server.RoutePrefix, "CARDPAY_ROUTE_PREFIX")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "CARDPAY_ADMIN_METRICS_API_KEY")
	if v := os.Getenv("CARDPAY_CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = splitList(v)
	}

	// Normalize route prefix: ensure it starts with / and doesn't end with /
	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}

	// Logging config
	setIfEnv(&c.Logging.Level, "CARDPAY_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "CARDPAY_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "CARDPAY_ENVIRONMENT")

	// Storage config
	setIfEnv(&c.Storage.Backend, "CARDPAY_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "DATABASE_URL")
	setIfEnv(&c.Storage.PostgresURL, "CARDPAY_POSTGRES_URL")
	setIntIfEnv(&c.Storage.PostgresPool.MaxOpenConns, "CARDPAY_POSTGRES_MAX_OPEN_CONNS")
	setDurationIfEnv(&c.Storage.PostgresPool.QueryTimeout, "CARDPAY_POSTGRES_QUERY_TIMEOUT")
	setBoolIfEnv(&c.Storage.AutoMigrate, "CARDPAY_STORAGE_AUTO_MIGRATE")

	// Accounts config
	setIfEnv(&c.Accounts.Backend, "CARDPAY_ACCOUNTS_BACKEND")
	setIfEnv(&c.Accounts.BaseURL, "CARDPAY_ACCOUNTS_BASE_URL")
	setDurationIfEnv(&c.Accounts.Timeout, "CARDPAY_ACCOUNTS_TIMEOUT")

	// Idempotency config
	setBoolIfEnv(&c.Idempotency.Enabled, "CARDPAY_IDEMPOTENCY_ENABLED")
	setIfEnv(&c.Idempotency.Backend, "CARDPAY_IDEMPOTENCY_BACKEND")
	setIfEnv(&c.Idempotency.RedisURL, "CARDPAY_REDIS_URL")
	setDurationIfEnv(&c.Idempotency.TTL, "CARDPAY_IDEMPOTENCY_TTL")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.GlobalEnabled, "CARDPAY_RATE_LIMIT_GLOBAL_ENABLED")
	setIntIfEnv(&c.RateLimit.GlobalLimit, "CARDPAY_RATE_LIMIT_GLOBAL_LIMIT")
	setBoolIfEnv(&c.RateLimit.PerIPEnabled, "CARDPAY_RATE_LIMIT_PER_IP_ENABLED")
	setIntIfEnv(&c.RateLimit.PerIPLimit, "CARDPAY_RATE_LIMIT_PER_IP_LIMIT")

	// Circuit breaker config
	setBoolIfEnv(&c.CircuitBreaker.Enabled, "CARDPAY_CIRCUIT_BREAKER_ENABLED")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setIntIfEnv sets an int pointer from an environment variable, ignoring unparsable values.
func setIntIfEnv(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = n
		}
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
// Uses time.ParseDuration to parse values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalizeRoutePrefix ensures the prefix starts with / and doesn't end with /.
// Examples: "api" -> "/api", "/api/" -> "/api"
func normalizeRoutePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
