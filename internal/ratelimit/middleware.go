// Package ratelimit shields the accounts service from request floods.
package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/CedrosPay/cardpay/internal/config"
	apierrors "github.com/CedrosPay/cardpay/internal/errors"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/go-chi/httprate"
)

// Config holds rate limiting configuration.
type Config struct {
	// Global rate limiting (across all clients)
	GlobalEnabled bool
	GlobalLimit   int           // requests per window
	GlobalWindow  time.Duration // time window

	// Per-IP rate limiting
	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default limits: 1000 req/min overall, 120 req/min per IP.
func DefaultConfig() Config {
	return Config{
		GlobalEnabled: true,
		GlobalLimit:   1000,
		GlobalWindow:  time.Minute,

		PerIPEnabled: true,
		PerIPLimit:   120,
		PerIPWindow:  time.Minute,
	}
}

// ConfigFrom converts application configuration.
func ConfigFrom(cfg config.RateLimitConfig, m *metrics.Metrics) Config {
	return Config{
		GlobalEnabled: cfg.GlobalEnabled,
		GlobalLimit:   cfg.GlobalLimit,
		GlobalWindow:  cfg.GlobalWindow.Duration,
		PerIPEnabled:  cfg.PerIPEnabled,
		PerIPLimit:    cfg.PerIPLimit,
		PerIPWindow:   cfg.PerIPWindow.Duration,
		Metrics:       m,
	}
}

// limitHandler answers a rejected request with the standard error body.
func limitHandler(limitType string, window time.Duration, identify func(*http.Request) string, m *metrics.Metrics) http.HandlerFunc {
	retryAfter := int(window.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	return func(w http.ResponseWriter, r *http.Request) {
		identifier := "all"
		if identify != nil {
			if id := identify(r); id != "" {
				identifier = id
			}
		}
		m.ObserveRateLimit(limitType, identifier)

		message := "Rate limit exceeded. Please try again later."
		if limitType == "global" {
			message = "Global rate limit exceeded. Please try again later."
		}

		resp := apierrors.NewErrorResponse(apierrors.ErrCodeRateLimited, message, apierrors.Details{
			"limit_type":          limitType,
			"retry_after_seconds": retryAfter,
		})
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		resp.WriteJSON(w)
	}
}

// GlobalLimiter caps the total request rate across all clients.
func GlobalLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return passthrough
	}

	return httprate.Limit(
		cfg.GlobalLimit,
		cfg.GlobalWindow,
		httprate.WithKeyFuncs(func(*http.Request) (string, error) { return "global", nil }),
		httprate.WithLimitHandler(limitHandler("global", cfg.GlobalWindow, nil, cfg.Metrics)),
	)
}

// IPLimiter caps the request rate per client IP.
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return passthrough
	}

	return httprate.Limit(
		cfg.PerIPLimit,
		cfg.PerIPWindow,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(limitHandler("per_ip", cfg.PerIPWindow, func(r *http.Request) string {
			ip, _ := httprate.KeyByIP(r)
			return ip
		}, cfg.Metrics)),
	)
}

func passthrough(next http.Handler) http.Handler {
	return next
}
