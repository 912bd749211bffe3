// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/CedrosPay/cardpay/internal/logger"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(error) bool
}

// DefaultConfig retries three times after 100ms, 200ms and 400ms.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or attempts run out.
// name labels the retry log lines.
func Do(ctx context.Context, name string, cfg Config, op func() error) error {
	_, err := WithRetry(ctx, name, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// WithRetry is Do for operations that return a value.
func WithRetry[T any](ctx context.Context, name string, cfg Config, op func() (T, error)) (T, error) {
	var result T
	var err error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err = op()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return result, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.BaseDelay * time.Duration(1<<uint(attempt))
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Dur("retry_delay", delay).
			Msg("retry.attempt_failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	return result, err
}
