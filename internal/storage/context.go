package storage

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout is the maximum time allowed for database queries.
	DefaultQueryTimeout = 5 * time.Second
)

// withQueryTimeout wraps the context with a query timeout unless the caller already set a deadline.
func withQueryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
