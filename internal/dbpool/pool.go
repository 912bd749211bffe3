package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/metrics"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const pingTimeout = 10 * time.Second

// SharedPool owns the PostgreSQL connection pool used by the ledger store.
type SharedPool struct {
	db *sql.DB
}

// NewSharedPool opens and pings a PostgreSQL pool configured from poolConfig.
func NewSharedPool(ctx context.Context, connectionString string, poolConfig config.PostgresPoolConfig) (*SharedPool, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)
	return &SharedPool{db: db}, nil
}

// DB returns the underlying pool.
func (p *SharedPool) DB() *sql.DB {
	return p.db
}

// ReportStats publishes pool gauges every interval until ctx is done.
func (p *SharedPool) ReportStats(ctx context.Context, m *metrics.Metrics, interval time.Duration) {
	if m == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ObserveDBStats(p.db.Stats())
		}
	}
}

// Close closes the pool. Call once at shutdown.
func (p *SharedPool) Close() error {
	return p.db.Close()
}
