package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/metrics"
)

var (
	// ErrNotFound is returned when a requested entity is missing from the store.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateCard is returned when a payment already exists for the card number.
	ErrDuplicateCard = errors.New("storage: card number already used")

	// ErrPaymentNotRefundable is returned when refunding a payment whose status is not approved.
	ErrPaymentNotRefundable = errors.New("storage: payment is not refundable")

	// ErrExcessiveRefund is returned when a refund would push the refunded total past the payment amount.
	ErrExcessiveRefund = errors.New("storage: refund exceeds remaining payment amount")

	// ErrCorruptRecord is returned when a persisted row violates the data model.
	ErrCorruptRecord = errors.New("storage: corrupt record")
)

// Store captures the persistence requirements for the payment ledger.
//
// Implementations enforce the money invariants themselves: card numbers are
// unique across all payments, and CreateRefund checks the refunded total and
// inserts in one atomic step per payment. Callers never need in-process locks.
type Store interface {
	// CreatePayment records a payment with its final status.
	// Returns ErrDuplicateCard when the card number has been used before.
	CreatePayment(ctx context.Context, payment Payment) (Payment, error)
	CardNumberExists(ctx context.Context, cardNumber string) (bool, error)
	GetPayment(ctx context.Context, paymentID string) (Payment, error)

	// CreateRefund atomically validates and records a refund against an approved payment.
	// Returns ErrNotFound, ErrPaymentNotRefundable or ErrExcessiveRefund.
	CreateRefund(ctx context.Context, refund Refund) (Refund, error)
	GetRefund(ctx context.Context, paymentID, refundID string) (Refund, error)
	ListRefunds(ctx context.Context, paymentID string) ([]Refund, error)
	RefundedTotal(ctx context.Context, paymentID string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// StoreConfig holds storage backend configuration.
type StoreConfig struct {
	Backend      string // "memory" or "postgres"
	PostgresURL  string
	PostgresPool config.PostgresPoolConfig
	AutoMigrate  bool

	// Schema mapping
	PaymentsTableName string // Default: "payments"
	RefundsTableName  string // Default: "refunds"

	Metrics *metrics.Metrics
}

// StoreConfigFrom builds a StoreConfig from application configuration.
func StoreConfigFrom(cfg config.StorageConfig, m *metrics.Metrics) StoreConfig {
	return StoreConfig{
		Backend:           cfg.Backend,
		PostgresURL:       cfg.PostgresURL,
		PostgresPool:      cfg.PostgresPool,
		AutoMigrate:       cfg.AutoMigrate,
		PaymentsTableName: cfg.SchemaMapping.Payments.TableName,
		RefundsTableName:  cfg.SchemaMapping.Refunds.TableName,
		Metrics:           m,
	}
}

// NewStore creates a Store instance based on the provided configuration.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	return NewStoreWithDB(ctx, cfg, nil)
}

// NewStoreWithDB creates a Store instance with an optional shared database pool.
// If sharedDB is non-nil for the postgres backend it is used instead of opening a new connection.
func NewStoreWithDB(ctx context.Context, cfg StoreConfig, sharedDB *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		// Memory backend loses the ledger on restart and cannot coordinate
		// multiple instances. Development and tests only.
		return NewMemoryStore(), nil
	case "postgres":
		if cfg.PostgresURL == "" && sharedDB == nil {
			return nil, fmt.Errorf("postgres backend requires postgres_url")
		}
		var store *PostgresStore
		var err error
		if sharedDB != nil {
			store = NewPostgresStoreWithDB(sharedDB)
		} else {
			store, err = NewPostgresStore(ctx, cfg.PostgresURL, cfg.PostgresPool)
			if err != nil {
				return nil, err
			}
		}
		store = store.
			WithTableNames(cfg.PaymentsTableName, cfg.RefundsTableName).
			WithQueryTimeout(cfg.PostgresPool.QueryTimeout.Duration).
			WithMetrics(cfg.Metrics)
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// remaining returns how much of a payment is still refundable.
func remaining(paymentAmount, refunded int64) int64 {
	if refunded >= paymentAmount {
		return 0
	}
	return paymentAmount - refunded
}

// excessiveRefund wraps ErrExcessiveRefund with the refundable remainder.
func excessiveRefund(paymentAmount, refunded int64) error {
	return fmt.Errorf("%w: %d of %d remaining", ErrExcessiveRefund, remaining(paymentAmount, refunded), paymentAmount)
}
