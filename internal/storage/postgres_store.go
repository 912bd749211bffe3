package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE Postgres reports for unique constraint conflicts.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db                *sql.DB
	ownsDB            bool   // Track if we created the DB connection (for Close())
	paymentsTableName string // Configurable table name (default: "payments")
	refundsTableName  string // Configurable table name (default: "refunds")
	queryTimeout      time.Duration
	metrics           *metrics.Metrics
}

// NewPostgresStore opens a connection pool and verifies it with a ping.
func NewPostgresStore(ctx context.Context, connectionString string, poolConfig config.PostgresPoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := withQueryTimeout(ctx, poolConfig.QueryTimeout.Duration)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		// The Close() error is not actionable here and would hide the ping failure.
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	store := NewPostgresStoreWithDB(db)
	store.ownsDB = true
	return store, nil
}

// NewPostgresStoreWithDB creates a PostgreSQL-backed store using an existing connection pool.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:                db,
		paymentsTableName: "payments",
		refundsTableName:  "refunds",
		queryTimeout:      DefaultQueryTimeout,
	}
}

// WithTableNames sets custom table names (for schema_mapping support).
func (s *PostgresStore) WithTableNames(payments, refunds string) *PostgresStore {
	if payments != "" {
		s.paymentsTableName = payments
	}
	if refunds != "" {
		s.refundsTableName = refunds
	}
	return s
}

// WithQueryTimeout overrides the per-query deadline applied when the caller has none.
func (s *PostgresStore) WithQueryTimeout(timeout time.Duration) *PostgresStore {
	if timeout > 0 {
		s.queryTimeout = timeout
	}
	return s
}

// WithMetrics enables query timing.
func (s *PostgresStore) WithMetrics(m *metrics.Metrics) *PostgresStore {
	s.metrics = m
	return s
}

// DB exposes the underlying pool for health checks and pool statistics.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) payments() string { return pq.QuoteIdentifier(s.paymentsTableName) }
func (s *PostgresStore) refunds() string  { return pq.QuoteIdentifier(s.refundsTableName) }

// Migrate creates the enum type, tables and indexes if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "migrate", "postgres")()

	schema := fmt.Sprintf(`
		DO $$ BEGIN
			CREATE TYPE payment_status AS ENUM ('processing', 'approved', 'declined', 'failed');
		EXCEPTION
			WHEN duplicate_object THEN NULL;
		END $$;

		CREATE TABLE IF NOT EXISTS %[1]s (
			id UUID PRIMARY KEY,
			amount BIGINT NOT NULL CHECK (amount >= 0),
			card_number TEXT NOT NULL,
			status payment_status NOT NULL,
			inserted_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT %[3]s UNIQUE (card_number)
		);

		CREATE TABLE IF NOT EXISTS %[2]s (
			id UUID PRIMARY KEY,
			payment_id UUID NOT NULL REFERENCES %[1]s (id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			inserted_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS %[4]s ON %[2]s (payment_id);
	`,
		s.payments(),
		s.refunds(),
		pq.QuoteIdentifier(s.paymentsTableName+"_card_number_key"),
		pq.QuoteIdentifier("idx_"+s.refundsTableName+"_payment_id"),
	)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

// CreatePayment inserts a payment. The unique constraint on card_number is the
// source of truth for card reuse, so concurrent first-time requests resolve here.
func (s *PostgresStore) CreatePayment(ctx context.Context, payment Payment) (Payment, error) {
	if err := validateAndPreparePayment(&payment, time.Now().UTC()); err != nil {
		return Payment{}, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "create_payment", "postgres")()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, amount, card_number, status, inserted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.payments())

	_, err := s.db.ExecContext(ctx, query,
		payment.ID,
		payment.Amount,
		payment.CardNumber,
		payment.Status,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isCardConflict(err) {
			return Payment{}, ErrDuplicateCard
		}
		return Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return payment, nil
}

// CardNumberExists reports whether any payment used the card number.
func (s *PostgresStore) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "card_number_exists", "postgres")()

	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE card_number = $1)`, s.payments())

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, cardNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("check card number: %w", err)
	}
	return exists, nil
}

// GetPayment retrieves a payment by id.
func (s *PostgresStore) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	id, err := normalizeID(paymentID)
	if err != nil {
		return Payment{}, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "get_payment", "postgres")()

	query := fmt.Sprintf(`
		SELECT id, amount, card_number, status, inserted_at, updated_at
		FROM %s
		WHERE id = $1
	`, s.payments())

	var p Payment
	err = s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Amount,
		&p.CardNumber,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, fmt.Errorf("query payment: %w", err)
	}
	return p, nil
}

// CreateRefund locks the payment row, sums existing refunds and inserts in one transaction.
// Concurrent refunds for the same payment queue on the row lock, so the sum they
// observe always includes every committed refund.
func (s *PostgresStore) CreateRefund(ctx context.Context, refund Refund) (Refund, error) {
	paymentID, err := normalizeID(refund.PaymentID)
	if err != nil {
		return Refund{}, err
	}
	refund.PaymentID = paymentID

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "create_refund", "postgres")()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Refund{}, fmt.Errorf("begin create refund tx: %w", err)
	}

	var paymentAmount int64
	var status Status
	lockQuery := fmt.Sprintf(`SELECT amount, status FROM %s WHERE id = $1 FOR UPDATE`, s.payments())
	err = tx.QueryRowContext(ctx, lockQuery, paymentID).Scan(&paymentAmount, &status)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return Refund{}, ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return Refund{}, fmt.Errorf("lock payment: %w", err)
	}
	if status != StatusApproved {
		tx.Rollback()
		return Refund{}, ErrPaymentNotRefundable
	}
	if err := validateAndPrepareRefund(&refund, time.Now().UTC()); err != nil {
		tx.Rollback()
		return Refund{}, err
	}

	var refunded int64
	sumQuery := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE payment_id = $1`, s.refunds())
	if err := tx.QueryRowContext(ctx, sumQuery, paymentID).Scan(&refunded); err != nil {
		tx.Rollback()
		return Refund{}, fmt.Errorf("sum refunds: %w", err)
	}
	if refund.Amount > paymentAmount-refunded {
		tx.Rollback()
		return Refund{}, excessiveRefund(paymentAmount, refunded)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, payment_id, amount, inserted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.refunds())
	if _, err := tx.ExecContext(ctx, insertQuery,
		refund.ID,
		refund.PaymentID,
		refund.Amount,
		refund.CreatedAt,
		refund.UpdatedAt,
	); err != nil {
		tx.Rollback()
		return Refund{}, fmt.Errorf("insert refund: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Refund{}, fmt.Errorf("commit create refund tx: %w", err)
	}
	return refund, nil
}

// GetRefund retrieves a refund that belongs to the given payment.
func (s *PostgresStore) GetRefund(ctx context.Context, paymentID, refundID string) (Refund, error) {
	pid, err := normalizeID(paymentID)
	if err != nil {
		return Refund{}, err
	}
	rid, err := normalizeID(refundID)
	if err != nil {
		return Refund{}, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "get_refund", "postgres")()

	query := fmt.Sprintf(`
		SELECT id, payment_id, amount, inserted_at, updated_at
		FROM %s
		WHERE id = $1 AND payment_id = $2
	`, s.refunds())

	var r Refund
	err = s.db.QueryRowContext(ctx, query, rid, pid).Scan(
		&r.ID,
		&r.PaymentID,
		&r.Amount,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Refund{}, ErrNotFound
	}
	if err != nil {
		return Refund{}, fmt.Errorf("query refund: %w", err)
	}
	return r, nil
}

// ListRefunds returns the refunds of a payment ordered by creation time.
func (s *PostgresStore) ListRefunds(ctx context.Context, paymentID string) ([]Refund, error) {
	pid, err := normalizeID(paymentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetPayment(ctx, pid); err != nil {
		return nil, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "list_refunds", "postgres")()

	query := fmt.Sprintf(`
		SELECT id, payment_id, amount, inserted_at, updated_at
		FROM %s
		WHERE payment_id = $1
		ORDER BY inserted_at ASC, id ASC
	`, s.refunds())

	rows, err := s.db.QueryContext(ctx, query, pid)
	if err != nil {
		return nil, fmt.Errorf("query refunds: %w", err)
	}
	defer rows.Close()

	refunds := make([]Refund, 0)
	for rows.Next() {
		var r Refund
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.Amount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		refunds = append(refunds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refunds: %w", err)
	}
	return refunds, nil
}

// RefundedTotal sums the refunds recorded against a payment.
func (s *PostgresStore) RefundedTotal(ctx context.Context, paymentID string) (int64, error) {
	pid, err := normalizeID(paymentID)
	if err != nil {
		return 0, err
	}
	if _, err := s.GetPayment(ctx, pid); err != nil {
		return 0, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	defer metrics.MeasureDBQuery(s.metrics, "refunded_total", "postgres")()

	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE payment_id = $1`, s.refunds())

	var total int64
	if err := s.db.QueryRowContext(ctx, query, pid).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum refunds: %w", err)
	}
	return total, nil
}

// Ping verifies the database is reachable and records pool statistics.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()
	s.metrics.ObserveDBStats(s.db.Stats())
	return s.db.PingContext(ctx)
}

// Close closes the database connection if this store opened it.
func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// isCardConflict reports whether err is a unique violation on the card_number constraint.
func isCardConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && strings.Contains(pqErr.Constraint, "card_number")
}
