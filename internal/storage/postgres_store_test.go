package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/lib/pq"
)

// TestPostgresStore runs the store suite against a real database.
// Set CARDPAY_TEST_POSTGRES_URL to enable it.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CARDPAY_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("CARDPAY_TEST_POSTGRES_URL not set")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		ctx := context.Background()
		store, err := NewPostgresStore(ctx, dsn, config.PostgresPoolConfig{MaxOpenConns: 10})
		if err != nil {
			t.Fatalf("NewPostgresStore: %v", err)
		}
		store.WithTableNames("cardpay_test_payments", "cardpay_test_refunds")
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		// Running it twice must be harmless.
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("second Migrate: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestIsCardConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"card constraint", &pq.Error{Code: "23505", Constraint: "payments_card_number_key"}, true},
		{"wrapped", wrap(&pq.Error{Code: "23505", Constraint: "payments_card_number_key"}), true},
		{"primary key", &pq.Error{Code: "23505", Constraint: "payments_pkey"}, false},
		{"other code", &pq.Error{Code: "23503", Constraint: "refunds_payment_id_fkey"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isCardConflict(tt.err); got != tt.want {
				t.Errorf("isCardConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresStore_TableNames(t *testing.T) {
	store := NewPostgresStoreWithDB(nil).WithTableNames("card payments", "")
	if got := store.payments(); got != `"card payments"` {
		t.Errorf("expected quoted identifier, got %s", got)
	}
	if got := store.refunds(); got != `"refunds"` {
		t.Errorf("expected default refunds table, got %s", got)
	}
}

func wrap(err error) error {
	return errors.Join(errors.New("insert payment"), err)
}
