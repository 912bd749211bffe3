package refunds

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/CedrosPay/cardpay/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPayment(t *testing.T, store storage.Store, card string, amount int64, status storage.Status) storage.Payment {
	t.Helper()
	payment, err := store.CreatePayment(context.Background(), storage.Payment{
		Amount:     amount,
		CardNumber: card,
		Status:     status,
	})
	require.NoError(t, err)
	return payment
}

func TestCreateRefund_FullAmountInParts(t *testing.T) {
	store := storage.NewMemoryStore()
	p := NewProcessor(store, nil)
	payment := seedPayment(t, store, "123451234512345", 1000, storage.StatusApproved)
	ctx := context.Background()

	for _, amount := range []int64{200, 500, 300} {
		result, err := p.CreateRefund(ctx, payment.ID, amount)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, result.Outcome)
		assert.Equal(t, http.StatusCreated, result.Outcome.HTTPStatus())
		require.NotNil(t, result.Refund)
		assert.Equal(t, payment.ID, result.Refund.PaymentID)
		assert.Equal(t, amount, result.Refund.Amount)
	}

	total, err := store.RefundedTotal(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)

	result, err := p.CreateRefund(ctx, payment.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExcessiveRefund, result.Outcome)
}

func TestCreateRefund_Excessive(t *testing.T) {
	store := storage.NewMemoryStore()
	p := NewProcessor(store, nil)
	payment := seedPayment(t, store, "123451234512345", 1000, storage.StatusApproved)
	ctx := context.Background()

	result, err := p.CreateRefund(ctx, payment.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)

	result, err = p.CreateRefund(ctx, payment.ID, 900)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExcessiveRefund, result.Outcome)
	assert.Equal(t, http.StatusUnprocessableEntity, result.Outcome.HTTPStatus())
	assert.Nil(t, result.Refund)

	refunds, err := store.ListRefunds(ctx, payment.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 1)
}

func TestCreateRefund_NotRefundable(t *testing.T) {
	store := storage.NewMemoryStore()
	p := NewProcessor(store, nil)
	declined := seedPayment(t, store, "111111111111111", 1000, storage.StatusDeclined)
	failed := seedPayment(t, store, "222222222222222", 1000, storage.StatusFailed)

	tests := []struct {
		name      string
		paymentID string
	}{
		{"declined", declined.ID},
		{"failed", failed.ID},
		{"missing", uuid.NewString()},
		{"malformed", "not-a-uuid"},
		{"empty", ""},
	}
	for _, tt := range tests {
		for _, amount := range []int64{-10, 0, 1, 1000, 5000} {
			result, err := p.CreateRefund(context.Background(), tt.paymentID, amount)
			require.NoError(t, err, tt.name)
			assert.Equal(t, OutcomeNotRefundable, result.Outcome, "%s amount=%d", tt.name, amount)
			assert.Equal(t, http.StatusNotFound, result.Outcome.HTTPStatus())
		}
	}
}

func TestCreateRefund_InvalidAmount(t *testing.T) {
	store := storage.NewMemoryStore()
	p := NewProcessor(store, nil)
	payment := seedPayment(t, store, "123451234512345", 1000, storage.StatusApproved)

	for _, amount := range []int64{0, -1, -1000} {
		result, err := p.CreateRefund(context.Background(), payment.ID, amount)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInvalidAmount, result.Outcome)
		assert.Equal(t, http.StatusUnprocessableEntity, result.Outcome.HTTPStatus())
	}
}

func TestCreateRefund_Concurrent(t *testing.T) {
	store := storage.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	p := NewProcessor(store, m)
	payment := seedPayment(t, store, "123451234512345", 1000, storage.StatusApproved)

	const workers = 20
	var wg sync.WaitGroup
	outcomes := make([]Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := p.CreateRefund(context.Background(), payment.ID, 150)
			if err != nil {
				t.Errorf("CreateRefund: %v", err)
				return
			}
			outcomes[i] = result.Outcome
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == OutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 6, created)

	total, err := store.RefundedTotal(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), total)
	assert.Equal(t, float64(6), testutil.ToFloat64(m.RefundsTotal.WithLabelValues("created")))
	assert.Equal(t, float64(14), testutil.ToFloat64(m.RefundsTotal.WithLabelValues("excessive_refund")))
	assert.Equal(t, float64(900), testutil.ToFloat64(m.RefundAmountTotal))
}

type brokenStore struct {
	*storage.MemoryStore
}

func (brokenStore) GetPayment(context.Context, string) (storage.Payment, error) {
	return storage.Payment{}, errors.New("connection reset")
}

func TestCreateRefund_StoreError(t *testing.T) {
	p := NewProcessor(brokenStore{storage.NewMemoryStore()}, nil)

	result, err := p.CreateRefund(context.Background(), uuid.NewString(), 100)
	require.Error(t, err)
	assert.Empty(t, result.Outcome)
	assert.Nil(t, result.Refund)
}
