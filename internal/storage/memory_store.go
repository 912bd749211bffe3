package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation suitable for tests and single-instance development.
// A single mutex serializes writes, which gives the same guarantees as the
// unique constraint and row lock used by PostgresStore.
type MemoryStore struct {
	mu               sync.RWMutex
	payments         map[string]Payment  // paymentID -> payment
	paymentsByCard   map[string]string   // cardNumber -> paymentID (unique index)
	refunds          map[string]Refund   // refundID -> refund
	refundsByPayment map[string][]string // paymentID -> refundIDs in insertion order
	now              func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:         make(map[string]Payment),
		paymentsByCard:   make(map[string]string),
		refunds:          make(map[string]Refund),
		refundsByPayment: make(map[string][]string),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// CreatePayment records a payment, enforcing card number uniqueness.
func (m *MemoryStore) CreatePayment(ctx context.Context, payment Payment) (Payment, error) {
	if err := ctx.Err(); err != nil {
		return Payment{}, err
	}
	if err := validateAndPreparePayment(&payment, m.now()); err != nil {
		return Payment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.paymentsByCard[payment.CardNumber]; exists {
		return Payment{}, ErrDuplicateCard
	}
	m.payments[payment.ID] = payment
	m.paymentsByCard[payment.CardNumber] = payment.ID
	return payment, nil
}

// CardNumberExists reports whether any payment used the card number.
func (m *MemoryStore) CardNumberExists(ctx context.Context, cardNumber string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.paymentsByCard[cardNumber]
	return exists, nil
}

// GetPayment retrieves a payment by id.
func (m *MemoryStore) GetPayment(ctx context.Context, paymentID string) (Payment, error) {
	if err := ctx.Err(); err != nil {
		return Payment{}, err
	}
	id, err := normalizeID(paymentID)
	if err != nil {
		return Payment{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return payment, nil
}

// CreateRefund validates the payment state and the refunded total, then records the refund.
func (m *MemoryStore) CreateRefund(ctx context.Context, refund Refund) (Refund, error) {
	if err := ctx.Err(); err != nil {
		return Refund{}, err
	}
	paymentID, err := normalizeID(refund.PaymentID)
	if err != nil {
		return Refund{}, err
	}
	refund.PaymentID = paymentID

	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[paymentID]
	if !ok {
		return Refund{}, ErrNotFound
	}
	if payment.Status != StatusApproved {
		return Refund{}, ErrPaymentNotRefundable
	}
	if err := validateAndPrepareRefund(&refund, m.now()); err != nil {
		return Refund{}, err
	}

	refunded := m.refundedTotalLocked(paymentID)
	if refund.Amount > payment.Amount-refunded {
		return Refund{}, excessiveRefund(payment.Amount, refunded)
	}

	m.refunds[refund.ID] = refund
	m.refundsByPayment[paymentID] = append(m.refundsByPayment[paymentID], refund.ID)
	return refund, nil
}

// GetRefund retrieves a refund that belongs to the given payment.
func (m *MemoryStore) GetRefund(ctx context.Context, paymentID, refundID string) (Refund, error) {
	if err := ctx.Err(); err != nil {
		return Refund{}, err
	}
	pid, err := normalizeID(paymentID)
	if err != nil {
		return Refund{}, err
	}
	rid, err := normalizeID(refundID)
	if err != nil {
		return Refund{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	refund, ok := m.refunds[rid]
	if !ok || refund.PaymentID != pid {
		return Refund{}, ErrNotFound
	}
	return refund, nil
}

// ListRefunds returns the refunds of a payment ordered by creation time.
func (m *MemoryStore) ListRefunds(ctx context.Context, paymentID string) ([]Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pid, err := normalizeID(paymentID)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.payments[pid]; !ok {
		return nil, ErrNotFound
	}
	ids := m.refundsByPayment[pid]
	out := make([]Refund, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.refunds[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// RefundedTotal sums the refunds recorded against a payment.
func (m *MemoryStore) RefundedTotal(ctx context.Context, paymentID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pid, err := normalizeID(paymentID)
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.payments[pid]; !ok {
		return 0, ErrNotFound
	}
	return m.refundedTotalLocked(pid), nil
}

func (m *MemoryStore) refundedTotalLocked(paymentID string) int64 {
	var total int64
	for _, id := range m.refundsByPayment[paymentID] {
		total += m.refunds[id].Amount
	}
	return total
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
