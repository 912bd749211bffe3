package accounts

import (
	"context"
	"sync"

	"github.com/CedrosPay/cardpay/internal/cards"
	"github.com/google/uuid"
)

const (
	// DummyInvalidAccountNumber is rejected with invalid_account_number.
	DummyInvalidAccountNumber = "00"
	// DummyMaxAmount is the largest amount the dummy service approves.
	DummyMaxAmount int64 = 1_000_000_00
)

// DummyService is an in-process accounts service for development and tests.
// It keeps no balances; magic values trigger the unhappy paths:
//   - account number "00" is invalid
//   - negative amounts are an internal error
//   - amounts above DummyMaxAmount have insufficient funds
type DummyService struct {
	mu      sync.Mutex
	pending map[HoldRef]int64
}

// NewDummyService constructs a DummyService.
func NewDummyService() *DummyService {
	return &DummyService{pending: make(map[HoldRef]int64)}
}

// Hold applies the magic-value rules and records approved holds as pending.
func (d *DummyService) Hold(ctx context.Context, card cards.Card, amount int64) HoldResult {
	if ctx.Err() != nil {
		return HoldResult{Outcome: OutcomeServiceUnavailable}
	}

	switch {
	case card.AccountNumber() == DummyInvalidAccountNumber:
		return HoldResult{Outcome: OutcomeInvalidAccountNumber}
	case amount < 0:
		return HoldResult{Outcome: OutcomeInternalError}
	case amount > DummyMaxAmount:
		return HoldResult{Outcome: OutcomeInsufficientFunds}
	}

	ref := HoldRef(uuid.NewString())
	d.mu.Lock()
	d.pending[ref] = amount
	d.mu.Unlock()
	return HoldResult{Outcome: OutcomeApproved, Ref: ref}
}

// Withdraw finalizes a pending hold.
func (d *DummyService) Withdraw(_ context.Context, ref HoldRef) error {
	return d.finalize(ref)
}

// Release cancels a pending hold.
func (d *DummyService) Release(_ context.Context, ref HoldRef) error {
	return d.finalize(ref)
}

// Pending returns how many holds are still awaiting withdraw or release.
func (d *DummyService) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *DummyService) finalize(ref HoldRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[ref]; !ok {
		return ErrUnknownHold
	}
	delete(d.pending, ref)
	return nil
}
