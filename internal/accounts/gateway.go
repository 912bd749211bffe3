// Package accounts talks to the service that manages customer accounts.
//
// Placing a hold reserves funds without moving them. Every approved hold must be
// finalized exactly once, either by Withdraw (settlement) or by Release (the
// payment did not go through).
package accounts

import (
	"context"
	"errors"

	"github.com/CedrosPay/cardpay/internal/cards"
)

// Outcome is the result of a hold request.
type Outcome string

const (
	OutcomeApproved             Outcome = "approved"
	OutcomeInsufficientFunds    Outcome = "insufficient_funds"
	OutcomeInvalidAccountNumber Outcome = "invalid_account_number"
	OutcomeServiceUnavailable   Outcome = "service_unavailable"
	OutcomeInternalError        Outcome = "internal_error"
)

// ParseOutcome maps a wire value to an Outcome. Anything unrecognized is an internal error.
func ParseOutcome(raw string) Outcome {
	switch o := Outcome(raw); o {
	case OutcomeApproved, OutcomeInsufficientFunds, OutcomeInvalidAccountNumber, OutcomeServiceUnavailable, OutcomeInternalError:
		return o
	default:
		return OutcomeInternalError
	}
}

// IsUpstreamFailure reports whether the outcome reflects a problem on the
// accounts side rather than a decision about the customer.
func (o Outcome) IsUpstreamFailure() bool {
	return o == OutcomeServiceUnavailable || o == OutcomeInternalError
}

// HoldRef identifies a placed hold. It is opaque to callers.
type HoldRef string

// HoldResult is what a hold call returns. Ref is set only when the hold was approved.
type HoldResult struct {
	Outcome Outcome
	Ref     HoldRef
}

// Approved reports whether funds were reserved.
func (r HoldResult) Approved() bool {
	return r.Outcome == OutcomeApproved && r.Ref != ""
}

// ErrUnknownHold is returned when withdrawing or releasing a hold that is not pending.
var ErrUnknownHold = errors.New("accounts: unknown or finalized hold")

// Gateway is the accounts service contract.
//
// Hold never returns a transport error: every failure is folded into the
// Outcome so callers can persist a definitive payment status.
type Gateway interface {
	Hold(ctx context.Context, card cards.Card, amount int64) HoldResult
	Withdraw(ctx context.Context, ref HoldRef) error
	Release(ctx context.Context, ref HoldRef) error
}
