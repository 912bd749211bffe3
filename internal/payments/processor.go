// Package payments validates payment requests and records them in the ledger.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CedrosPay/cardpay/internal/accounts"
	"github.com/CedrosPay/cardpay/internal/cards"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/CedrosPay/cardpay/internal/retry"
	"github.com/CedrosPay/cardpay/internal/storage"
)

// Outcome classifies how a payment request was resolved.
type Outcome string

const (
	OutcomeApproved             Outcome = "approved"
	OutcomeInsufficientFunds    Outcome = "insufficient_funds"
	OutcomeInvalidAccountNumber Outcome = "invalid_account_number"
	OutcomeServiceUnavailable   Outcome = "service_unavailable"
	OutcomeInternalError        Outcome = "internal_error"
	OutcomeNegativeAmount       Outcome = "negative_amount"
	OutcomeZeroAmount           Outcome = "zero_amount"
	OutcomeInvalidCard          Outcome = "invalid_card_number"
	OutcomeDuplicateCard        Outcome = "card_already_used"
)

// HTTPStatus returns the response code for the outcome.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeApproved:
		return http.StatusCreated
	case OutcomeInsufficientFunds:
		return http.StatusPaymentRequired
	case OutcomeInvalidAccountNumber:
		return http.StatusForbidden
	case OutcomeServiceUnavailable:
		return http.StatusServiceUnavailable
	case OutcomeNegativeAmount:
		return http.StatusBadRequest
	case OutcomeZeroAmount:
		return http.StatusNoContent
	case OutcomeInvalidCard, OutcomeDuplicateCard:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Persisted reports whether requests with this outcome produce a payment row.
func (o Outcome) Persisted() bool {
	switch o {
	case OutcomeNegativeAmount, OutcomeZeroAmount, OutcomeInvalidCard, OutcomeDuplicateCard:
		return false
	default:
		return true
	}
}

// Result is the resolution of a payment request. Payment is set when Outcome.Persisted().
type Result struct {
	Outcome Outcome
	Payment *storage.Payment
}

// resolution maps a hold outcome to the persisted status and the request outcome.
func resolution(hold accounts.Outcome) (storage.Status, Outcome) {
	switch hold {
	case accounts.OutcomeApproved:
		return storage.StatusApproved, OutcomeApproved
	case accounts.OutcomeInsufficientFunds:
		return storage.StatusDeclined, OutcomeInsufficientFunds
	case accounts.OutcomeInvalidAccountNumber:
		return storage.StatusDeclined, OutcomeInvalidAccountNumber
	case accounts.OutcomeServiceUnavailable:
		return storage.StatusFailed, OutcomeServiceUnavailable
	default:
		return storage.StatusFailed, OutcomeInternalError
	}
}

// Processor creates payments. It keeps no state between requests.
type Processor struct {
	store        storage.Store
	gateway      accounts.Gateway
	metrics      *metrics.Metrics
	releaseRetry retry.Config
}

// NewProcessor constructs a payment processor. metricsCollector may be nil.
func NewProcessor(store storage.Store, gateway accounts.Gateway, metricsCollector *metrics.Metrics) *Processor {
	releaseRetry := retry.DefaultConfig()
	releaseRetry.Retryable = func(err error) bool {
		return !errors.Is(err, accounts.ErrUnknownHold)
	}
	return &Processor{
		store:        store,
		gateway:      gateway,
		metrics:      metricsCollector,
		releaseRetry: releaseRetry,
	}
}

// CreatePayment validates the request, places a hold and records the payment.
//
// Checks run cheapest first and the gateway is consulted only once all of them
// pass. The returned error is non-nil only for internal faults.
func (p *Processor) CreatePayment(ctx context.Context, amount int64, cardNumber string) (Result, error) {
	start := time.Now()
	result, err := p.createPayment(ctx, amount, cardNumber)

	status := ""
	if result.Payment != nil {
		status = string(result.Payment.Status)
	}
	outcome := string(result.Outcome)
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObservePayment(status, outcome, amount, time.Since(start))
	return result, err
}

func (p *Processor) createPayment(ctx context.Context, amount int64, cardNumber string) (Result, error) {
	log := logger.FromContext(ctx)

	if amount < 0 {
		return Result{Outcome: OutcomeNegativeAmount}, nil
	}
	if amount == 0 {
		return Result{Outcome: OutcomeZeroAmount}, nil
	}

	card, err := cards.Parse(cardNumber)
	if err != nil {
		log.Debug().Err(err).Msg("payment.rejected.invalid_card")
		return Result{Outcome: OutcomeInvalidCard}, nil
	}

	used, err := p.store.CardNumberExists(ctx, card.String())
	if err != nil {
		return Result{}, fmt.Errorf("check card number: %w", err)
	}
	if used {
		log.Info().Str("card", logger.MaskCardNumber(card.String())).Msg("payment.rejected.duplicate_card")
		return Result{Outcome: OutcomeDuplicateCard}, nil
	}

	hold := p.gateway.Hold(ctx, card, amount)
	status, outcome := resolution(hold.Outcome)

	payment, err := p.store.CreatePayment(ctx, storage.Payment{
		Amount:     amount,
		CardNumber: card.String(),
		Status:     status,
	})
	if err != nil {
		if hold.Approved() {
			p.releaseHold(ctx, hold.Ref, err)
		}
		if errors.Is(err, storage.ErrDuplicateCard) {
			// Lost the insert race to a concurrent request for the same card.
			log.Info().Str("card", logger.MaskCardNumber(card.String())).Msg("payment.rejected.duplicate_card_race")
			return Result{Outcome: OutcomeDuplicateCard}, nil
		}
		return Result{}, fmt.Errorf("create payment: %w", err)
	}

	log.Info().
		Str("payment_id", payment.ID).
		Str("card", logger.MaskCardNumber(payment.CardNumber)).
		Int64("amount", payment.Amount).
		Str("status", string(payment.Status)).
		Str("outcome", string(outcome)).
		Msg("payment.created")

	return Result{Outcome: outcome, Payment: &payment}, nil
}

// releaseHold undoes an approved hold whose payment could not be recorded.
func (p *Processor) releaseHold(ctx context.Context, ref accounts.HoldRef, cause error) {
	reason := "store_error"
	if errors.Is(cause, storage.ErrDuplicateCard) {
		reason = "duplicate_card"
	}

	log := logger.FromContext(ctx).With().
		Str("hold_ref", logger.TruncateID(string(ref))).
		Str("reason", reason).
		Logger()

	// The request may already be canceled; the release must still go out.
	releaseCtx := context.WithoutCancel(ctx)
	err := retry.Do(releaseCtx, "accounts.release", p.releaseRetry, func() error {
		return p.gateway.Release(releaseCtx, ref)
	})
	if err != nil {
		p.metrics.ObserveHoldReleaseFailed(reason)
		log.Error().Err(err).Msg("payment.hold_release_failed")
		return
	}
	p.metrics.ObserveHoldReleased(reason)
	log.Warn().Msg("payment.hold_released")
}
