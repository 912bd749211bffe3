// Package refunds records refunds against approved payments.
package refunds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/CedrosPay/cardpay/internal/storage"
)

// Outcome classifies how a refund request was resolved.
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeNotRefundable   Outcome = "not_refundable"
	OutcomeInvalidAmount   Outcome = "invalid_amount"
	OutcomeExcessiveRefund Outcome = "excessive_refund"
)

// HTTPStatus returns the response code for the outcome.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeCreated:
		return http.StatusCreated
	case OutcomeNotRefundable:
		return http.StatusNotFound
	case OutcomeInvalidAmount, OutcomeExcessiveRefund:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Result is the resolution of a refund request. Refund is set only for OutcomeCreated.
type Result struct {
	Outcome Outcome
	Refund  *storage.Refund
}

// Processor creates refunds.
type Processor struct {
	store   storage.Store
	metrics *metrics.Metrics
}

// NewProcessor constructs a refund processor. metricsCollector may be nil.
func NewProcessor(store storage.Store, metricsCollector *metrics.Metrics) *Processor {
	return &Processor{store: store, metrics: metricsCollector}
}

// CreateRefund refunds amount against the payment.
//
// The payment lookup comes first, so an unknown or non-approved payment is a
// 404 whatever the amount. The cumulative check and the insert happen in one
// atomic store operation.
func (p *Processor) CreateRefund(ctx context.Context, paymentID string, amount int64) (Result, error) {
	start := time.Now()
	result, err := p.createRefund(ctx, paymentID, amount)

	outcome := string(result.Outcome)
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObserveRefund(outcome, amount, result.Refund != nil, time.Since(start))
	return result, err
}

func (p *Processor) createRefund(ctx context.Context, paymentID string, amount int64) (Result, error) {
	log := logger.FromContext(ctx).With().Str("payment_id", paymentID).Logger()

	payment, err := p.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Debug().Msg("refund.rejected.payment_not_found")
			return Result{Outcome: OutcomeNotRefundable}, nil
		}
		return Result{}, fmt.Errorf("get payment: %w", err)
	}
	if payment.Status != storage.StatusApproved {
		log.Info().Str("status", string(payment.Status)).Msg("refund.rejected.not_approved")
		return Result{Outcome: OutcomeNotRefundable}, nil
	}

	if amount <= 0 {
		return Result{Outcome: OutcomeInvalidAmount}, nil
	}

	refund, err := p.store.CreateRefund(ctx, storage.Refund{
		PaymentID: payment.ID,
		Amount:    amount,
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrExcessiveRefund):
		log.Info().Err(err).Int64("amount", amount).Msg("refund.rejected.excessive")
		return Result{Outcome: OutcomeExcessiveRefund}, nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrPaymentNotRefundable):
		return Result{Outcome: OutcomeNotRefundable}, nil
	default:
		return Result{}, fmt.Errorf("create refund: %w", err)
	}

	log.Info().
		Str("refund_id", refund.ID).
		Int64("amount", refund.Amount).
		Msg("refund.created")

	return Result{Outcome: OutcomeCreated, Refund: &refund}, nil
}
