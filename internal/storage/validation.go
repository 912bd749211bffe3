package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// validateAndPreparePayment checks a payment before it is written and fills in id and timestamps.
func validateAndPreparePayment(payment *Payment, now time.Time) error {
	if payment.Amount < 0 {
		return fmt.Errorf("payment amount must not be negative")
	}
	if payment.CardNumber == "" {
		return fmt.Errorf("payment requires card_number")
	}
	if !payment.Status.Valid() {
		return fmt.Errorf("payment status %q is not valid", string(payment.Status))
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	} else if parsed, err := uuid.Parse(payment.ID); err != nil {
		return fmt.Errorf("payment id %q is not a uuid", payment.ID)
	} else {
		payment.ID = parsed.String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = payment.CreatedAt
	return nil
}

// validateAndPrepareRefund checks a refund before it is written and fills in id and timestamps.
func validateAndPrepareRefund(refund *Refund, now time.Time) error {
	if refund.Amount <= 0 {
		return fmt.Errorf("refund amount must be positive")
	}
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	} else if parsed, err := uuid.Parse(refund.ID); err != nil {
		return fmt.Errorf("refund id %q is not a uuid", refund.ID)
	} else {
		refund.ID = parsed.String()
	}
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = now
	}
	refund.UpdatedAt = refund.CreatedAt
	return nil
}

// normalizeID canonicalizes a uuid string. Malformed ids can never match a row, so they map to ErrNotFound.
func normalizeID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrNotFound
	}
	return parsed.String(), nil
}
