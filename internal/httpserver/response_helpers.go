package httpserver

import (
	"net/http"
	"time"

	apierrors "github.com/CedrosPay/cardpay/internal/errors"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/storage"
)

type paymentView struct {
	ID         string         `json:"id"`
	Amount     int64          `json:"amount"`
	CardNumber string         `json:"card_number"`
	Status     storage.Status `json:"status"`
	InsertedAt *time.Time     `json:"inserted_at,omitempty"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
}

type refundView struct {
	ID         string     `json:"id"`
	Amount     int64      `json:"amount"`
	PaymentID  string     `json:"payment_id"`
	InsertedAt *time.Time `json:"inserted_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// newPaymentView renders a payment. Timestamps are included only on read endpoints.
func newPaymentView(p storage.Payment, withTimestamps bool) paymentView {
	v := paymentView{
		ID:         p.ID,
		Amount:     p.Amount,
		CardNumber: p.CardNumber,
		Status:     p.Status,
	}
	if withTimestamps {
		v.InsertedAt, v.UpdatedAt = &p.CreatedAt, &p.UpdatedAt
	}
	return v
}

func newRefundView(r storage.Refund, withTimestamps bool) refundView {
	v := refundView{
		ID:        r.ID,
		Amount:    r.Amount,
		PaymentID: r.PaymentID,
	}
	if withTimestamps {
		v.InsertedAt, v.UpdatedAt = &r.CreatedAt, &r.UpdatedAt
	}
	return v
}

// internalError logs err with the request logger and writes a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, event string, err error) {
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Msg(event)
	apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "internal server error")
}

// paymentNotFound writes the 404 used by every payment-scoped route.
func paymentNotFound(w http.ResponseWriter, paymentID string) {
	apierrors.WriteErrorWithDetail(w, apierrors.ErrCodePaymentNotFound, "payment not found", "payment_id", paymentID)
}
