package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/CedrosPay/cardpay/internal/errors"
	"github.com/CedrosPay/cardpay/internal/payments"
	"github.com/CedrosPay/cardpay/internal/storage"
	"github.com/CedrosPay/cardpay/pkg/responders"
)

type createPaymentRequest struct {
	Payment *struct {
		Amount     *int64  `json:"amount"`
		CardNumber *string `json:"card_number"`
	} `json:"payment"`
}

// createPayment handles POST /payments.
//
// Declined and failed payments are persisted and rendered like approved ones,
// only with a non-2xx status.
func (h *handlers) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !readEnvelope(w, r, &req) {
		return
	}
	if req.Payment == nil {
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeMissingField, "payment is required", "field", "payment")
		return
	}
	if req.Payment.Amount == nil {
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeMissingField, "amount is required", "field", "payment.amount")
		return
	}
	card := ""
	if req.Payment.CardNumber != nil {
		card = *req.Payment.CardNumber
	}

	result, err := h.payments.CreatePayment(r.Context(), *req.Payment.Amount, card)
	if err != nil {
		internalError(w, r, "payment.create_failed", err)
		return
	}

	status := result.Outcome.HTTPStatus()
	switch result.Outcome {
	case payments.OutcomeZeroAmount:
		responders.NoContent(w, status)
	case payments.OutcomeNegativeAmount:
		apierrors.WriteSimpleError(w, apierrors.ErrCodeNegativeAmount, "amount must not be negative")
	case payments.OutcomeInvalidCard:
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeInvalidCardNumber, "card_number must be exactly 15 digits", "field", "payment.card_number")
	case payments.OutcomeDuplicateCard:
		apierrors.WriteSimpleError(w, apierrors.ErrCodeCardAlreadyUsed, "card_number has already been used")
	default:
		if result.Payment == nil {
			internalError(w, r, "payment.missing_record", errors.New("persisted outcome without payment"))
			return
		}
		if result.Outcome == payments.OutcomeApproved {
			w.Header().Set("Location", h.cfg.Server.RoutePrefix+"/payments/"+result.Payment.ID)
		}
		responders.Data(w, status, newPaymentView(*result.Payment, false))
	}
}

// getPayment handles GET /payments/{paymentID}.
func (h *handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	payment, err := h.store.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			paymentNotFound(w, paymentID)
			return
		}
		internalError(w, r, "payment.get_failed", err)
		return
	}

	responders.Data(w, http.StatusOK, newPaymentView(payment, true))
}
