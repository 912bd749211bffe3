package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/CedrosPay/cardpay/internal/errors"
	"github.com/CedrosPay/cardpay/internal/refunds"
	"github.com/CedrosPay/cardpay/internal/storage"
	"github.com/CedrosPay/cardpay/pkg/responders"
)

type createRefundRequest struct {
	Refund *struct {
		Amount *int64 `json:"amount"`
	} `json:"refund"`
}

// createRefund handles POST /payments/{paymentID}/refunds.
func (h *handlers) createRefund(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	var req createRefundRequest
	if !readEnvelope(w, r, &req) {
		return
	}
	if req.Refund == nil {
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeMissingField, "refund is required", "field", "refund")
		return
	}
	if req.Refund.Amount == nil {
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeMissingField, "amount is required", "field", "refund.amount")
		return
	}

	result, err := h.refunds.CreateRefund(r.Context(), paymentID, *req.Refund.Amount)
	if err != nil {
		internalError(w, r, "refund.create_failed", err)
		return
	}

	switch result.Outcome {
	case refunds.OutcomeCreated:
		w.Header().Set("Location", h.cfg.Server.RoutePrefix+"/payments/"+result.Refund.PaymentID+"/refunds/"+result.Refund.ID)
		responders.Data(w, result.Outcome.HTTPStatus(), newRefundView(*result.Refund, false))
	case refunds.OutcomeNotRefundable:
		paymentNotFound(w, paymentID)
	case refunds.OutcomeInvalidAmount:
		apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeInvalidAmount, "amount must be positive", "field", "refund.amount")
	case refunds.OutcomeExcessiveRefund:
		apierrors.WriteSimpleError(w, apierrors.ErrCodeExcessiveRefund, "refund exceeds the remaining payment amount")
	default:
		internalError(w, r, "refund.unknown_outcome", errors.New(string(result.Outcome)))
	}
}

type refundListView struct {
	Refunds       []refundView `json:"refunds"`
	RefundedTotal int64        `json:"refunded_total"`
}

// listRefunds handles GET /payments/{paymentID}/refunds.
func (h *handlers) listRefunds(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	list, err := h.store.ListRefunds(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			paymentNotFound(w, paymentID)
			return
		}
		internalError(w, r, "refund.list_failed", err)
		return
	}

	view := refundListView{Refunds: make([]refundView, 0, len(list))}
	for _, refund := range list {
		view.Refunds = append(view.Refunds, newRefundView(refund, true))
		view.RefundedTotal += refund.Amount
	}
	responders.Data(w, http.StatusOK, view)
}

// getRefund handles GET /payments/{paymentID}/refunds/{refundID}.
func (h *handlers) getRefund(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	refundID := chi.URLParam(r, "refundID")

	refund, err := h.store.GetRefund(r.Context(), paymentID, refundID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierrors.WriteErrorWithDetail(w, apierrors.ErrCodeRefundNotFound, "refund not found", "refund_id", refundID)
			return
		}
		internalError(w, r, "refund.get_failed", err)
		return
	}

	responders.Data(w, http.StatusOK, newRefundView(refund, true))
}
