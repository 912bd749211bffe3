package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeNegativeAmount, http.StatusBadRequest},
		{ErrCodeInvalidField, http.StatusBadRequest},
		{ErrCodeInsufficientFunds, http.StatusPaymentRequired},
		{ErrCodeInvalidAccountNumber, http.StatusForbidden},
		{ErrCodePaymentNotFound, http.StatusNotFound},
		{ErrCodeRefundNotFound, http.StatusNotFound},
		{ErrCodeIdempotencyReuse, http.StatusConflict},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeInvalidCardNumber, http.StatusUnprocessableEntity},
		{ErrCodeCardAlreadyUsed, http.StatusUnprocessableEntity},
		{ErrCodeExcessiveRefund, http.StatusUnprocessableEntity},
		{ErrCodeInvalidAmount, http.StatusUnprocessableEntity},
		{ErrCodeMissingField, http.StatusUnprocessableEntity},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternalError, http.StatusInternalServerError},
		{ErrorCode("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !ErrCodeServiceUnavailable.IsRetryable() {
		t.Error("service_unavailable should be retryable")
	}
	if ErrCodeCardAlreadyUsed.IsRetryable() {
		t.Error("card_already_used must not be retryable")
	}
	if ErrCodeInsufficientFunds.IsRetryable() {
		t.Error("declines must not be retryable")
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithDetail(rec, ErrCodeExcessiveRefund, "excessive refund amount requested", "remaining", int64(800))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != ErrCodeExcessiveRefund {
		t.Errorf("unexpected code %q", body.Error.Code)
	}
	if body.Error.Retryable {
		t.Error("expected retryable=false")
	}
	if body.Error.Details["remaining"] != float64(800) {
		t.Errorf("unexpected details: %v", body.Error.Details)
	}
}
