package errors

// ErrorCode represents a machine-readable error identifier for API clients.
type ErrorCode string

// Validation Errors (Request input validation)
const (
	ErrCodeInvalidField      ErrorCode = "invalid_field"       // malformed JSON body or path parameter
	ErrCodeMissingField      ErrorCode = "missing_field"       // well-formed body without the expected envelope
	ErrCodeNegativeAmount    ErrorCode = "negative_amount"     // payment amount below zero
	ErrCodeInvalidAmount     ErrorCode = "invalid_amount"      // refund amount not positive
	ErrCodeInvalidCardNumber ErrorCode = "invalid_card_number" // not exactly 15 digits
	ErrCodeRequestTooLarge   ErrorCode = "request_too_large"   // body over the size cap
)

// Conflict Errors (storage constraints and transactional checks)
const (
	ErrCodeCardAlreadyUsed  ErrorCode = "card_already_used"
	ErrCodeExcessiveRefund  ErrorCode = "excessive_refund"
	ErrCodeIdempotencyReuse ErrorCode = "idempotency_key_reused"
)

// Resource/State Errors (Resource not found or in wrong state)
const (
	ErrCodePaymentNotFound ErrorCode = "payment_not_found"
	ErrCodeRefundNotFound  ErrorCode = "refund_not_found"
)

// Accounts Service Outcomes (business declines and upstream failures)
const (
	ErrCodeInsufficientFunds    ErrorCode = "insufficient_funds"
	ErrCodeInvalidAccountNumber ErrorCode = "invalid_account_number"
	ErrCodeServiceUnavailable   ErrorCode = "service_unavailable"
)

// Internal/System Errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeDatabaseError ErrorCode = "database_error"
	ErrCodeRateLimited   ErrorCode = "rate_limited"
	ErrCodeUnauthorized  ErrorCode = "unauthorized"
)

// IsRetryable returns whether an error code represents a retryable error.
// Retryable errors are transient service issues, not validation failures or declines.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeServiceUnavailable,
		ErrCodeDatabaseError,
		ErrCodeRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request
	case ErrCodeInvalidField,
		ErrCodeNegativeAmount:
		return 400

	// 401 Unauthorized
	case ErrCodeUnauthorized:
		return 401

	// 402 Payment Required
	case ErrCodeInsufficientFunds:
		return 402

	// 403 Forbidden
	case ErrCodeInvalidAccountNumber:
		return 403

	// 404 Not Found
	case ErrCodePaymentNotFound,
		ErrCodeRefundNotFound:
		return 404

	// 409 Conflict
	case ErrCodeIdempotencyReuse:
		return 409

	// 413 Payload Too Large
	case ErrCodeRequestTooLarge:
		return 413

	// 422 Unprocessable Entity
	case ErrCodeMissingField,
		ErrCodeInvalidAmount,
		ErrCodeInvalidCardNumber,
		ErrCodeCardAlreadyUsed,
		ErrCodeExcessiveRefund:
		return 422

	// 429 Too Many Requests
	case ErrCodeRateLimited:
		return 429

	// 503 Service Unavailable
	case ErrCodeServiceUnavailable:
		return 503

	// 500 Internal Server Error
	default:
		return 500
	}
}
