package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/CedrosPay/cardpay/internal/cards"
	"github.com/CedrosPay/cardpay/internal/httputil"
	"github.com/CedrosPay/cardpay/internal/logger"
)

// HTTPClient is a Gateway backed by a remote accounts service.
//
// Routes, relative to the base URL:
//
//	POST /holds                  {"account_number","amount"} -> {"hold_ref","outcome"}
//	POST /holds/{ref}/withdraw
//	POST /holds/{ref}/release
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs an HTTPClient. timeout bounds every call.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httputil.NewClient(timeout),
	}
}

type holdRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

type holdResponse struct {
	HoldRef string `json:"hold_ref"`
	Outcome string `json:"outcome"`
}

// Hold asks the accounts service to reserve amount on the card's account.
func (c *HTTPClient) Hold(ctx context.Context, card cards.Card, amount int64) HoldResult {
	log := logger.FromContext(ctx)

	var resp holdResponse
	err := httputil.PostJSON(ctx, c.client, c.baseURL+"/holds", holdRequest{
		AccountNumber: card.AccountNumber(),
		Amount:        amount,
	}, &resp)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			outcome := outcomeFromStatus(statusErr)
			log.Warn().
				Int("status", statusErr.StatusCode).
				Str("outcome", string(outcome)).
				Msg("accounts.hold_rejected")
			return HoldResult{Outcome: outcome}
		}
		log.Error().Err(err).Msg("accounts.hold_transport_failed")
		return HoldResult{Outcome: OutcomeServiceUnavailable}
	}

	outcome := ParseOutcome(resp.Outcome)
	if outcome == OutcomeApproved {
		if resp.HoldRef == "" {
			log.Error().Msg("accounts.hold_missing_ref")
			return HoldResult{Outcome: OutcomeInternalError}
		}
		return HoldResult{Outcome: outcome, Ref: HoldRef(resp.HoldRef)}
	}
	return HoldResult{Outcome: outcome}
}

// Withdraw settles a pending hold.
func (c *HTTPClient) Withdraw(ctx context.Context, ref HoldRef) error {
	return c.finalize(ctx, ref, "withdraw")
}

// Release cancels a pending hold.
func (c *HTTPClient) Release(ctx context.Context, ref HoldRef) error {
	return c.finalize(ctx, ref, "release")
}

func (c *HTTPClient) finalize(ctx context.Context, ref HoldRef, action string) error {
	endpoint := fmt.Sprintf("%s/holds/%s/%s", c.baseURL, url.PathEscape(string(ref)), action)
	err := httputil.PostJSON(ctx, c.client, endpoint, nil, nil)
	if err == nil {
		return nil
	}
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return ErrUnknownHold
	}
	return fmt.Errorf("accounts %s: %w", action, err)
}

// outcomeFromStatus reads the outcome from an error body when present, and
// falls back to the status code otherwise.
func outcomeFromStatus(statusErr *httputil.StatusError) Outcome {
	var body holdResponse
	if len(statusErr.Body) > 0 && json.Unmarshal(statusErr.Body, &body) == nil && body.Outcome != "" {
		if outcome := ParseOutcome(body.Outcome); outcome != OutcomeApproved {
			return outcome
		}
	}
	switch statusErr.StatusCode {
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return OutcomeServiceUnavailable
	case http.StatusPaymentRequired:
		return OutcomeInsufficientFunds
	case http.StatusNotFound, http.StatusForbidden:
		return OutcomeInvalidAccountNumber
	default:
		return OutcomeInternalError
	}
}
