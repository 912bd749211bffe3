package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CedrosPay/cardpay/internal/cards"
	"github.com/CedrosPay/cardpay/internal/circuitbreaker"
	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/metrics"
)

// errUpstreamFailure marks a hold outcome the breaker should count as a failure.
var errUpstreamFailure = errors.New("accounts: upstream failure")

// Guarded wraps a Gateway with a circuit breaker, metrics and logging.
//
// Only Hold goes through the breaker. Withdraw and Release finalize holds that
// already exist, so they are always attempted.
type Guarded struct {
	next     Gateway
	breakers *circuitbreaker.Manager
	metrics  *metrics.Metrics
}

// NewGuarded wraps next. breakers and m may be nil.
func NewGuarded(next Gateway, breakers *circuitbreaker.Manager, m *metrics.Metrics) *Guarded {
	return &Guarded{next: next, breakers: breakers, metrics: m}
}

// Hold places a hold unless the breaker is open, in which case it reports service_unavailable.
func (g *Guarded) Hold(ctx context.Context, card cards.Card, amount int64) HoldResult {
	start := time.Now()
	result := g.hold(ctx, card, amount)
	g.metrics.ObserveAccountsCall("hold", string(result.Outcome), time.Since(start))

	log := logger.FromContext(ctx)
	log.Debug().
		Str("card", logger.MaskCardNumber(card.String())).
		Int64("amount", amount).
		Str("outcome", string(result.Outcome)).
		Dur("duration", time.Since(start)).
		Msg("accounts.hold")
	return result
}

func (g *Guarded) hold(ctx context.Context, card cards.Card, amount int64) HoldResult {
	if g.breakers == nil {
		return g.next.Hold(ctx, card, amount)
	}

	var result HoldResult
	_, err := g.breakers.Execute(circuitbreaker.ServiceAccounts, func() (interface{}, error) {
		result = g.next.Hold(ctx, card, amount)
		if result.Outcome.IsUpstreamFailure() {
			return nil, errUpstreamFailure
		}
		return nil, nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		log := logger.FromContext(ctx)
		log.Warn().Msg("accounts.hold_short_circuited")
		return HoldResult{Outcome: OutcomeServiceUnavailable}
	}
	return result
}

// Withdraw settles a hold.
func (g *Guarded) Withdraw(ctx context.Context, ref HoldRef) error {
	return g.finalize(ctx, "withdraw", ref, g.next.Withdraw)
}

// Release cancels a hold.
func (g *Guarded) Release(ctx context.Context, ref HoldRef) error {
	return g.finalize(ctx, "release", ref, g.next.Release)
}

func (g *Guarded) finalize(ctx context.Context, op string, ref HoldRef, fn func(context.Context, HoldRef) error) error {
	start := time.Now()
	err := fn(ctx, ref)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("hold_ref", logger.TruncateID(string(ref))).
			Msgf("accounts.%s_failed", op)
	}
	g.metrics.ObserveAccountsCall(op, outcome, time.Since(start))
	return err
}

// New builds the Gateway described by cfg, wrapped with breaker and metrics.
func New(cfg config.AccountsConfig, breakers *circuitbreaker.Manager, m *metrics.Metrics) (Gateway, error) {
	var base Gateway
	switch cfg.Backend {
	case "dummy", "":
		base = NewDummyService()
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("accounts: http backend requires base_url")
		}
		base = NewHTTPClient(cfg.BaseURL, cfg.Timeout.Duration)
	default:
		return nil, fmt.Errorf("accounts: unknown backend %q", cfg.Backend)
	}
	return NewGuarded(base, breakers, m), nil
}
