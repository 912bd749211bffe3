// Package accountstest provides a scriptable accounts.Gateway for tests.
package accountstest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/CedrosPay/cardpay/internal/accounts"
	"github.com/CedrosPay/cardpay/internal/cards"
)

// Gateway returns a fixed outcome for every hold and counts calls.
type Gateway struct {
	// Outcome returned by Hold. Defaults to approved.
	Outcome accounts.Outcome
	// ReleaseErr is returned by Release when set.
	ReleaseErr error

	holds     atomic.Int64
	withdraws atomic.Int64
	releases  atomic.Int64

	mu       sync.Mutex
	released []accounts.HoldRef
}

// New returns a Gateway that answers every hold with outcome.
func New(outcome accounts.Outcome) *Gateway {
	return &Gateway{Outcome: outcome}
}

func (g *Gateway) Hold(_ context.Context, _ cards.Card, _ int64) accounts.HoldResult {
	n := g.holds.Add(1)
	outcome := g.Outcome
	if outcome == "" {
		outcome = accounts.OutcomeApproved
	}
	if outcome != accounts.OutcomeApproved {
		return accounts.HoldResult{Outcome: outcome}
	}
	return accounts.HoldResult{Outcome: outcome, Ref: accounts.HoldRef(fmt.Sprintf("hold-%d", n))}
}

func (g *Gateway) Withdraw(_ context.Context, _ accounts.HoldRef) error {
	g.withdraws.Add(1)
	return nil
}

func (g *Gateway) Release(_ context.Context, ref accounts.HoldRef) error {
	g.releases.Add(1)
	g.mu.Lock()
	g.released = append(g.released, ref)
	g.mu.Unlock()
	return g.ReleaseErr
}

// Holds returns how many times Hold was called.
func (g *Gateway) Holds() int { return int(g.holds.Load()) }

// Withdraws returns how many times Withdraw was called.
func (g *Gateway) Withdraws() int { return int(g.withdraws.Load()) }

// Releases returns how many times Release was called.
func (g *Gateway) Releases() int { return int(g.releases.Load()) }

// Released returns the refs passed to Release, in call order.
func (g *Gateway) Released() []accounts.HoldRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]accounts.HoldRef(nil), g.released...)
}
