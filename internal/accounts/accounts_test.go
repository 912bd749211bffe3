package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CedrosPay/cardpay/internal/cards"
	"github.com/CedrosPay/cardpay/internal/circuitbreaker"
	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func mustCard(t *testing.T, raw string) cards.Card {
	t.Helper()
	card, err := cards.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return card
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		raw  string
		want Outcome
	}{
		{"approved", OutcomeApproved},
		{"insufficient_funds", OutcomeInsufficientFunds},
		{"invalid_account_number", OutcomeInvalidAccountNumber},
		{"service_unavailable", OutcomeServiceUnavailable},
		{"internal_error", OutcomeInternalError},
		{"invalid_amount", OutcomeInternalError},
		{"", OutcomeInternalError},
	}
	for _, tt := range tests {
		if got := ParseOutcome(tt.raw); got != tt.want {
			t.Errorf("ParseOutcome(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestDummyService_Hold(t *testing.T) {
	tests := []struct {
		name   string
		card   string
		amount int64
		want   Outcome
	}{
		{"approved", "123451234512345", 1000, OutcomeApproved},
		{"zero account", "001451234512345", 1000, OutcomeInvalidAccountNumber},
		{"negative amount", "123451234512345", -1, OutcomeInternalError},
		{"limit", "123451234512345", DummyMaxAmount, OutcomeApproved},
		{"over limit", "123451234512345", DummyMaxAmount + 1, OutcomeInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDummyService()
			result := d.Hold(context.Background(), mustCard(t, tt.card), tt.amount)
			if result.Outcome != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, result.Outcome)
			}
			if result.Approved() != (tt.want == OutcomeApproved) {
				t.Errorf("Approved() = %v with ref %q", result.Approved(), result.Ref)
			}
		})
	}
}

func TestDummyService_FinalizeOnce(t *testing.T) {
	d := NewDummyService()
	ctx := context.Background()
	card := mustCard(t, "123451234512345")

	first := d.Hold(ctx, card, 100)
	second := d.Hold(ctx, card, 200)
	if d.Pending() != 2 {
		t.Fatalf("expected 2 pending holds, got %d", d.Pending())
	}

	if err := d.Withdraw(ctx, first.Ref); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := d.Release(ctx, first.Ref); err != ErrUnknownHold {
		t.Errorf("expected ErrUnknownHold on second finalize, got %v", err)
	}
	if err := d.Release(ctx, second.Ref); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if d.Pending() != 0 {
		t.Errorf("expected no pending holds, got %d", d.Pending())
	}
}

func TestHTTPClient_Hold(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    Outcome
		wantRef HoldRef
	}{
		{"approved", http.StatusOK, `{"hold_ref":"h-1","outcome":"approved"}`, OutcomeApproved, "h-1"},
		{"insufficient funds", http.StatusOK, `{"outcome":"insufficient_funds"}`, OutcomeInsufficientFunds, ""},
		{"invalid account in error body", http.StatusUnprocessableEntity, `{"outcome":"invalid_account_number"}`, OutcomeInvalidAccountNumber, ""},
		{"approved without ref", http.StatusOK, `{"outcome":"approved"}`, OutcomeInternalError, ""},
		{"unknown outcome", http.StatusOK, `{"outcome":"maybe"}`, OutcomeInternalError, ""},
		{"unavailable", http.StatusServiceUnavailable, ``, OutcomeServiceUnavailable, ""},
		{"server error", http.StatusInternalServerError, `oops`, OutcomeInternalError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/holds" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var req holdRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode: %v", err)
				}
				if req.AccountNumber != "12" || req.Amount != 500 {
					t.Errorf("unexpected request %+v", req)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewHTTPClient(srv.URL+"/v1/", time.Second)
			result := client.Hold(context.Background(), mustCard(t, "123451234512345"), 500)
			if result.Outcome != tt.want || result.Ref != tt.wantRef {
				t.Errorf("expected %s/%q, got %s/%q", tt.want, tt.wantRef, result.Outcome, result.Ref)
			}
		})
	}
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewHTTPClient(srv.URL, 200*time.Millisecond)
	result := client.Hold(context.Background(), mustCard(t, "123451234512345"), 500)
	if result.Outcome != OutcomeServiceUnavailable {
		t.Errorf("expected service_unavailable, got %s", result.Outcome)
	}
}

func TestHTTPClient_Finalize(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)
	ctx := context.Background()
	if err := client.Withdraw(ctx, "h-1"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := client.Release(ctx, "h-2"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := client.Release(ctx, "missing"); err != ErrUnknownHold {
		t.Errorf("expected ErrUnknownHold, got %v", err)
	}

	want := []string{"/holds/h-1/withdraw", "/holds/h-2/release", "/holds/missing/release"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("expected paths %v, got %v", want, paths)
	}
}

type countingGateway struct {
	outcome Outcome
	holds   int
}

func (c *countingGateway) Hold(context.Context, cards.Card, int64) HoldResult {
	c.holds++
	if c.outcome == OutcomeApproved {
		return HoldResult{Outcome: c.outcome, Ref: "ref"}
	}
	return HoldResult{Outcome: c.outcome}
}
func (c *countingGateway) Withdraw(context.Context, HoldRef) error { return nil }
func (c *countingGateway) Release(context.Context, HoldRef) error  { return nil }

func TestGuarded_OpensOnUpstreamFailures(t *testing.T) {
	next := &countingGateway{outcome: OutcomeServiceUnavailable}
	breakers := circuitbreaker.NewManager(circuitbreaker.Config{
		Enabled: true,
		Accounts: circuitbreaker.BreakerConfig{
			MaxRequests:         1,
			Timeout:             time.Minute,
			ConsecutiveFailures: 2,
		},
	}, nil)
	m := metrics.New(prometheus.NewRegistry())
	g := NewGuarded(next, breakers, m)

	ctx := context.Background()
	card := mustCard(t, "123451234512345")
	for i := 0; i < 4; i++ {
		if got := g.Hold(ctx, card, 100).Outcome; got != OutcomeServiceUnavailable {
			t.Fatalf("call %d: expected service_unavailable, got %s", i, got)
		}
	}
	if next.holds != 2 {
		t.Errorf("expected the open breaker to stop calls after 2, got %d", next.holds)
	}
	if got := testutil.ToFloat64(m.AccountsCallsTotal.WithLabelValues("hold", "service_unavailable")); got != 4 {
		t.Errorf("expected 4 recorded hold calls, got %v", got)
	}
}

func TestGuarded_DeclinesDoNotTrip(t *testing.T) {
	next := &countingGateway{outcome: OutcomeInsufficientFunds}
	breakers := circuitbreaker.NewManager(circuitbreaker.Config{
		Enabled:  true,
		Accounts: circuitbreaker.BreakerConfig{MaxRequests: 1, Timeout: time.Minute, ConsecutiveFailures: 2},
	}, nil)
	g := NewGuarded(next, breakers, nil)

	for i := 0; i < 5; i++ {
		g.Hold(context.Background(), mustCard(t, "123451234512345"), 100)
	}
	if next.holds != 5 {
		t.Errorf("expected every decline to reach the gateway, got %d", next.holds)
	}
	if state := breakers.State(circuitbreaker.ServiceAccounts); state != "closed" {
		t.Errorf("expected closed breaker, got %s", state)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.AccountsConfig{Backend: "dummy"}, nil, nil); err != nil {
		t.Errorf("dummy backend: %v", err)
	}
	if _, err := New(config.AccountsConfig{Backend: "http"}, nil, nil); err == nil {
		t.Error("expected error for http backend without base_url")
	}
	if _, err := New(config.AccountsConfig{Backend: "ledger"}, nil, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
