package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func TestManager_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []int
	m := NewManager(Config{
		Enabled: true,
		Accounts: BreakerConfig{
			MaxRequests:         1,
			Timeout:             time.Minute,
			ConsecutiveFailures: 3,
		},
	}, func(service ServiceType, state int) {
		if service != ServiceAccounts {
			t.Errorf("unexpected service %s", service)
		}
		transitions = append(transitions, state)
	})

	calls := 0
	fail := func() (interface{}, error) {
		calls++
		return nil, errUpstream
	}

	for i := 0; i < 3; i++ {
		if _, err := m.Execute(ServiceAccounts, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	if state := m.State(ServiceAccounts); state != "open" {
		t.Fatalf("expected open breaker, got %s", state)
	}
	if _, err := m.Execute(ServiceAccounts, fail); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected open breaker to skip the call, got %d calls", calls)
	}
	if len(transitions) != 1 || transitions[0] != 2 {
		t.Errorf("expected a single transition to open (2), got %v", transitions)
	}
	if c := m.Counts(ServiceAccounts); c.ConsecutiveFailures != 0 {
		// gobreaker resets counts on state change
		t.Errorf("expected counts reset after trip, got %+v", c)
	}
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(Config{Enabled: false}, nil)

	for i := 0; i < 10; i++ {
		if _, err := m.Execute(ServiceAccounts, func() (interface{}, error) { return nil, errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("expected pass-through error, got %v", err)
		}
	}
	if state := m.State(ServiceAccounts); state != "disabled" {
		t.Errorf("expected disabled, got %s", state)
	}
}

func TestManager_UnknownServicePassesThrough(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	result, err := m.Execute(ServiceType("ledger"), func() (interface{}, error) { return "ok", nil })
	if err != nil || result != "ok" {
		t.Fatalf("expected pass-through, got %v / %v", result, err)
	}
	if state := m.State(ServiceType("ledger")); state != "not_configured" {
		t.Errorf("expected not_configured, got %s", state)
	}
	if state := m.State(ServiceAccounts); state != "closed" {
		t.Errorf("expected closed accounts breaker, got %s", state)
	}
}
