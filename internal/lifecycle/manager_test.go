package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManager_ClosesInReverseOrder(t *testing.T) {
	m := NewManager()
	var order []string
	for _, name := range []string{"store", "idempotency", "server"} {
		name := name
		m.RegisterFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"server", "idempotency", "store"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestManager_JoinsErrorsAndClosesEverything(t *testing.T) {
	m := NewManager()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	closed := 0
	m.RegisterFunc("a", func() error { closed++; return errA })
	m.RegisterFunc("ok", func() error { closed++; return nil })
	m.RegisterFunc("b", func() error { closed++; return errB })

	err := m.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected both errors, got %v", err)
	}
	if closed != 3 {
		t.Errorf("expected all 3 resources closed, got %d", closed)
	}
	if err := m.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
	if closed != 3 {
		t.Errorf("expected no extra closes, got %d", closed)
	}
}

func TestManager_RegisterAfterClose(t *testing.T) {
	m := NewManager()
	_ = m.Close()

	closed := false
	m.RegisterFunc("late", func() error { closed = true; return nil })
	if !closed {
		t.Error("expected late resource to be closed immediately")
	}
}

func TestManager_RegisterShutdown(t *testing.T) {
	m := NewManager()
	var deadline time.Time
	var hasDeadline bool
	m.RegisterShutdown("server", time.Second, func(ctx context.Context) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !hasDeadline || time.Until(deadline) > time.Second {
		t.Errorf("expected a deadline within 1s, got %v (set=%v)", deadline, hasDeadline)
	}
}
