package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("connection reset")

func fastConfig() Config {
	return Config{MaxRetries: 3, BaseDelay: time.Millisecond}
}

func TestDo_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", fastConfig(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("unknown hold")
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := Do(context.Background(), "test", cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestDo_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, BaseDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, "test", cfg, func() error {
			calls++
			return errTransient
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("expected a single call before cancel, got %d", calls)
	}
}

func TestWithRetry_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := WithRetry(context.Background(), "test", fastConfig(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "hold-1", nil
	})
	if err != nil || got != "hold-1" {
		t.Fatalf("expected hold-1, got %q, %v", got, err)
	}
}
