package cardpay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/cardpay/internal/accounts"
	"github.com/CedrosPay/cardpay/internal/accounts/accountstest"
	"github.com/CedrosPay/cardpay/internal/storage"
)

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	cfg := DefaultConfig()
	opts = append([]Option{WithRegistry(prometheus.NewRegistry()), WithLogger(zerolog.Nop())}, opts...)
	app, err := NewApp(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_RequiresConfig(t *testing.T) {
	if _, err := NewApp(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewApp_DefaultsServePayments(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"payment":{"amount":1045,"card_number":"123451234512345"}}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from dummy gateway, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"payment":{"amount":1045,"card_number":"001234512345123"}}`))
	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for account 00, got %d", rec.Code)
	}

	if app.Idempotency == nil {
		t.Error("expected idempotency store with default config")
	}
	if err := app.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate on memory store: %v", err)
	}
}

func TestNewApp_InjectedCollaborators(t *testing.T) {
	store := storage.NewMemoryStore()
	gateway := accountstest.New(accounts.OutcomeServiceUnavailable)
	app := newTestApp(t, WithStore(store), WithGateway(gateway))

	if app.Store != store {
		t.Error("expected injected store")
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"payment":{"amount":10,"card_number":"12345123451234`+string(rune('0'+i))+`"}}`))
		rec := httptest.NewRecorder()
		app.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	}
	if gateway.Holds() != 2 {
		t.Errorf("expected the injected gateway to be called, got %d holds", gateway.Holds())
	}

	// Store is caller-owned and stays usable after Close.
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("injected store should not be closed: %v", err)
	}
}

func TestNewApp_InvalidBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"storage", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"accounts", func(c *Config) { c.Accounts.Backend = "soap" }},
		{"idempotency", func(c *Config) { c.Idempotency.Backend = "memcached" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := NewApp(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()), WithLogger(zerolog.Nop()))
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewHandler_ServesHealth(t *testing.T) {
	handler, shutdown, err := NewHandler(context.Background(), DefaultConfig(), WithRegistry(prometheus.NewRegistry()), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	defer shutdown(context.Background())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"accountsBreaker":"closed"`) {
		t.Errorf("expected breaker state in health body: %s", rec.Body.String())
	}
}
