package cardpay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/cardpay/internal/accounts"
	"github.com/CedrosPay/cardpay/internal/circuitbreaker"
	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/dbpool"
	"github.com/CedrosPay/cardpay/internal/httpserver"
	"github.com/CedrosPay/cardpay/internal/idempotency"
	"github.com/CedrosPay/cardpay/internal/lifecycle"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/CedrosPay/cardpay/internal/payments"
	"github.com/CedrosPay/cardpay/internal/refunds"
	"github.com/CedrosPay/cardpay/internal/storage"
)

const dbStatsInterval = 15 * time.Second

// App wires the payment ledger components for embedding or standalone serving.
type App struct {
	Config      *config.Config
	Store       storage.Store
	Gateway     accounts.Gateway
	Breakers    *circuitbreaker.Manager
	Payments    *payments.Processor
	Refunds     *refunds.Processor
	Idempotency idempotency.Store
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger

	router          chi.Router
	resourceManager *lifecycle.Manager
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store    storage.Store
	gateway  accounts.Gateway
	router   chi.Router
	registry *prometheus.Registry
	logger   *zerolog.Logger
}

// WithStore sets a custom storage backend. The caller keeps ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithGateway injects an accounts gateway. It is still wrapped by the circuit breaker.
func WithGateway(gateway accounts.Gateway) Option {
	return func(o *options) {
		o.gateway = gateway
	}
}

// WithRouter allows callers to provide an existing chi.Router to register routes onto.
func WithRouter(router chi.Router) Option {
	return func(o *options) {
		o.router = router
	}
}

// WithRegistry registers metrics on a private registry and serves it from /metrics.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithLogger overrides the logger built from the logging config.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// NewApp assembles the payment services. Resources opened here are released by Close.
func NewApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("cardpay: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	app := &App{
		Config:          cfg,
		resourceManager: lifecycle.NewManager(),
	}

	if optState.logger != nil {
		app.Logger = *optState.logger
	} else {
		app.Logger = logger.New(logger.Config{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			Service:     "cardpay",
			Environment: cfg.Logging.Environment,
		})
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if optState.registry != nil {
		registerer = optState.registry
		gatherer = optState.registry
	}
	app.Metrics = metrics.New(registerer)

	if err := app.initStore(ctx, optState.store); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Breakers = circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker, func(service circuitbreaker.ServiceType, state int) {
		app.Metrics.ObserveCircuitBreakerState(string(service), state)
	})

	if optState.gateway != nil {
		app.Gateway = accounts.NewGuarded(optState.gateway, app.Breakers, app.Metrics)
	} else {
		gateway, err := accounts.New(cfg.Accounts, app.Breakers, app.Metrics)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("init accounts gateway: %w", err)
		}
		app.Gateway = gateway
	}

	app.Payments = payments.NewProcessor(app.Store, app.Gateway, app.Metrics)
	app.Refunds = refunds.NewProcessor(app.Store, app.Metrics)

	if cfg.Idempotency.Enabled {
		store, err := idempotency.NewStore(cfg.Idempotency)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("init idempotency store: %w", err)
		}
		app.Idempotency = store
		app.resourceManager.Register("idempotency-store", store)
	}

	if optState.router != nil {
		app.router = optState.router
	} else {
		app.router = chi.NewRouter()
	}

	httpserver.ConfigureRouter(app.router, app.deps(gatherer))
	return app, nil
}

func (a *App) initStore(ctx context.Context, injected storage.Store) error {
	if injected != nil {
		a.Store = injected
		return nil
	}

	storeCfg := storage.StoreConfigFrom(a.Config.Storage, a.Metrics)
	if storeCfg.Backend != "postgres" {
		store, err := storage.NewStore(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		a.Store = store
		a.resourceManager.Register("storage", store)
		a.Logger.Warn().Msg("cardpay: using in-memory ledger, data is lost on restart")
		return nil
	}

	pool, err := dbpool.NewSharedPool(ctx, storeCfg.PostgresURL, storeCfg.PostgresPool)
	if err != nil {
		return fmt.Errorf("init postgres pool: %w", err)
	}
	a.resourceManager.Register("postgres-pool", pool)

	store, err := storage.NewStoreWithDB(ctx, storeCfg, pool.DB())
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	a.Store = store

	statsCtx, stop := context.WithCancel(context.Background())
	go pool.ReportStats(statsCtx, a.Metrics, dbStatsInterval)
	a.resourceManager.RegisterFunc("postgres-stats", func() error {
		stop()
		return nil
	})
	return nil
}

// Migrate creates the ledger schema when the store supports it.
func (a *App) Migrate(ctx context.Context) error {
	migrator, ok := a.Store.(interface{ Migrate(context.Context) error })
	if !ok {
		return nil
	}
	return migrator.Migrate(ctx)
}

func (a *App) deps(gatherer prometheus.Gatherer) httpserver.Deps {
	return httpserver.Deps{
		Config:      a.Config,
		Payments:    a.Payments,
		Refunds:     a.Refunds,
		Store:       a.Store,
		Breakers:    a.Breakers,
		Idempotency: a.Idempotency,
		Metrics:     a.Metrics,
		Gatherer:    gatherer,
		Logger:      a.Logger,
	}
}

// Router returns the chi router with cardpay routes registered.
func (a *App) Router() chi.Router {
	return a.router
}

// Handler exposes the router as an http.Handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Close releases resources owned by the app in reverse order of acquisition.
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// NewHandler is a convenience that constructs an App and returns its handler.
func NewHandler(ctx context.Context, cfg *config.Config, opts ...Option) (http.Handler, func(context.Context) error, error) {
	app, err := NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	shutdown := func(context.Context) error {
		return app.Close()
	}
	return app.Handler(), shutdown, nil
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding cardpay.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *config.Config {
	return config.Default()
}
