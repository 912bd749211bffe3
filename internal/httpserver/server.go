package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/CedrosPay/cardpay/internal/circuitbreaker"
	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/CedrosPay/cardpay/internal/idempotency"
	"github.com/CedrosPay/cardpay/internal/logger"
	"github.com/CedrosPay/cardpay/internal/metrics"
	"github.com/CedrosPay/cardpay/internal/payments"
	"github.com/CedrosPay/cardpay/internal/ratelimit"
	"github.com/CedrosPay/cardpay/internal/refunds"
	"github.com/CedrosPay/cardpay/internal/storage"
)

var serverStartTime = time.Now()

const (
	lightTimeout = 5 * time.Second
	// Covers the accounts round trip plus the ledger write.
	apiTimeout = 60 * time.Second
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config      *config.Config
	Payments    *payments.Processor
	Refunds     *refunds.Processor
	Store       storage.Store
	Breakers    *circuitbreaker.Manager // optional, reported by /health
	Idempotency idempotency.Store       // optional, disables Idempotency-Key handling when nil
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer // optional, defaults to the global registry
	Logger      zerolog.Logger
}

// Server wires handlers, middleware, and dependencies.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg      *config.Config
	payments *payments.Processor
	refunds  *refunds.Processor
	store    storage.Store
	breakers *circuitbreaker.Manager
	logger   zerolog.Logger
}

func newHandlers(deps Deps) handlers {
	return handlers{
		cfg:      deps.Config,
		payments: deps.Payments,
		refunds:  deps.Refunds,
		store:    deps.Store,
		breakers: deps.Breakers,
		logger:   deps.Logger,
	}
}

// New builds the HTTP server with a configured router.
func New(deps Deps) *Server {
	router := chi.NewRouter()
	cfg := deps.Config

	s := &Server{
		handlers: newHandlers(deps),
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}

	ConfigureRouter(router, deps)
	return s
}

// ConfigureRouter attaches cardpay routes to an existing router.
func ConfigureRouter(router chi.Router, deps Deps) {
	if router == nil {
		return
	}
	cfg := deps.Config
	handler := newHandlers(deps)

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Idempotency-Key", "X-Request-ID", "Authorization"},
			ExposedHeaders:   []string{"Location", "X-Request-ID", idempotency.HeaderReplay},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware(deps.Logger))
	router.Use(middleware.Recoverer)

	prefix := cfg.Server.RoutePrefix

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(lightTimeout))
		r.Get("/health", handler.health)

		metricsHandler := promhttp.Handler()
		if deps.Gatherer != nil {
			metricsHandler = promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
		}
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle(prefix+"/metrics", metricsHandler)
	})

	limits := ratelimit.ConfigFrom(cfg.RateLimit, deps.Metrics)
	idempotent := func(route string) func(http.Handler) http.Handler {
		if deps.Idempotency == nil || !cfg.Idempotency.Enabled {
			return func(next http.Handler) http.Handler { return next }
		}
		return idempotency.Middleware(deps.Idempotency, idempotency.Options{
			TTL:          cfg.Idempotency.TTL.Duration,
			MaxBodyBytes: maxBodyBytes,
			Route:        route,
			Metrics:      deps.Metrics,
		})
	}

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.Use(ratelimit.GlobalLimiter(limits))
		r.Use(ratelimit.IPLimiter(limits))

		r.With(idempotent("payments")).Post(prefix+"/payments", handler.createPayment)
		r.Get(prefix+"/payments/{paymentID}", handler.getPayment)

		r.With(idempotent("refunds")).Post(prefix+"/payments/{paymentID}/refunds", handler.createRefund)
		r.Get(prefix+"/payments/{paymentID}/refunds", handler.listRefunds)
		r.Get(prefix+"/payments/{paymentID}/refunds/{refundID}", handler.getRefund)
	})
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
