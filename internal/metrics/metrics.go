package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for cardpay.
type Metrics struct {
	// Payment metrics
	PaymentsTotal      *prometheus.CounterVec
	PaymentAmountTotal *prometheus.CounterVec
	PaymentDuration    *prometheus.HistogramVec

	// Accounts service metrics
	AccountsCallsTotal   *prometheus.CounterVec
	AccountsCallDuration *prometheus.HistogramVec
	HoldsReleasedTotal   *prometheus.CounterVec
	// Holds left pending after every release attempt failed. Alert on any increase.
	HoldReleaseFailuresTotal *prometheus.CounterVec

	// Refund metrics
	RefundsTotal      *prometheus.CounterVec
	RefundAmountTotal prometheus.Counter
	RefundDuration    prometheus.Histogram

	// HTTP edge metrics
	RateLimitHitsTotal      *prometheus.CounterVec
	IdempotencyReplaysTotal *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_payments_total",
				Help: "Payment requests by persisted status and outcome",
			},
			[]string{"status", "outcome"},
		),
		PaymentAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_payment_amount_total",
				Help: "Sum of payment amounts in minor units by persisted status",
			},
			[]string{"status"},
		),
		PaymentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardpay_payment_duration_seconds",
				Help:    "Time taken to process a payment request (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		),

		AccountsCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_accounts_calls_total",
				Help: "Calls to the accounts service by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AccountsCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardpay_accounts_call_duration_seconds",
				Help:    "Duration of accounts service calls",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),
		HoldsReleasedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_holds_released_total",
				Help: "Approved holds released because the payment could not be recorded",
			},
			[]string{"reason"},
		),
		HoldReleaseFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_hold_release_failures_total",
				Help: "Approved holds that could not be released after retries",
			},
			[]string{"reason"},
		),

		RefundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_refunds_total",
				Help: "Refund requests by outcome",
			},
			[]string{"outcome"},
		),
		RefundAmountTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cardpay_refund_amount_total",
				Help: "Sum of created refund amounts in minor units",
			},
		),
		RefundDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cardpay_refund_duration_seconds",
				Help:    "Time taken to process a refund request",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limit_type", "identifier"},
		),
		IdempotencyReplaysTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardpay_idempotency_replays_total",
				Help: "Responses served from the idempotency cache",
			},
			[]string{"route"},
		),

		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cardpay_circuit_breaker_state",
				Help: "Circuit breaker state per service (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardpay_db_query_duration_seconds",
				Help:    "Database query duration (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cardpay_db_connections_active",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cardpay_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}
}

// ObservePayment records a processed payment request.
// status is empty for requests rejected before anything was persisted.
func (m *Metrics) ObservePayment(status, outcome string, amount int64, duration time.Duration) {
	if m == nil {
		return
	}
	label := status
	if label == "" {
		label = "rejected"
	}
	m.PaymentsTotal.WithLabelValues(label, outcome).Inc()
	if status != "" && amount > 0 {
		m.PaymentAmountTotal.WithLabelValues(status).Add(float64(amount))
	}
	m.PaymentDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveAccountsCall records a call to the accounts service.
func (m *Metrics) ObserveAccountsCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AccountsCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.AccountsCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveHoldReleased records a compensating hold release.
func (m *Metrics) ObserveHoldReleased(reason string) {
	if m == nil {
		return
	}
	m.HoldsReleasedTotal.WithLabelValues(reason).Inc()
}

// ObserveHoldReleaseFailed records a hold that stayed pending after its release failed.
func (m *Metrics) ObserveHoldReleaseFailed(reason string) {
	if m == nil {
		return
	}
	m.HoldReleaseFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveRefund records a refund request and its outcome.
func (m *Metrics) ObserveRefund(outcome string, amount int64, created bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.RefundsTotal.WithLabelValues(outcome).Inc()
	if created {
		m.RefundAmountTotal.Add(float64(amount))
	}
	m.RefundDuration.Observe(duration.Seconds())
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType, identifier string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(limitType, identifier).Inc()
}

// ObserveIdempotentReplay records a cached response being replayed.
func (m *Metrics) ObserveIdempotentReplay(route string) {
	if m == nil {
		return
	}
	m.IdempotencyReplaysTotal.WithLabelValues(route).Inc()
}

// ObserveCircuitBreakerState records a breaker transition.
func (m *Metrics) ObserveCircuitBreakerState(service string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// ObserveDBQuery records a database query.
func (m *Metrics) ObserveDBQuery(operation, backend string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// ObserveDBStats copies connection pool statistics into gauges.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}
