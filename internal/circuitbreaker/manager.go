package circuitbreaker

import (
	"errors"
	"time"

	"github.com/CedrosPay/cardpay/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ServiceType identifies different external services for circuit breaker isolation.
type ServiceType string

const (
	ServiceAccounts ServiceType = "accounts"
)

// ErrOpen is returned by Execute when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuitbreaker: open")

// StateListener is notified on every breaker transition.
// state is 0 for closed, 1 for half-open and 2 for open.
type StateListener func(service ServiceType, state int)

// Manager manages circuit breakers for different external services.
// Each service gets its own breaker so one degraded dependency cannot trip another.
type Manager struct {
	breakers map[ServiceType]*gobreaker.CircuitBreaker
	config   Config
	listener StateListener
}

// Config holds circuit breaker configuration for all services.
type Config struct {
	Enabled  bool
	Accounts BreakerConfig
}

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed through while half-open.
	MaxRequests uint32

	// Interval is the cyclic period in closed state to clear the internal counts.
	// If 0, never clears.
	Interval time.Duration

	// Timeout is the period of the open state after which the state becomes half-open.
	Timeout time.Duration

	// Trip thresholds: consecutive failures, or a failure ratio once MinRequests is reached.
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// NewManagerFromConfig creates a circuit breaker manager from application config.
func NewManagerFromConfig(cfg config.CircuitBreakerConfig, listener StateListener) *Manager {
	return NewManager(Config{
		Enabled: cfg.Enabled,
		Accounts: BreakerConfig{
			MaxRequests:         cfg.Accounts.MaxRequests,
			Interval:            cfg.Accounts.Interval.Duration,
			Timeout:             cfg.Accounts.Timeout.Duration,
			ConsecutiveFailures: cfg.Accounts.ConsecutiveFailures,
			FailureRatio:        cfg.Accounts.FailureRatio,
			MinRequests:         cfg.Accounts.MinRequests,
		},
	}, listener)
}

// NewManager creates a circuit breaker manager with the given configuration.
func NewManager(cfg Config, listener StateListener) *Manager {
	m := &Manager{
		breakers: make(map[ServiceType]*gobreaker.CircuitBreaker),
		config:   cfg,
		listener: listener,
	}

	if !cfg.Enabled {
		// Pass-through manager
		return m
	}

	m.breakers[ServiceAccounts] = gobreaker.NewCircuitBreaker(m.toGobreakerSettings(ServiceAccounts, cfg.Accounts))
	return m
}

// Execute wraps a function call with circuit breaker protection.
// If circuit breaker is disabled or not configured for the service, executes directly.
// Rejections while open or over the half-open quota are reported as ErrOpen.
func (m *Manager) Execute(service ServiceType, fn func() (interface{}, error)) (interface{}, error) {
	if !m.config.Enabled {
		return fn()
	}

	breaker, ok := m.breakers[service]
	if !ok {
		return fn()
	}

	result, err := breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return result, err
}

// State returns the current state of a circuit breaker.
// Returns "disabled" if circuit breakers are not enabled or "not_configured" for unknown services.
func (m *Manager) State(service ServiceType) string {
	if !m.config.Enabled {
		return "disabled"
	}

	breaker, ok := m.breakers[service]
	if !ok {
		return "not_configured"
	}

	return breaker.State().String()
}

// Counts returns the current counts for a circuit breaker.
func (m *Manager) Counts(service ServiceType) Counts {
	if !m.config.Enabled {
		return Counts{}
	}

	breaker, ok := m.breakers[service]
	if !ok {
		return Counts{}
	}

	c := breaker.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (m *Manager) toGobreakerSettings(service ServiceType, cfg BreakerConfig) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        string(service),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && cfg.MinRequests > 0 && counts.Requests >= cfg.MinRequests {
				failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
				if failureRate >= cfg.FailureRatio {
					return true
				}
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("service", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit_breaker.state_changed")
			if m.listener != nil {
				m.listener(service, int(to))
			}
		},
	}
}

// DefaultConfig returns sensible defaults for circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Accounts: BreakerConfig{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
	}
}
