package lifecycle

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager closes registered resources in reverse registration order.
// The HTTP server is registered last so it drains before the store and
// idempotency cache behind it are closed.
type Manager struct {
	mu        sync.Mutex
	resources []resource
	closed    bool
}

type resource struct {
	name   string
	closer io.Closer
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a resource. Registering after Close closes the resource immediately.
func (m *Manager) Register(name string, closer io.Closer) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		closeResource(resource{name: name, closer: closer})
		return
	}
	m.resources = append(m.resources, resource{name: name, closer: closer})
	m.mu.Unlock()
}

// RegisterFunc registers a cleanup function.
func (m *Manager) RegisterFunc(name string, fn func() error) {
	m.Register(name, closerFunc(fn))
}

// RegisterShutdown registers a context-aware shutdown such as (*http.Server).Shutdown.
// It gets at most timeout to finish.
func (m *Manager) RegisterShutdown(name string, timeout time.Duration, fn func(context.Context) error) {
	m.RegisterFunc(name, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	})
}

// Close closes every resource, last registered first, and returns all failures joined.
// Later calls are no-ops.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	resources := m.resources
	m.resources = nil
	m.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := closeResource(resources[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func closeResource(res resource) error {
	if err := res.closer.Close(); err != nil {
		log.Error().
			Err(err).
			Str("resource", res.name).
			Msg("lifecycle.close_resource_failed")
		return err
	}
	log.Debug().Str("resource", res.name).Msg("lifecycle.closed")
	return nil
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
