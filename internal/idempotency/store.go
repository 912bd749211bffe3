// Package idempotency replays responses of create requests that carry an Idempotency-Key.
package idempotency

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/CedrosPay/cardpay/internal/config"
)

// Response is a cached response for one scoped idempotency key.
type Response struct {
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	CachedAt    time.Time         `json:"cached_at"`
}

// Store holds cached responses.
type Store interface {
	Get(ctx context.Context, key string) (*Response, bool, error)
	Set(ctx context.Context, key string, response *Response, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NewStore builds the store selected by cfg.Backend.
func NewStore(cfg config.IdempotencyConfig) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("idempotency: unknown backend %q", cfg.Backend)
	}
}

// MemoryStore is a size-bounded LRU store for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type memoryEntry struct {
	key      string
	response *Response
	expires  time.Time
}

const (
	defaultMaxEntries = 10000
	sweepInterval     = 5 * time.Minute
)

// NewMemoryStore creates a MemoryStore holding at most 10,000 responses.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithSize(defaultMaxEntries)
}

// NewMemoryStoreWithSize creates a MemoryStore with a custom bound.
func NewMemoryStoreWithSize(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = defaultMaxEntries
	}
	s := &MemoryStore{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Response, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if now.After(entry.expires) {
		s.removeLocked(el)
		return nil, false, nil
	}
	s.lru.MoveToFront(el)
	return entry.response, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, response *Response, ttl time.Duration) error {
	expires := s.now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.response = response
		entry.expires = expires
		s.lru.MoveToFront(el)
		return nil
	}

	// Evict first so the bound holds under concurrent writers.
	for len(s.entries) >= s.maxSize {
		s.removeLocked(s.lru.Back())
	}
	s.entries[key] = s.lru.PushFront(&memoryEntry{key: key, response: response, expires: expires})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// Len returns the number of cached responses, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	s.lru.Remove(el)
	delete(s.entries, el.Value.(*memoryEntry).key)
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *MemoryStore) removeExpired() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for el := s.lru.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryEntry).expires) {
			s.removeLocked(el)
		}
		el = prev
	}
}
