package cache

import (
	"context"
	"sync"
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
)

// entry is one key with its response and deadline
type entry struct {
	resp      shared.IdempotentResponse
	expiresAt time.Time
}

// InMemoryIdempotencyStore keeps Idempotency-Key outcomes in process memory.
// Retries routed to another instance are not deduplicated, so it serves
// single-instance deployments, local runs and tests.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	sweep     time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryStoreOption configures an InMemoryIdempotencyStore
type InMemoryStoreOption func(*InMemoryIdempotencyStore)

// WithSweepInterval sets how often expired keys are dropped
func WithSweepInterval(d time.Duration) InMemoryStoreOption {
	return func(s *InMemoryIdempotencyStore) {
		if d > 0 {
			s.sweep = d
		}
	}
}

// WithStoreClock replaces time.Now
func WithStoreClock(now func() time.Time) InMemoryStoreOption {
	return func(s *InMemoryIdempotencyStore) {
		s.now = now
	}
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore(opts ...InMemoryStoreOption) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		sweep:    5 * time.Minute,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Reserve claims a key for the first request carrying it
func (s *InMemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.entries[key]; exists && now.Before(e.expiresAt) {
		return false, nil
	}

	s.entries[key] = entry{
		resp:      shared.IdempotentResponse{Pending: true},
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// Complete stores the response of a reserved key
func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key string, resp shared.IdempotentResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp.Pending = false
	resp.Body = append([]byte(nil), resp.Body...)
	s.entries[key] = entry{
		resp:      resp,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Lookup returns the stored response, or nil if the key is unknown or expired
func (s *InMemoryIdempotencyStore) Lookup(_ context.Context, key string) (*shared.IdempotentResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists || !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	resp := e.resp
	return &resp, nil
}

// Release drops a pending reservation. Completed entries are kept.
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists && e.resp.Pending {
		delete(s.entries, key)
	}
	return nil
}

// Close stops the sweeper. It is safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup drops expired keys and reports how many were removed
func (s *InMemoryIdempotencyStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of keys held, expired or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
