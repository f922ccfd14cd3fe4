package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tilver/backend/internal/domain/shared"
)

// expiringSet is a set of keys that drop out after their TTL
type expiringSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newExpiringSet() *expiringSet {
	return &expiringSet{entries: make(map[string]time.Time)}
}

// add stores key unless a live entry exists. It returns the new expiry and
// whether key was added.
func (s *expiringSet) add(key string, ttl time.Duration) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return time.Time{}, false
	}
	expiresAt := now.Add(ttl)
	s.entries[key] = expiresAt
	return expiresAt, true
}

func (s *expiringSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[key]
	return ok && time.Now().Before(expiresAt)
}

func (s *expiringSet) remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// removeIf deletes key only while it still carries expiresAt
func (s *expiringSet) removeIf(key string, expiresAt time.Time) {
	s.mu.Lock()
	if current, ok := s.entries[key]; ok && current.Equal(expiresAt) {
		delete(s.entries, key)
	}
	s.mu.Unlock()
}

func (s *expiringSet) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

func (s *expiringSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// InMemoryIdempotencyStore keeps processed keys in process memory.
// Suitable for a single instance and for tests.
type InMemoryIdempotencyStore struct {
	keys      *expiringSet
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		keys:     newExpiringSet(),
		stopChan: make(chan struct{}),
	}
	store.wg.Add(1)
	go store.cleanupLoop()
	return store
}

// MarkProcessed returns true if key was newly marked
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, added := s.keys.add(key, ttl)
	return added, nil
}

// IsProcessed reports whether key is marked and not expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	return s.keys.has(key), nil
}

// Release forgets key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.keys.remove(key)
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
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

func (s *InMemoryIdempotencyStore) cleanup() {
	s.keys.sweep()
}

// Size returns the number of stored keys, expired ones included until the next sweep
func (s *InMemoryIdempotencyStore) Size() int {
	return s.keys.len()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
