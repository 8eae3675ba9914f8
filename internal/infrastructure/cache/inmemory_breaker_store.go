package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/resilience"
)

type breakerState struct {
	failures    int
	lastFailure time.Time
}

// InMemoryBreakerStore keeps breaker state in process memory.
// Each process instance has an independent view of every destination.
type InMemoryBreakerStore struct {
	mu     sync.Mutex
	states map[string]breakerState
}

// NewInMemoryBreakerStore creates an empty in-memory breaker store
func NewInMemoryBreakerStore() *InMemoryBreakerStore {
	return &InMemoryBreakerStore{states: make(map[string]breakerState)}
}

// State returns the failure count and last failure time for destination
func (s *InMemoryBreakerStore) State(_ context.Context, destination string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[destination]
	return st.failures, st.lastFailure, nil
}

// RecordFailure increments the failure count for destination
func (s *InMemoryBreakerStore) RecordFailure(_ context.Context, destination string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[destination]
	st.failures++
	st.lastFailure = at
	s.states[destination] = st
	return st.failures, nil
}

// Reset clears the state for destination
func (s *InMemoryBreakerStore) Reset(_ context.Context, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, destination)
	return nil
}

// Close is a no-op kept for parity with the Redis store
func (s *InMemoryBreakerStore) Close() error {
	return nil
}

var _ resilience.BreakerStore = (*InMemoryBreakerStore)(nil)
