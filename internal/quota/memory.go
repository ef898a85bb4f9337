package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore is an in-process CounterStore for single-node
// deployments and tests.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryCounterStore constructs an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
	}
}

// Incr increments the counter and returns the new value. The expiry set by
// the first increment wins for the life of the key.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	counter, ok := s.counters[key]
	if !ok || (!counter.expiresAt.IsZero() && now.After(counter.expiresAt)) {
		counter = &memoryCounter{}
		if ttl > 0 {
			counter.expiresAt = now.Add(ttl)
		}
		s.counters[key] = counter
	}
	counter.value++
	return counter.value, nil
}

// Decr decrements the counter, flooring at zero.
func (s *MemoryCounterStore) Decr(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if counter, ok := s.counters[key]; ok && counter.value > 0 {
		counter.value--
	}
	return nil
}
