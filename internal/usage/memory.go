package usage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store for development runs without Redis
// and for handler tests. Counters vanish on restart — main.go logs loudly
// when it falls back to this.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

// GetOrCreate returns the device's count, materializing it at 0 if absent.
// Never errors.
func (s *MemoryStore) GetOrCreate(_ context.Context, deviceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, ok := s.counts[deviceID]
	if !ok {
		s.counts[deviceID] = 0
	}
	return count, nil
}

// Increment adds 1 under the lock — the in-memory equivalent of INCR.
func (s *MemoryStore) Increment(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[deviceID]++
	return nil
}
