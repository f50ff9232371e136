package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps entries per reference number, append order preserved.
// It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ReferenceNumber] = append(s.entries[entry.ReferenceNumber], entry)
	return nil
}

func (s *InMemoryStore) ListByReference(_ context.Context, referenceNumber string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries[referenceNumber]...), nil
}
