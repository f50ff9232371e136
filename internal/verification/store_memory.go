package verification

import (
	"context"
	"sync"
	"time"

	"ekyc/pkg/platform/sentinel"
)

// InMemoryStore backs tests and single-process deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[string]Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: map[string]Request{}}
}

func (s *InMemoryStore) Create(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ReferenceNumber]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ReferenceNumber] = req
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ReferenceNumber]; !exists {
		return sentinel.ErrNotFound
	}
	s.requests[req.ReferenceNumber] = req
	return nil
}

func (s *InMemoryStore) GetByReference(_ context.Context, referenceNumber string) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, exists := s.requests[referenceNumber]
	if !exists {
		return Request{}, sentinel.ErrNotFound
	}
	return req, nil
}

func (s *InMemoryStore) ListStaleInProgress(_ context.Context, cutoff time.Time, limit int) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale []Request
	for _, req := range s.requests {
		if req.Status == StatusInProgress && req.CreatedAt.Before(cutoff) {
			stale = append(stale, req)
			if len(stale) == limit {
				break
			}
		}
	}
	return stale, nil
}
