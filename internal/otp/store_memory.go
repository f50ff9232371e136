package otp

import (
	"context"
	"sync"

	"ekyc/pkg/platform/sentinel"
)

// InMemoryStore keeps challenges per reference, newest last. Used in tests
// and single-process deployments.
type InMemoryStore struct {
	mu         sync.RWMutex
	challenges map[string][]Challenge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: map[string][]Challenge{}}
}

func (s *InMemoryStore) Create(_ context.Context, challenge Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.ReferenceNumber] = append(s.challenges[challenge.ReferenceNumber], challenge)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, challenge Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.challenges[challenge.ReferenceNumber]
	for i := range list {
		if list[i].ChallengeID == challenge.ChallengeID {
			list[i] = challenge
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryStore) LatestByReference(_ context.Context, referenceNumber string) (Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.challenges[referenceNumber]
	if len(list) == 0 {
		return Challenge{}, sentinel.ErrNotFound
	}
	return list[len(list)-1], nil
}
