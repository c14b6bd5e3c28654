package token

import (
	"context"
	"fmt"
	"sync"

	"passport-cri/pkg/platform/sentinel"
)

// InMemoryStore keeps token mappings in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewInMemoryStore constructs an empty in-memory token store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]string)}
}

func (s *InMemoryStore) Save(_ context.Context, accessToken, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[accessToken] = resourceID
	return nil
}

func (s *InMemoryStore) ResourceID(_ context.Context, accessToken string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resourceID, ok := s.tokens[accessToken]
	if !ok {
		return "", fmt.Errorf("access token not found: %w", sentinel.ErrNotFound)
	}
	return resourceID, nil
}

func (s *InMemoryStore) Revoke(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, accessToken)
	return nil
}
