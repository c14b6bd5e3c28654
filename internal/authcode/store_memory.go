package authcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"passport-cri/pkg/platform/sentinel"
)

// InMemoryStore stores authorization codes in memory for tests/dev. The mutex
// gives the same at-most-once MarkExchanged guarantee the Redis and Postgres
// stores provide through their native conditional writes.
type InMemoryStore struct {
	mu    sync.Mutex
	codes map[string]*Record
}

// NewInMemoryStore constructs an empty in-memory auth code store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{codes: make(map[string]*Record)}
}

func (s *InMemoryStore) Create(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.codes[record.Code] = &clone
	return nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.codes[code]
	if !ok {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) MarkExchanged(_ context.Context, code, accessToken string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.codes[code]
	if !ok {
		return fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	if record.ExchangedAt != nil {
		return fmt.Errorf("authorization code already consumed: %w", sentinel.ErrAlreadyExchanged)
	}
	record.ExchangedAt = &at
	record.IssuedAccessToken = accessToken
	return nil
}
