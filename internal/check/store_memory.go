package check

import (
	"context"
	"fmt"
	"sync"

	"passport-cri/pkg/platform/sentinel"
)

// InMemoryStore stores check records in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryStore constructs an empty in-memory check store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

func (s *InMemoryStore) Put(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.ResourceID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, resourceID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[resourceID]
	if !ok {
		return nil, fmt.Errorf("passport check record not found: %w", sentinel.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}
