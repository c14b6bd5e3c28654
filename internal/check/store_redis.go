package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"passport-cri/pkg/platform/sentinel"
)

const checkRecordKeyPrefix = "check:resource:"

// RedisStore is the production check store. Records are written once and read
// by the credential issuance path; the retention TTL is the store's lifecycle
// policy, not a business rule.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Put(ctx context.Context, record *Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode check record: %w", err)
	}
	key := checkRecordKeyPrefix + record.ResourceID
	if err := s.client.Set(ctx, key, raw, s.retention).Err(); err != nil {
		return fmt.Errorf("store check record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, resourceID string) (*Record, error) {
	key := checkRecordKeyPrefix + resourceID
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("passport check record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load check record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode check record: %w", err)
	}
	return &record, nil
}
