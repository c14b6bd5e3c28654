package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"passport-cri/pkg/platform/sentinel"
)

var resolveDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "passport_cri_token_resolve_duration_ms",
	Help:    "Latency of access token resolution in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const accessTokenKeyPrefix = "token:access:"

// RedisStore is the production token store. The TTL bounds the token's
// lifetime; revocation deletes the mapping, which makes it effective
// immediately on the next resolve.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, accessToken, resourceID string) error {
	key := accessTokenKeyPrefix + accessToken
	if err := s.client.Set(ctx, key, resourceID, s.ttl).Err(); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	return nil
}

func (s *RedisStore) ResourceID(ctx context.Context, accessToken string) (string, error) {
	start := time.Now()
	defer func() {
		resolveDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	key := accessTokenKeyPrefix + accessToken
	resourceID, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("access token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve access token: %w", err)
	}
	return resourceID, nil
}

func (s *RedisStore) Revoke(ctx context.Context, accessToken string) error {
	key := accessTokenKeyPrefix + accessToken
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}
