package authcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"passport-cri/pkg/platform/sentinel"
)

const authCodeKeyPrefix = "authcode:"

// markExchangedScript is the conditional write for single-use enforcement.
// Running inside Redis makes check-and-set atomic without client-side locking:
// of N concurrent exchanges exactly one sees 1, the rest see 0.
var markExchangedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
if redis.call("HGET", KEYS[1], "exchanged_at") then
	return 0
end
redis.call("HSET", KEYS[1], "exchanged_at", ARGV[1], "access_token", ARGV[2])
return 1
`)

// RedisStore is the production authorization code store. Records live as
// hashes so the exchanged-at field can be compare-and-set server-side. The
// retention window deliberately exceeds the exchange TTL: replay detection on
// a consumed code must keep working after the code itself has expired.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) Create(ctx context.Context, record *Record) error {
	key := authCodeKeyPrefix + record.Code
	fields := map[string]any{
		"code":         record.Code,
		"resource_id":  record.ResourceID,
		"redirect_uri": record.RedirectURI,
		"issued_at":    record.IssuedAt.UTC().Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store authorization code: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByCode(ctx context.Context, code string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, authCodeKeyPrefix+code).Result()
	if err != nil {
		return nil, fmt.Errorf("load authorization code: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("decode authorization code issued_at: %w", err)
	}

	record := &Record{
		Code:              fields["code"],
		ResourceID:        fields["resource_id"],
		RedirectURI:       fields["redirect_uri"],
		IssuedAt:          issuedAt,
		IssuedAccessToken: fields["access_token"],
	}
	if raw, ok := fields["exchanged_at"]; ok && raw != "" {
		exchangedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode authorization code exchanged_at: %w", err)
		}
		record.ExchangedAt = &exchangedAt
	}
	return record, nil
}

func (s *RedisStore) MarkExchanged(ctx context.Context, code, accessToken string, at time.Time) error {
	key := authCodeKeyPrefix + code
	res, err := markExchangedScript.Run(
		ctx, s.client, []string{key},
		at.UTC().Format(time.RFC3339Nano), accessToken,
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("mark authorization code exchanged: %w", err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("authorization code already consumed: %w", sentinel.ErrAlreadyExchanged)
	default:
		return fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
}
