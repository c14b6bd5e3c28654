//go:build integration

package authcode_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"passport-cri/internal/authcode"
	"passport-cri/pkg/platform/sentinel"
	"passport-cri/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *authcode.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = authcode.NewRedisStore(s.redis.Client, 24*time.Hour)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Millisecond)

	record := &authcode.Record{
		Code:        "test-code",
		ResourceID:  "resource-1",
		RedirectURI: "https://example.com/callback",
		IssuedAt:    issuedAt,
	}
	s.Require().NoError(s.store.Create(ctx, record))

	found, err := s.store.FindByCode(ctx, "test-code")
	s.Require().NoError(err)
	s.Equal(record.Code, found.Code)
	s.Equal(record.ResourceID, found.ResourceID)
	s.Equal(record.RedirectURI, found.RedirectURI)
	s.True(found.IssuedAt.Equal(issuedAt))
	s.Nil(found.ExchangedAt)
}

func (s *RedisStoreSuite) TestFindUnknownCode() {
	_, err := s.store.FindByCode(context.Background(), "missing")
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestMarkExchangedConditionalWrite() {
	ctx := context.Background()

	record := &authcode.Record{
		Code:        "test-code",
		ResourceID:  "resource-1",
		RedirectURI: "https://example.com/callback",
		IssuedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.store.Create(ctx, record))

	s.Require().NoError(s.store.MarkExchanged(ctx, "test-code", "token-1", time.Now().UTC()))

	err := s.store.MarkExchanged(ctx, "test-code", "token-2", time.Now().UTC())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrAlreadyExchanged)

	found, err := s.store.FindByCode(ctx, "test-code")
	s.Require().NoError(err)
	s.Require().True(found.Exchanged())
	s.Equal("token-1", found.IssuedAccessToken)
}

func (s *RedisStoreSuite) TestMarkExchangedUnknownCode() {
	err := s.store.MarkExchanged(context.Background(), "missing", "token", time.Now().UTC())
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentMarkExchanged exercises the Lua compare-and-set under real
// concurrency: exactly one of N parallel exchanges may succeed.
func (s *RedisStoreSuite) TestConcurrentMarkExchanged() {
	ctx := context.Background()

	record := &authcode.Record{
		Code:        "contested-code",
		ResourceID:  "resource-1",
		RedirectURI: "https://example.com/callback",
		IssuedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.store.Create(ctx, record))

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.MarkExchanged(ctx, "contested-code", "token", time.Now().UTC()); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
}
