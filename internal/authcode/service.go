package authcode

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

const codeEntropyBytes = 32

// Service issues and consumes single-use authorization codes. Expiry is
// evaluated lazily against the configured TTL at lookup time; there is no
// background sweep.
type Service struct {
	store Store
	ttl   time.Duration
	clock func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(store Store, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store: store,
		ttl:   ttl,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue generates a cryptographically random code bound to a check record and
// the redirect URI it was requested for, and persists it.
func (s *Service) Issue(ctx context.Context, resourceID, redirectURI string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	record := &Record{
		Code:        code,
		ResourceID:  resourceID,
		RedirectURI: redirectURI,
		IssuedAt:    s.clock().UTC(),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return "", err
	}
	return code, nil
}

// Lookup fetches a code record; unknown codes surface the store's not-found.
func (s *Service) Lookup(ctx context.Context, code string) (*Record, error) {
	return s.store.FindByCode(ctx, code)
}

// IsExpired reports whether the record's exchange window has closed.
func (s *Service) IsExpired(record *Record) bool {
	return s.clock().Sub(record.IssuedAt) > s.ttl
}

// MarkExchanged consumes the code, recording the access token it was traded
// for. The store's conditional write serializes concurrent attempts.
func (s *Service) MarkExchanged(ctx context.Context, code, accessToken string) error {
	return s.store.MarkExchanged(ctx, code, accessToken, s.clock().UTC())
}

func generateCode() (string, error) {
	buf := make([]byte, codeEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
