package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"passport-cri/internal/authcode"
	dErrors "passport-cri/pkg/domain-errors"
	"passport-cri/pkg/platform/sentinel"
)

var exchangeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "passport_cri_token_exchanges_total",
	Help: "Token exchange attempts by outcome",
}, []string{"outcome"})

const tokenEntropyBytes = 32

// ClientAuthenticator verifies the requesting client's credentials. The
// concrete check (assertion signature or secret) lives in internal/clientauth.
type ClientAuthenticator interface {
	Authenticate(ctx context.Context, req *Request) error
}

// CodeManager is the slice of the authorization code service the exchanger
// needs. Satisfied by *authcode.Service.
type CodeManager interface {
	Lookup(ctx context.Context, code string) (*authcode.Record, error)
	IsExpired(record *authcode.Record) bool
	MarkExchanged(ctx context.Context, code, accessToken string) error
}

// Service converts authorization codes into bearer access tokens. Validation
// is fail-fast in a fixed order; the first failure wins and nothing past it
// executes.
type Service struct {
	codes   CodeManager
	tokens  Store
	clients ClientAuthenticator
	ttl     time.Duration
	logger  *slog.Logger
}

func NewService(
	codes CodeManager,
	tokens Store,
	clients ClientAuthenticator,
	ttl time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		codes:   codes,
		tokens:  tokens,
		clients: clients,
		ttl:     ttl,
		logger:  logger,
	}
}

// Exchange validates req and trades its authorization code for an access
// token. On detecting code reuse it revokes the token issued to the first
// exchange as well as rejecting this one: the holder of a leaked code and the
// original recipient both lose.
func (s *Service) Exchange(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.GrantType == "" {
		exchangeOutcomes.WithLabelValues("invalid_request").Inc()
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "Invalid request: Missing grant_type parameter")
	}
	if req.GrantType != GrantAuthorizationCode {
		exchangeOutcomes.WithLabelValues("unsupported_grant_type").Inc()
		return nil, dErrors.New(dErrors.CodeUnsupportedGrantType, "Unsupported grant type")
	}

	if err := s.clients.Authenticate(ctx, req); err != nil {
		exchangeOutcomes.WithLabelValues("invalid_client").Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidClient, "Client authentication failed")
	}

	record, err := s.codes.Lookup(ctx, req.Code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			exchangeOutcomes.WithLabelValues("invalid_grant").Inc()
			return nil, dErrors.New(dErrors.CodeInvalidGrant, "Invalid grant")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load authorization code")
	}

	if s.codes.IsExpired(record) {
		exchangeOutcomes.WithLabelValues("invalid_grant").Inc()
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "Authorization code expired")
	}

	if record.RedirectURI != req.RedirectURI {
		exchangeOutcomes.WithLabelValues("invalid_request").Inc()
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "Invalid request")
	}

	if record.Exchanged() {
		return nil, s.rejectReuse(ctx, record)
	}

	accessToken, err := generateToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}

	// The conditional write is the gate: concurrent exchanges of the same code
	// race here and at most one proceeds to persist a token mapping.
	if err := s.codes.MarkExchanged(ctx, record.Code, accessToken); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExchanged) {
			// Lost the race; re-read to learn the winner's token to revoke.
			current, lookupErr := s.codes.Lookup(ctx, record.Code)
			if lookupErr != nil {
				exchangeOutcomes.WithLabelValues("invalid_grant").Inc()
				return nil, dErrors.New(dErrors.CodeInvalidGrant, "Authorization code used too many times")
			}
			return nil, s.rejectReuse(ctx, current)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume authorization code")
	}

	if err := s.tokens.Save(ctx, accessToken, record.ResourceID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist access token")
	}

	exchangeOutcomes.WithLabelValues("success").Inc()
	return &Response{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// rejectReuse handles a replayed code: the request fails with invalid_grant,
// and the previously issued token is revoked as a compensating action. A
// failed revocation is reported in the description but never upgrades the
// outcome past a grant error, because the primary property (rejecting the
// replay) already held.
func (s *Service) rejectReuse(ctx context.Context, record *authcode.Record) error {
	exchangeOutcomes.WithLabelValues("code_reuse").Inc()

	if record.IssuedAccessToken != "" {
		if err := s.tokens.Revoke(ctx, record.IssuedAccessToken); err != nil {
			s.logger.Error("failed to revoke access token after code reuse",
				"resource_id", record.ResourceID,
				"error", err,
			)
			return dErrors.Wrap(err, dErrors.CodeInvalidGrant, err.Error())
		}
		s.logger.Warn("authorization code reuse detected, issued token revoked",
			"resource_id", record.ResourceID,
		)
	}
	return dErrors.New(dErrors.CodeInvalidGrant, "Authorization code used too many times")
}

// ResolveResourceID maps a bearer token back to its check record for the
// credential issuance path.
func (s *Service) ResolveResourceID(ctx context.Context, accessToken string) (string, error) {
	resourceID, err := s.tokens.ResourceID(ctx, accessToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeAccessDenied,
				"Access denied - The supplied access token was not found in the database")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve access token")
	}
	return resourceID, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
