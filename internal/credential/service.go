package credential

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"passport-cri/internal/audit"
	"passport-cri/internal/check"
	dErrors "passport-cri/pkg/domain-errors"
	"passport-cri/pkg/platform/sentinel"
)

var credentialsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "passport_cri_credentials_issued_total",
	Help: "Verifiable credentials issued by client",
}, []string{"client_id"})

// TokenResolver maps a bearer access token to the check record it unlocks.
// Satisfied by *token.Service.
type TokenResolver interface {
	ResolveResourceID(ctx context.Context, accessToken string) (string, error)
}

// IssuerRegistry resolves a client id to its registered audience URI.
// Satisfied by *config.Config.
type IssuerRegistry interface {
	ClientIssuer(clientID string) (string, error)
}

// Service assembles and signs verifiable credentials from completed check
// records.
type Service struct {
	tokens  TokenResolver
	checks  check.Store
	issuers IssuerRegistry
	key     *ecdsa.PrivateKey
	issuer  string
	ttl     time.Duration
	audit   audit.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// Option tweaks service construction.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	tokens TokenResolver,
	checks check.Store,
	issuers IssuerRegistry,
	key *ecdsa.PrivateKey,
	issuer string,
	ttl time.Duration,
	auditor audit.Publisher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		tokens:  tokens,
		checks:  checks,
		issuers: issuers,
		key:     key,
		issuer:  issuer,
		ttl:     ttl,
		audit:   auditor,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue resolves the bearer token to its check record, assembles the VC claim
// set, and returns the ES256-signed compact JWT.
func (s *Service) Issue(ctx context.Context, accessToken string) (string, error) {
	resourceID, err := s.tokens.ResolveResourceID(ctx, accessToken)
	if err != nil {
		return "", err
	}

	record, err := s.checks.Get(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "Passport check record not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load passport check record")
	}

	audience, err := s.issuers.ClientIssuer(record.ClientID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeConfig, "client issuer is not registered")
	}

	signed, err := s.sign(buildClaims(record, s.issuer, audience, s.now(), s.ttl))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign verifiable credential")
	}

	event := audit.Event{
		Type:     audit.EventPassportCredentialIssued,
		UserID:   record.UserID,
		ClientID: record.ClientID,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return "", err
	}

	credentialsIssued.WithLabelValues(record.ClientID).Inc()
	s.logger.Info("verifiable credential issued",
		"resource_id", record.ResourceID,
		"client_id", record.ClientID,
	)
	return signed, nil
}

func (s *Service) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

func buildClaims(record *check.Record, issuer, audience string, now time.Time, ttl time.Duration) Claims {
	subject := record.Subject

	nameParts := make([]NamePart, 0, len(subject.Forenames)+1)
	for _, forename := range subject.Forenames {
		nameParts = append(nameParts, NamePart{Type: namePartGivenName, Value: forename})
	}
	nameParts = append(nameParts, NamePart{Type: namePartFamilyName, Value: subject.Surname})

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   record.UserID,
			Audience:  jwt.ClaimStrings{audience},
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		VC: VerifiableCredential{
			Type: []string{vcTypeVerifiableCredential, vcTypeIdentityCheckCredential},
			CredentialSubject: Subject{
				Name:      []Name{{NameParts: nameParts}},
				BirthDate: []BirthDate{{Value: subject.DateOfBirth.String()}},
				Passport: []Passport{{
					DocumentNumber: subject.PassportNumber,
					ExpiryDate:     subject.ExpiryDate.String(),
				}},
			},
			Evidence: []check.Evidence{record.Evidence},
		},
	}
}
