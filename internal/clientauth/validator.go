package clientauth

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"passport-cri/internal/platform/config"
	"passport-cri/internal/token"
)

// AssertionTypeJWTBearer is the only client_assertion_type accepted on the
// token endpoint (RFC 7523 §2.2).
const AssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

const maxAssertionLifetime = time.Hour

// Validator authenticates relying parties on the token endpoint. Each
// registered client declares one auth method: private_key_jwt clients present
// a signed assertion, client_secret_post clients present a shared secret.
type Validator struct {
	clients  map[string]config.Client
	audience string
	now      func() time.Time
}

// NewValidator builds a validator over the registered client set. audience is
// the token endpoint URL assertions must be addressed to.
func NewValidator(clients map[string]config.Client, audience string) *Validator {
	return &Validator{clients: clients, audience: audience, now: time.Now}
}

func (v *Validator) Authenticate(ctx context.Context, req *token.Request) error {
	if req.ClientID == "" {
		return fmt.Errorf("missing client_id")
	}
	client, ok := v.clients[req.ClientID]
	if !ok {
		return fmt.Errorf("unknown client %q", req.ClientID)
	}

	switch client.AuthMethod {
	case "private_key_jwt":
		return v.verifyAssertion(req, client)
	case "client_secret_post":
		return v.verifySecret(req, client)
	default:
		return fmt.Errorf("client %q has no usable auth method", req.ClientID)
	}
}

func (v *Validator) verifyAssertion(req *token.Request, client config.Client) error {
	if req.ClientAssertionType != AssertionTypeJWTBearer {
		return fmt.Errorf("unsupported client_assertion_type %q", req.ClientAssertionType)
	}
	if req.ClientAssertion == "" {
		return fmt.Errorf("missing client_assertion")
	}

	key, err := parsePublicKey(client.PublicKeyPEM)
	if err != nil {
		return fmt.Errorf("client %q public key: %w", req.ClientID, err)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(req.ClientAssertion, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(req.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return fmt.Errorf("verify client assertion: %w", err)
	}

	if claims.Subject != req.ClientID {
		return fmt.Errorf("assertion subject %q does not match client_id", claims.Subject)
	}
	// Reject assertions minted with an implausibly long lifetime; a stolen one
	// should not stay replayable for days.
	if claims.ExpiresAt.Time.Sub(v.now()) > maxAssertionLifetime {
		return fmt.Errorf("assertion expiry too far in the future")
	}
	return nil
}

func (v *Validator) verifySecret(req *token.Request, client config.Client) error {
	if req.ClientSecret == "" {
		return fmt.Errorf("missing client_secret")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.ClientSecret)); err != nil {
		return fmt.Errorf("client secret mismatch")
	}
	return nil
}

// parsePublicKey accepts a bare PKIX public key or an X.509 certificate, the
// two shapes clients register material in.
func parsePublicKey(pemData string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if block.Type == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		return cert.PublicKey, nil
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}
