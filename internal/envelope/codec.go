package envelope

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v3"
)

// Failure kinds surfaced by Unwrap. Callers never see partial results; on any
// of these the payload is discarded entirely.
var (
	ErrMalformedToken   = errors.New("malformed envelope token")
	ErrDecryptionFailed = errors.New("envelope decryption failed")
	ErrSignatureInvalid = errors.New("envelope signature invalid")
	ErrBadPayload       = errors.New("envelope payload unparsable")
)

// Codec implements the JOSE envelope protocol spoken with DCS: payloads are
// signed then encrypted on the way out, decrypted then verified on the way in.
// The inverse order on unwrap is forced by the construction itself, since the
// inner signature is only visible after decryption.
//
// Key material is injected; rotation and selection are the deployment's concern.
type Codec struct {
	signingKey    *rsa.PrivateKey // ours, signs outbound
	encryptionKey *rsa.PublicKey  // DCS's, encrypts outbound
	decryptionKey *rsa.PrivateKey // ours, decrypts inbound
	verifyKey     *rsa.PublicKey  // DCS's, verifies inbound
}

func NewCodec(signing, decryption *rsa.PrivateKey, encryption, verify *rsa.PublicKey) *Codec {
	return &Codec{
		signingKey:    signing,
		encryptionKey: encryption,
		decryptionKey: decryption,
		verifyKey:     verify,
	}
}

// Prepare serializes payload, signs it with the service signing key and
// encrypts the signed object for DCS. The result is a compact JWE string.
func (c *Codec) Prepare(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal dcs payload: %w", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: c.signingKey}, nil)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	jws, err := signer.Sign(raw)
	if err != nil {
		return "", fmt.Errorf("sign dcs payload: %w", err)
	}
	signed, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize signed payload: %w", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: c.encryptionKey},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("create encrypter: %w", err)
	}
	jwe, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", fmt.Errorf("encrypt signed payload: %w", err)
	}

	token, err := jwe.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize envelope: %w", err)
	}
	return token, nil
}

// Unwrap decrypts token with the service decryption key, verifies the inner
// signature against the DCS signing key and decodes the payload into v.
func (c *Codec) Unwrap(token string, v any) error {
	jwe, err := jose.ParseEncrypted(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	signed, err := jwe.Decrypt(c.decryptionKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	jws, err := jose.ParseSigned(string(signed))
	if err != nil {
		return fmt.Errorf("%w: inner object is not a JWS: %v", ErrMalformedToken, err)
	}
	payload, err := jws.Verify(c.verifyKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}
