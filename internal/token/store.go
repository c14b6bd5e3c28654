package token

import "context"

// Store maps opaque bearer tokens to the check record they unlock. A token
// resolves to exactly one resource id until revoked.
//
// Error Contract:
// - ResourceID returns sentinel.ErrNotFound (wrapped) for unknown or revoked
//   tokens; the caller cannot distinguish the two, by design
// - Revoke of an unknown token is a no-op, since revocation is a compensating
//   action that must not fail louder than the primary path
type Store interface {
	Save(ctx context.Context, accessToken, resourceID string) error
	ResourceID(ctx context.Context, accessToken string) (string, error)
	Revoke(ctx context.Context, accessToken string) error
}
