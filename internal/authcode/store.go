package authcode

import (
	"context"
	"time"
)

// Store persists authorization code records.
//
// Error Contract:
// - FindByCode returns sentinel.ErrNotFound (wrapped) for unknown codes
// - MarkExchanged returns sentinel.ErrNotFound for unknown codes and
//   sentinel.ErrAlreadyExchanged when the code was consumed before; it MUST be
//   implemented as an atomic compare-and-set on the exchanged-at field, never
//   read-then-write, since two near-simultaneous exchanges of a leaked code
//   must not both succeed
type Store interface {
	Create(ctx context.Context, record *Record) error
	FindByCode(ctx context.Context, code string) (*Record, error)
	MarkExchanged(ctx context.Context, code, accessToken string, at time.Time) error
}
