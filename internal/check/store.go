package check

import "context"

// Store persists passport check records keyed by resource id.
//
// Error Contract:
// - Get returns sentinel.ErrNotFound (wrapped) when no record exists
// - Put is an idempotent overwrite; each check produces a fresh resource id,
//   so overwrites only ever happen on retries of the same write
type Store interface {
	Put(ctx context.Context, record *Record) error
	Get(ctx context.Context, resourceID string) (*Record, error)
}
