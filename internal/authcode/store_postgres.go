package authcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"passport-cri/pkg/platform/sentinel"
)

// PostgresStore persists authorization codes in PostgreSQL. The conditional
// write rides on `WHERE exchanged_at IS NULL`, so row locking gives the same
// exactly-one-winner guarantee as the Redis script.
//
// Schema: migrations/0001_authorization_codes.sql
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO authorization_codes (code, resource_id, redirect_uri, issued_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.pool.Exec(ctx, query,
		record.Code, record.ResourceID, record.RedirectURI, record.IssuedAt.UTC())
	if err != nil {
		return fmt.Errorf("store authorization code: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*Record, error) {
	query := `
		SELECT code, resource_id, redirect_uri, issued_at, exchanged_at, access_token
		FROM authorization_codes
		WHERE code = $1
	`
	var (
		record      Record
		exchangedAt *time.Time
		accessToken *string
	)
	err := s.pool.QueryRow(ctx, query, code).Scan(
		&record.Code, &record.ResourceID, &record.RedirectURI,
		&record.IssuedAt, &exchangedAt, &accessToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load authorization code: %w", err)
	}
	record.ExchangedAt = exchangedAt
	if accessToken != nil {
		record.IssuedAccessToken = *accessToken
	}
	return &record, nil
}

func (s *PostgresStore) MarkExchanged(ctx context.Context, code, accessToken string, at time.Time) error {
	query := `
		UPDATE authorization_codes
		SET exchanged_at = $2, access_token = $3
		WHERE code = $1 AND exchanged_at IS NULL
	`
	tag, err := s.pool.Exec(ctx, query, code, at.UTC(), accessToken)
	if err != nil {
		return fmt.Errorf("mark authorization code exchanged: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the code never existed or it lost the race. One more
	// read distinguishes the two for the caller's error mapping.
	existing, err := s.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if existing.Exchanged() {
		return fmt.Errorf("authorization code already consumed: %w", sentinel.ErrAlreadyExchanged)
	}
	return fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
}
