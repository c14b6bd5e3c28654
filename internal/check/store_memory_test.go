package check_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passport-cri/internal/check"
	"passport-cri/pkg/platform/sentinel"
)

func testRecord() *check.Record {
	return &check.Record{
		ResourceID: "resource-1",
		Subject: check.SubjectAttributes{
			PassportNumber: "1234567890",
			Surname:        "Tattsyrup",
			Forenames:      []string{"Tubbs"},
			DateOfBirth:    check.NewDate(1984, 9, 28),
			ExpiryDate:     check.NewDate(2024, 9, 3),
		},
		Outcome:  check.Outcome{CorrelationID: "corr-1", RequestID: "req-1", Valid: true},
		Evidence: check.Evidence{Type: "IdentityCheck", TransactionID: "txn-1", StrengthScore: 4, ValidityScore: 2},
		UserID:   "user-1",
		ClientID: "client-1",
	}
}

func TestInMemoryStore_PutAndGet(t *testing.T) {
	store := check.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testRecord()))

	got, err := store.Get(ctx, "resource-1")
	require.NoError(t, err)
	assert.Equal(t, testRecord(), got)
}

func TestInMemoryStore_GetUnknown(t *testing.T) {
	store := check.NewInMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	store := check.NewInMemoryStore()
	ctx := context.Background()

	record := testRecord()
	require.NoError(t, store.Put(ctx, record))

	// Mutating the caller's record or a returned record must not leak into
	// the stored copy.
	record.Subject.Surname = "changed"
	first, err := store.Get(ctx, "resource-1")
	require.NoError(t, err)
	first.Outcome.Valid = false

	second, err := store.Get(ctx, "resource-1")
	require.NoError(t, err)
	assert.Equal(t, "Tattsyrup", second.Subject.Surname)
	assert.True(t, second.Outcome.Valid)
}

func TestParseDate_RoundTrip(t *testing.T) {
	d, err := check.ParseDate("1984-09-28")
	require.NoError(t, err)
	assert.Equal(t, "1984-09-28", d.String())

	_, err = check.ParseDate("28/09/1984")
	require.Error(t, err)
}
