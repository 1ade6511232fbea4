package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestCheckAndIncrGrantsWhenRowUpserted(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	counter, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO outreach_counters").
		WithArgs("outreach:global", "2026-08-30", 20).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ok, err := counter.CheckAndIncr(context.Background(), "outreach:global", "2026-08-30", 20)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrRefusesWhenCapReached(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	counter, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO outreach_counters").
		WithArgs("outreach:domain:example.com", "2026-08-30", 5).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := counter.CheckAndIncr(context.Background(), "outreach:domain:example.com", "2026-08-30", 5)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndIncrRefusesNonPositiveLimit(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	counter, err := NewWithPool(mock)
	require.NoError(t, err)

	// No statement runs; the fresh-row insert path would always grant.
	for _, limit := range []int{0, -1} {
		ok, err := counter.CheckAndIncr(context.Background(), "outreach:global", "2026-08-30", limit)
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrReleasesSlot(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	counter, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE outreach_counters").
		WithArgs("outreach:global", "2026-08-30").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, counter.Decr(context.Background(), "outreach:global", "2026-08-30"))
	require.NoError(t, mock.ExpectationsWereMet())
}
