package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jobsift/crawlworker/internal/crawl"
)

func TestInsertJobWritesAllColumns(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := crawl.JobRecord{
		ID:            "aabbcc",
		URL:           "https://jobs.example.com/posting/1",
		Title:         "Go Developer",
		Company:       "Example Co",
		Location:      "Remote",
		Description:   "Build crawlers.",
		PostedAt:      "2026-08-30",
		Platform:      "jobs.example.com",
		SourceListing: "https://jobs.example.com/",
		CrawledAt:     now,
		Score:         40,
		Extra:         map[string]string{"lang": "go"},
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(
			rec.ID,
			rec.URL,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.Description,
			rec.PostedAt,
			rec.Budget,
			rec.Platform,
			rec.SourceListing,
			rec.CrawledAt,
			rec.Score,
			rec.SnapshotRef,
			[]byte(`{"lang":"go"}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertJob(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .+ FROM jobs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, crawl.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishCrawlUpdatesMatchingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	start := time.Unix(1700000000, 0).UTC()
	end := start.Add(2 * time.Second)
	entry := crawl.CrawlLogEntry{
		ListingURL: "https://jobs.example.com/",
		Domain:     "jobs.example.com",
		StartTime:  start,
		EndTime:    &end,
		Status:     crawl.CrawlStatusOK,
		NumFound:   3,
	}

	mock.ExpectExec("UPDATE crawl_logs SET").
		WithArgs(entry.ListingURL, entry.StartTime, entry.EndTime, "ok", 3, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.FinishCrawl(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishCrawlUnmatchedRowIsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	start := time.Unix(1700000000, 0).UTC()
	entry := crawl.CrawlLogEntry{
		ListingURL: "https://jobs.example.com/",
		StartTime:  start,
		Status:     crawl.CrawlStatusError,
		Errors:     "fetch failed",
	}

	mock.ExpectExec("UPDATE crawl_logs SET").
		WithArgs(entry.ListingURL, entry.StartTime, entry.EndTime, "error", 0, "fetch failed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, store.FinishCrawl(context.Background(), entry), crawl.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDueMessagesScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	scheduled := now.Add(-time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "lead_id", "channel", "template_id", "recipient", "subject",
		"body", "scheduled_at", "sent_at", "status", "metadata",
	}).AddRow(
		"m1", "lead-1", "email", "intro", "team@example.com", "Hello",
		"Hi there", scheduled, (*time.Time)(nil), crawl.OutreachQueued,
		[]byte(`{"source":"crawl"}`),
	)

	mock.ExpectQuery("SELECT .+ FROM outreach_logs").
		WithArgs("queued", now, 20).
		WillReturnRows(rows)

	due, err := store.DueMessages(context.Background(), now, 20)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "m1", due[0].ID)
	require.Equal(t, crawl.OutreachQueued, due[0].Status)
	require.Equal(t, "crawl", due[0].Metadata["source"])
	require.Nil(t, due[0].SentAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSentMissingRowIsNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	sentAt := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("UPDATE outreach_logs SET").
		WithArgs("missing", "sent", sentAt, []byte("{}")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, store.MarkSent(context.Background(), "missing", sentAt, nil), crawl.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
