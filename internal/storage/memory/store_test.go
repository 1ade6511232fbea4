package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobsift/crawlworker/internal/crawl"
)

func TestJobInsertAndLookup(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	rec := crawl.JobRecord{
		ID:       "abc",
		URL:      "https://jobs.example.com/posting/1",
		Title:    "Go Developer",
		Company:  "Example Co",
		PostedAt: "2026-08-30",
	}
	require.NoError(t, store.InsertJob(ctx, rec))

	got, err := store.GetJob(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "Go Developer", got.Title)

	_, err = store.GetJob(ctx, "missing")
	require.ErrorIs(t, err, crawl.ErrNotFound)
}

func TestFindBySignatureMatchesLowercasedTuple(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.InsertJob(ctx, crawl.JobRecord{
		ID:       "abc",
		Title:    "Go Developer",
		Company:  "Example Co",
		PostedAt: "2026-08-30",
	}))

	got, err := store.FindBySignature(ctx, "go developer", "example co", "2026-08-30")
	require.NoError(t, err)
	require.Equal(t, "abc", got.ID)

	_, err = store.FindBySignature(ctx, "go developer", "example co", "2026-08-29")
	require.ErrorIs(t, err, crawl.ErrNotFound)
}

func TestUpdateJobRequiresExistingRow(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	err := store.UpdateJob(ctx, crawl.JobRecord{ID: "nope"})
	require.ErrorIs(t, err, crawl.ErrNotFound)

	require.NoError(t, store.InsertJob(ctx, crawl.JobRecord{ID: "abc", Score: 10}))
	require.NoError(t, store.UpdateJob(ctx, crawl.JobRecord{ID: "abc", Score: 55}))

	got, err := store.GetJob(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 55, got.Score)
}

func TestFinishCrawlMatchesStartKey(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	entry := crawl.CrawlLogEntry{
		ListingURL: "https://jobs.example.com/",
		Domain:     "jobs.example.com",
		StartTime:  start,
	}
	require.NoError(t, store.StartCrawl(ctx, entry))

	end := start.Add(3 * time.Second)
	entry.EndTime = &end
	entry.Status = crawl.CrawlStatusOK
	entry.NumFound = 4
	require.NoError(t, store.FinishCrawl(ctx, entry))

	logs := store.CrawlLogs()
	require.Len(t, logs, 1)
	require.Equal(t, crawl.CrawlStatusOK, logs[0].Status)
	require.Equal(t, 4, logs[0].NumFound)
	require.NotNil(t, logs[0].EndTime)

	entry.StartTime = start.Add(time.Hour)
	require.ErrorIs(t, store.FinishCrawl(ctx, entry), crawl.ErrNotFound)
}

func TestDueMessagesFiltersAndOrders(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	store.AddOutreach(crawl.OutreachMessage{
		ID: "late", Status: crawl.OutreachQueued, ScheduledAt: now.Add(-time.Minute),
	})
	store.AddOutreach(crawl.OutreachMessage{
		ID: "early", Status: crawl.OutreachQueued, ScheduledAt: now.Add(-time.Hour),
	})
	store.AddOutreach(crawl.OutreachMessage{
		ID: "future", Status: crawl.OutreachQueued, ScheduledAt: now.Add(time.Hour),
	})
	store.AddOutreach(crawl.OutreachMessage{
		ID: "done", Status: crawl.OutreachSent, ScheduledAt: now.Add(-time.Hour),
	})

	due, err := store.DueMessages(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "early", due[0].ID)
	require.Equal(t, "late", due[1].ID)

	due, err = store.DueMessages(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "early", due[0].ID)
}

func TestOutreachTransitions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	store.AddOutreach(crawl.OutreachMessage{ID: "m1", Status: crawl.OutreachQueued})

	require.NoError(t, store.MarkSent(ctx, "m1", now, map[string]string{"provider_id": "p-1"}))
	msg, ok := store.GetOutreach("m1")
	require.True(t, ok)
	require.Equal(t, crawl.OutreachSent, msg.Status)
	require.NotNil(t, msg.SentAt)
	require.Equal(t, "p-1", msg.Metadata["provider_id"])

	require.NoError(t, store.AppendCallback(ctx, "m1", true, map[string]string{"reply": "yes"}))
	msg, _ = store.GetOutreach("m1")
	require.Equal(t, crawl.OutreachResponded, msg.Status)
	require.Equal(t, "yes", msg.Metadata["reply"])

	store.AddOutreach(crawl.OutreachMessage{ID: "m2", Status: crawl.OutreachQueued})
	require.NoError(t, store.MarkFailed(ctx, "m2", map[string]string{"error": "timeout"}))
	msg, _ = store.GetOutreach("m2")
	require.Equal(t, crawl.OutreachFailed, msg.Status)

	// A callback on a failed message only appends metadata.
	require.NoError(t, store.AppendCallback(ctx, "m2", true, nil))
	msg, _ = store.GetOutreach("m2")
	require.Equal(t, crawl.OutreachFailed, msg.Status)

	require.ErrorIs(t, store.MarkSent(ctx, "missing", now, nil), crawl.ErrNotFound)
}
