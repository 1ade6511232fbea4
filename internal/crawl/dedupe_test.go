package crawl

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	jobs map[string]JobRecord
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]JobRecord)}
}

func (s *fakeJobStore) GetJob(_ context.Context, id string) (JobRecord, error) {
	rec, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *fakeJobStore) FindBySignature(_ context.Context, title, company, postedAt string) (JobRecord, error) {
	for _, rec := range s.jobs {
		if strings.ToLower(rec.Title) == title &&
			strings.ToLower(rec.Company) == company &&
			rec.PostedAt == postedAt {
			return rec, nil
		}
	}
	return JobRecord{}, ErrNotFound
}

func (s *fakeJobStore) InsertJob(_ context.Context, rec JobRecord) error {
	s.jobs[rec.ID] = rec
	return nil
}

func (s *fakeJobStore) UpdateJob(_ context.Context, rec JobRecord) error {
	s.jobs[rec.ID] = rec
	return nil
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	t.Parallel()

	store := newFakeJobStore()
	dedupe := NewDeduplicator(store, NewCanonicalizer(nil))
	ctx := context.Background()

	rec := JobRecord{
		URL:       "https://example.com/jobs/1?utm_source=feed",
		Title:     "Go Engineer",
		Company:   "Acme",
		PostedAt:  "2026-08-01",
		Score:     25,
		CrawledAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	id, created, err := dedupe.Upsert(ctx, rec)
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, store.jobs, 1)

	// Second crawl of the same posting, tracking params differ.
	rec.URL = "https://example.com/jobs/1?utm_source=other&utm_medium=x"
	rec.Score = 40
	rec.CrawledAt = rec.CrawledAt.Add(24 * time.Hour)
	id2, created, err := dedupe.Upsert(ctx, rec)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id, id2)
	require.Len(t, store.jobs, 1)
	require.Equal(t, 40, store.jobs[id].Score)
	require.Equal(t, rec.CrawledAt, store.jobs[id].CrawledAt)
}

func TestUpsertFallbackSignatureMatch(t *testing.T) {
	t.Parallel()

	store := newFakeJobStore()
	dedupe := NewDeduplicator(store, NewCanonicalizer(nil))
	ctx := context.Background()

	first := JobRecord{
		URL:      "https://example.com/jobs/1",
		Title:    "Go Engineer",
		Company:  "Acme",
		PostedAt: "2026-08-01",
	}
	id, created, err := dedupe.Upsert(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	// Same posting served from a session-scoped URL.
	second := first
	second.URL = "https://example.com/postings/session-9f2/view"
	second.Title = "GO ENGINEER"
	second.Company = "ACME"
	gotID, created, err := dedupe.Upsert(ctx, second)
	require.NoError(t, err)
	require.False(t, created, "signature match must update, not insert")
	require.Equal(t, id, gotID, "identity sticks with the first-seen URL")
	require.Len(t, store.jobs, 1)
}

func TestUpsertPreservesFieldsOnEmptyRefresh(t *testing.T) {
	t.Parallel()

	store := newFakeJobStore()
	dedupe := NewDeduplicator(store, NewCanonicalizer(nil))
	ctx := context.Background()

	full := JobRecord{
		URL:         "https://example.com/jobs/1",
		Title:       "Go Engineer",
		Company:     "Acme",
		Location:    "Berlin",
		Description: "Original description",
		PostedAt:    "2026-08-01",
	}
	id, _, err := dedupe.Upsert(ctx, full)
	require.NoError(t, err)

	sparse := JobRecord{
		URL:      "https://example.com/jobs/1",
		Title:    "Go Engineer",
		Company:  "Acme",
		PostedAt: "2026-08-01",
	}
	_, created, err := dedupe.Upsert(ctx, sparse)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Berlin", store.jobs[id].Location)
	require.Equal(t, "Original description", store.jobs[id].Description)
}

func TestUpsertDistinctURLsInsertTwice(t *testing.T) {
	t.Parallel()

	store := newFakeJobStore()
	dedupe := NewDeduplicator(store, NewCanonicalizer(nil))
	ctx := context.Background()

	_, created, err := dedupe.Upsert(ctx, JobRecord{URL: "https://example.com/jobs/1", Title: "A", Company: "X", PostedAt: "1"})
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = dedupe.Upsert(ctx, JobRecord{URL: "https://example.com/jobs/2", Title: "B", Company: "Y", PostedAt: "2"})
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, store.jobs, 2)
}
