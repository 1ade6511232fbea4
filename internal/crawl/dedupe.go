package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Deduplicator decides insert-vs-update for extracted records. Identity is
// the canonical-URL hash; when URLs drift (redirects, per-session params) the
// fallback signature (title, company, postedAt) still collapses duplicates.
type Deduplicator struct {
	store JobStore
	canon *Canonicalizer
}

// NewDeduplicator constructs a Deduplicator over the given store.
func NewDeduplicator(store JobStore, canon *Canonicalizer) *Deduplicator {
	return &Deduplicator{store: store, canon: canon}
}

// Upsert canonicalizes rec.URL, assigns the identity hash, and either updates
// the matching record or inserts a new one. It returns the stored record ID
// and whether a new row was created. Re-running an unchanged crawl therefore
// produces zero inserts.
func (d *Deduplicator) Upsert(ctx context.Context, rec JobRecord) (string, bool, error) {
	canonical, err := d.canon.Canonicalize(rec.URL)
	if err != nil {
		return "", false, fmt.Errorf("canonicalize %q: %w", rec.URL, err)
	}
	rec.URL = canonical
	rec.ID = RecordID(canonical)

	existing, err := d.store.GetJob(ctx, rec.ID)
	switch {
	case err == nil:
		return rec.ID, false, d.refresh(ctx, existing, rec)
	case !errors.Is(err, ErrNotFound):
		return "", false, fmt.Errorf("lookup job %s: %w", rec.ID, err)
	}

	existing, err = d.store.FindBySignature(ctx,
		strings.ToLower(rec.Title), strings.ToLower(rec.Company), rec.PostedAt)
	switch {
	case err == nil:
		// Same posting behind a different URL: update in place, keeping
		// the historical identity.
		return existing.ID, false, d.refresh(ctx, existing, rec)
	case !errors.Is(err, ErrNotFound):
		return "", false, fmt.Errorf("signature lookup: %w", err)
	}

	if err := d.store.InsertJob(ctx, rec); err != nil {
		return "", false, fmt.Errorf("insert job %s: %w", rec.ID, err)
	}
	return rec.ID, true, nil
}

// refresh merges the fresh crawl into the stored record. Identity fields stay
// put; content fields take the new value when the crawl produced one.
func (d *Deduplicator) refresh(ctx context.Context, existing, fresh JobRecord) error {
	merged := existing
	merged.CrawledAt = fresh.CrawledAt
	merged.Score = fresh.Score
	merged.SourceListing = fresh.SourceListing
	if fresh.Title != "" {
		merged.Title = fresh.Title
	}
	if fresh.Company != "" {
		merged.Company = fresh.Company
	}
	if fresh.Location != "" {
		merged.Location = fresh.Location
	}
	if fresh.Description != "" {
		merged.Description = fresh.Description
	}
	if fresh.PostedAt != "" {
		merged.PostedAt = fresh.PostedAt
	}
	if fresh.Budget != "" {
		merged.Budget = fresh.Budget
	}
	if fresh.SnapshotRef != "" {
		merged.SnapshotRef = fresh.SnapshotRef
	}
	for k, v := range fresh.Extra {
		if merged.Extra == nil {
			merged.Extra = make(map[string]string)
		}
		merged.Extra[k] = v
	}
	if err := d.store.UpdateJob(ctx, merged); err != nil {
		return fmt.Errorf("update job %s: %w", merged.ID, err)
	}
	return nil
}
