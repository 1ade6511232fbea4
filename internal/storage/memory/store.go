// Package memory provides in-memory store implementations for development
// and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobsift/crawlworker/internal/crawl"
)

// Store implements JobStore, CrawlLogStore, and OutreachStore in memory.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]crawl.JobRecord
	logs     []crawl.CrawlLogEntry
	outreach map[string]crawl.OutreachMessage
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]crawl.JobRecord),
		outreach: make(map[string]crawl.OutreachMessage),
	}
}

// GetJob implements crawl.JobStore.
func (s *Store) GetJob(_ context.Context, id string) (crawl.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return crawl.JobRecord{}, crawl.ErrNotFound
	}
	return rec, nil
}

// FindBySignature implements crawl.JobStore.
func (s *Store) FindBySignature(_ context.Context, title, company, postedAt string) (crawl.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.jobs {
		if strings.ToLower(rec.Title) == title &&
			strings.ToLower(rec.Company) == company &&
			rec.PostedAt == postedAt {
			return rec, nil
		}
	}
	return crawl.JobRecord{}, crawl.ErrNotFound
}

// InsertJob implements crawl.JobStore.
func (s *Store) InsertJob(_ context.Context, rec crawl.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[rec.ID] = rec
	return nil
}

// UpdateJob implements crawl.JobStore.
func (s *Store) UpdateJob(_ context.Context, rec crawl.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[rec.ID]; !ok {
		return crawl.ErrNotFound
	}
	s.jobs[rec.ID] = rec
	return nil
}

// JobCount reports the number of stored records.
func (s *Store) JobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Jobs returns a snapshot of all records, for tests.
func (s *Store) Jobs() []crawl.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec)
	}
	return out
}

// StartCrawl implements crawl.CrawlLogStore.
func (s *Store) StartCrawl(_ context.Context, entry crawl.CrawlLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// FinishCrawl implements crawl.CrawlLogStore.
func (s *Store) FinishCrawl(_ context.Context, entry crawl.CrawlLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.logs {
		if s.logs[i].ListingURL == entry.ListingURL && s.logs[i].StartTime.Equal(entry.StartTime) {
			s.logs[i] = entry
			return nil
		}
	}
	return crawl.ErrNotFound
}

// CrawlLogs returns a snapshot of all crawl log entries.
func (s *Store) CrawlLogs() []crawl.CrawlLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.CrawlLogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// AddOutreach queues a message; used by tests and dev seeding.
func (s *Store) AddOutreach(msg crawl.OutreachMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outreach[msg.ID] = msg
}

// GetOutreach returns one message by ID.
func (s *Store) GetOutreach(id string) (crawl.OutreachMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.outreach[id]
	return msg, ok
}

// DueMessages implements crawl.OutreachStore.
func (s *Store) DueMessages(_ context.Context, now time.Time, limit int) ([]crawl.OutreachMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []crawl.OutreachMessage
	for _, msg := range s.outreach {
		if msg.Status == crawl.OutreachQueued && !msg.ScheduledAt.After(now) {
			due = append(due, msg)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MarkSent implements crawl.OutreachStore.
func (s *Store) MarkSent(_ context.Context, id string, sentAt time.Time, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.outreach[id]
	if !ok {
		return crawl.ErrNotFound
	}
	msg.Status = crawl.OutreachSent
	msg.SentAt = &sentAt
	msg.Metadata = mergeMetadata(msg.Metadata, metadata)
	s.outreach[id] = msg
	return nil
}

// MarkFailed implements crawl.OutreachStore.
func (s *Store) MarkFailed(_ context.Context, id string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.outreach[id]
	if !ok {
		return crawl.ErrNotFound
	}
	msg.Status = crawl.OutreachFailed
	msg.Metadata = mergeMetadata(msg.Metadata, metadata)
	s.outreach[id] = msg
	return nil
}

// AppendCallback implements crawl.OutreachStore. Callbacks never touch the
// scheduler-owned queued->sent|failed transition.
func (s *Store) AppendCallback(_ context.Context, id string, responded bool, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.outreach[id]
	if !ok {
		return crawl.ErrNotFound
	}
	msg.Metadata = mergeMetadata(msg.Metadata, metadata)
	if responded && msg.Status == crawl.OutreachSent {
		msg.Status = crawl.OutreachResponded
	}
	s.outreach[id] = msg
	return nil
}

func mergeMetadata(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
