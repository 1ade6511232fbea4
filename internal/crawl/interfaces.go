package crawl

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors used for control flow in the pipeline. None of them abort a
// crawl batch; they are recorded and the pipeline moves on.
var (
	// ErrBudgetExhausted means the domain hit its per-run page budget.
	ErrBudgetExhausted = errors.New("domain page budget exhausted")
	// ErrRobotsDisallowed means robots.txt forbids fetching the path.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	// ErrQueueFull means the ingest queue rejected a new task.
	ErrQueueFull = errors.New("task queue full")
	// ErrCapExceeded means an outreach cap blocked a send for today.
	ErrCapExceeded = errors.New("outreach cap exceeded")
	// ErrNoTitle means a detail page produced no usable title.
	ErrNoTitle = errors.New("no usable title extracted")
	// ErrNotFound is returned by stores for missing rows.
	ErrNotFound = errors.New("not found")
)

// JobStore persists job records keyed by canonical identity.
type JobStore interface {
	GetJob(ctx context.Context, id string) (JobRecord, error)
	// FindBySignature matches on the fallback dedupe tuple: lowercased
	// title, lowercased company, and the raw postedAt string.
	FindBySignature(ctx context.Context, title, company, postedAt string) (JobRecord, error)
	InsertJob(ctx context.Context, rec JobRecord) error
	UpdateJob(ctx context.Context, rec JobRecord) error
}

// CrawlLogStore persists crawl attempts.
type CrawlLogStore interface {
	StartCrawl(ctx context.Context, entry CrawlLogEntry) error
	// FinishCrawl finalizes the entry matching (listingURL, startTime).
	FinishCrawl(ctx context.Context, entry CrawlLogEntry) error
}

// OutreachStore persists outreach messages and their transitions.
type OutreachStore interface {
	DueMessages(ctx context.Context, now time.Time, limit int) ([]OutreachMessage, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time, metadata map[string]string) error
	MarkFailed(ctx context.Context, id string, metadata map[string]string) error
	// AppendCallback records provider delivery feedback. It only appends
	// metadata and may flip a sent message to responded.
	AppendCallback(ctx context.Context, id string, responded bool, metadata map[string]string) error
}

// CounterStore provides atomic check-and-increment counters keyed by
// (name, day). Increment must be refused, not clamped, once limit is reached.
type CounterStore interface {
	CheckAndIncr(ctx context.Context, name string, day string, limit int) (bool, error)
	// Decr releases a previously granted slot, so outcomes that did not
	// result in a send give their capacity back.
	Decr(ctx context.Context, name string, day string) error
}

// BlobStore writes raw page snapshots and returns a stable URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes pipeline events to an external topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Queue provides bounded enqueue/dequeue semantics for crawl tasks.
type Queue interface {
	// TryEnqueue returns ErrQueueFull instead of blocking.
	TryEnqueue(task CrawlTask) error
	Dequeue(ctx context.Context) (CrawlTask, error)
}

// RobotsPolicy answers whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task and message IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for snapshot naming and integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}
