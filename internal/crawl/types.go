// Package crawl defines the core types shared across the worker subsystems.
package crawl

import "time"

// JobRecord is one discovered job posting. The ID is a pure function of the
// canonical URL, so repeated crawls of the same posting converge on one row.
type JobRecord struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Title         string            `json:"title"`
	Company       string            `json:"company"`
	Location      string            `json:"location"`
	Description   string            `json:"description"`
	PostedAt      string            `json:"posted_at,omitempty"`
	Budget        string            `json:"budget,omitempty"`
	Platform      string            `json:"platform"`
	SourceListing string            `json:"source_listing"`
	CrawledAt     time.Time         `json:"crawled_at"`
	Score         int               `json:"score"`
	SnapshotRef   string            `json:"snapshot_ref,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// CrawlStatus is the terminal state of one listing crawl attempt.
type CrawlStatus string

// Crawl log status values. Skipped covers politeness outcomes (robots or
// budget) where the listing was deliberately not fetched; it is not a failure.
const (
	CrawlStatusOK      CrawlStatus = "ok"
	CrawlStatusError   CrawlStatus = "error"
	CrawlStatusSkipped CrawlStatus = "skipped"
)

// CrawlLogEntry records one attempt to crawl one listing URL. It is created
// before the first fetch and finalized exactly once, whatever happens.
type CrawlLogEntry struct {
	ListingURL string      `json:"listing_url"`
	Domain     string      `json:"domain"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Status     CrawlStatus `json:"status"`
	NumFound   int         `json:"num_found"`
	Errors     string      `json:"errors,omitempty"`
}

// OutreachStatus is the lifecycle state of an outreach message.
type OutreachStatus string

// Outreach status values. The scheduler owns the queued->sent|failed
// transition; delivery callbacks may later move sent->responded.
const (
	OutreachQueued    OutreachStatus = "queued"
	OutreachSent      OutreachStatus = "sent"
	OutreachFailed    OutreachStatus = "failed"
	OutreachResponded OutreachStatus = "responded"
)

// OutreachMessage is one queued or sent communication tied to a lead.
type OutreachMessage struct {
	ID          string            `json:"id"`
	LeadID      string            `json:"lead_id"`
	Channel     string            `json:"channel"`
	TemplateID  string            `json:"template_id"`
	Recipient   string            `json:"recipient"`
	Subject     string            `json:"subject,omitempty"`
	Body        string            `json:"body,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	SentAt      *time.Time        `json:"sent_at,omitempty"`
	Status      OutreachStatus    `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TaskOptions carries the per-task toggles accepted on the crawl endpoint.
type TaskOptions struct {
	RespectRobots         bool `json:"respect_robots"`
	RespectRobotsProvided bool `json:"-"`
	Snapshots             bool `json:"snapshots"`
}

// CrawlTask is one unit of queued crawl work: a batch of listing URLs plus
// the scoring keywords submitted with them.
type CrawlTask struct {
	ID            string            `json:"id"`
	URLs          []string          `json:"urls"`
	Keywords      []string          `json:"keywords"`
	MaxCandidates int               `json:"max_candidates"`
	MinScore      int               `json:"min_score"`
	Options       TaskOptions       `json:"options"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Submitted     int64             `json:"submitted"`
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL       string
	UserAgent string
	SettleFor time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Candidate is a ranked job-detail link harvested from a listing page.
type Candidate struct {
	URL        string
	AnchorText string
	Depth      int
}

// ListingResult summarizes one processed listing for event publishing.
type ListingResult struct {
	TaskID     string      `json:"task_id"`
	ListingURL string      `json:"listing_url"`
	Status     CrawlStatus `json:"status"`
	NumFound   int         `json:"num_found"`
	Inserted   int         `json:"inserted"`
	Updated    int         `json:"updated"`
}
