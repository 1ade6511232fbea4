// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobsift/crawlworker/internal/crawl"
)

// PoolIface is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type PoolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements the job, crawl log, and outreach stores on Postgres.
//
// Schema:
//
//	CREATE TABLE jobs (
//		id TEXT PRIMARY KEY,
//		url TEXT NOT NULL,
//		title TEXT NOT NULL,
//		company TEXT NOT NULL,
//		location TEXT NOT NULL,
//		description TEXT NOT NULL,
//		posted_at TEXT NOT NULL DEFAULT '',
//		budget TEXT NOT NULL DEFAULT '',
//		platform TEXT NOT NULL,
//		source_listing TEXT NOT NULL,
//		crawled_at TIMESTAMPTZ NOT NULL,
//		score INT NOT NULL,
//		snapshot_ref TEXT NOT NULL DEFAULT '',
//		extra JSONB
//	);
//
//	CREATE TABLE crawl_logs (
//		id BIGSERIAL PRIMARY KEY,
//		listing_url TEXT NOT NULL,
//		domain TEXT NOT NULL,
//		start_time TIMESTAMPTZ NOT NULL,
//		end_time TIMESTAMPTZ,
//		status TEXT NOT NULL DEFAULT '',
//		num_found INT NOT NULL DEFAULT 0,
//		errors TEXT NOT NULL DEFAULT '',
//		UNIQUE (listing_url, start_time)
//	);
//
//	CREATE TABLE outreach_logs (
//		id TEXT PRIMARY KEY,
//		lead_id TEXT NOT NULL,
//		channel TEXT NOT NULL,
//		template_id TEXT NOT NULL DEFAULT '',
//		recipient TEXT NOT NULL,
//		subject TEXT NOT NULL DEFAULT '',
//		body TEXT NOT NULL DEFAULT '',
//		scheduled_at TIMESTAMPTZ NOT NULL,
//		sent_at TIMESTAMPTZ,
//		status TEXT NOT NULL,
//		metadata JSONB
//	);
type Store struct {
	pool PoolIface
}

// New connects a pgx pool and returns a Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool PoolIface) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const jobColumns = `id, url, title, company, location, description, posted_at,
budget, platform, source_listing, crawled_at, score, snapshot_ref, extra`

// GetJob implements crawl.JobStore.
func (s *Store) GetJob(ctx context.Context, id string) (crawl.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return s.scanJob(s.pool.QueryRow(ctx, query, id))
}

// FindBySignature implements crawl.JobStore.
func (s *Store) FindBySignature(ctx context.Context, title, company, postedAt string) (crawl.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
WHERE lower(title) = $1 AND lower(company) = $2 AND posted_at = $3
LIMIT 1`
	return s.scanJob(s.pool.QueryRow(ctx, query, title, company, postedAt))
}

func (s *Store) scanJob(row pgx.Row) (crawl.JobRecord, error) {
	var (
		rec       crawl.JobRecord
		crawledAt time.Time
		extraRaw  []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Title,
		&rec.Company,
		&rec.Location,
		&rec.Description,
		&rec.PostedAt,
		&rec.Budget,
		&rec.Platform,
		&rec.SourceListing,
		&crawledAt,
		&rec.Score,
		&rec.SnapshotRef,
		&extraRaw,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawl.JobRecord{}, crawl.ErrNotFound
		}
		return crawl.JobRecord{}, fmt.Errorf("scan job: %w", err)
	}
	rec.CrawledAt = crawledAt
	if len(extraRaw) > 0 {
		if err := json.Unmarshal(extraRaw, &rec.Extra); err != nil {
			return crawl.JobRecord{}, fmt.Errorf("decode job extra: %w", err)
		}
	}
	return rec, nil
}

// InsertJob implements crawl.JobStore.
func (s *Store) InsertJob(ctx context.Context, rec crawl.JobRecord) error {
	extraJSON, err := marshalMap(rec.Extra)
	if err != nil {
		return fmt.Errorf("encode job extra: %w", err)
	}
	query := `INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err = s.pool.Exec(ctx, query,
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
		extraJSON,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJob implements crawl.JobStore.
func (s *Store) UpdateJob(ctx context.Context, rec crawl.JobRecord) error {
	extraJSON, err := marshalMap(rec.Extra)
	if err != nil {
		return fmt.Errorf("encode job extra: %w", err)
	}
	query := `UPDATE jobs SET
url = $2, title = $3, company = $4, location = $5, description = $6,
posted_at = $7, budget = $8, platform = $9, source_listing = $10,
crawled_at = $11, score = $12, snapshot_ref = $13, extra = $14
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
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
		extraJSON,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

// StartCrawl implements crawl.CrawlLogStore.
func (s *Store) StartCrawl(ctx context.Context, entry crawl.CrawlLogEntry) error {
	query := `INSERT INTO crawl_logs (listing_url, domain, start_time)
VALUES ($1, $2, $3)`
	_, err := s.pool.Exec(ctx, query, entry.ListingURL, entry.Domain, entry.StartTime)
	if err != nil {
		return fmt.Errorf("insert crawl log: %w", err)
	}
	return nil
}

// FinishCrawl implements crawl.CrawlLogStore.
func (s *Store) FinishCrawl(ctx context.Context, entry crawl.CrawlLogEntry) error {
	query := `UPDATE crawl_logs SET
end_time = $3, status = $4, num_found = $5, errors = $6
WHERE listing_url = $1 AND start_time = $2`
	tag, err := s.pool.Exec(ctx, query,
		entry.ListingURL,
		entry.StartTime,
		entry.EndTime,
		string(entry.Status),
		entry.NumFound,
		entry.Errors,
	)
	if err != nil {
		return fmt.Errorf("finalize crawl log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

// DueMessages implements crawl.OutreachStore.
func (s *Store) DueMessages(ctx context.Context, now time.Time, limit int) ([]crawl.OutreachMessage, error) {
	query := `SELECT id, lead_id, channel, template_id, recipient, subject, body,
scheduled_at, sent_at, status, metadata
FROM outreach_logs
WHERE status = $1 AND scheduled_at <= $2
ORDER BY scheduled_at ASC
LIMIT $3`
	rows, err := s.pool.Query(ctx, query, string(crawl.OutreachQueued), now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due outreach: %w", err)
	}
	defer rows.Close()

	var out []crawl.OutreachMessage
	for rows.Next() {
		var (
			msg     crawl.OutreachMessage
			sentAt  *time.Time
			metaRaw []byte
		)
		err := rows.Scan(
			&msg.ID,
			&msg.LeadID,
			&msg.Channel,
			&msg.TemplateID,
			&msg.Recipient,
			&msg.Subject,
			&msg.Body,
			&msg.ScheduledAt,
			&sentAt,
			&msg.Status,
			&metaRaw,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outreach row: %w", err)
		}
		msg.SentAt = sentAt
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode outreach metadata: %w", err)
			}
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outreach rows: %w", err)
	}
	return out, nil
}

// MarkSent implements crawl.OutreachStore.
func (s *Store) MarkSent(ctx context.Context, id string, sentAt time.Time, metadata map[string]string) error {
	metaJSON, err := marshalMap(metadata)
	if err != nil {
		return fmt.Errorf("encode outreach metadata: %w", err)
	}
	query := `UPDATE outreach_logs SET
status = $2, sent_at = $3, metadata = COALESCE(metadata, '{}'::jsonb) || $4::jsonb
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, string(crawl.OutreachSent), sentAt, orEmptyJSON(metaJSON))
	if err != nil {
		return fmt.Errorf("mark outreach sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

// MarkFailed implements crawl.OutreachStore.
func (s *Store) MarkFailed(ctx context.Context, id string, metadata map[string]string) error {
	metaJSON, err := marshalMap(metadata)
	if err != nil {
		return fmt.Errorf("encode outreach metadata: %w", err)
	}
	query := `UPDATE outreach_logs SET
status = $2, metadata = COALESCE(metadata, '{}'::jsonb) || $3::jsonb
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, string(crawl.OutreachFailed), orEmptyJSON(metaJSON))
	if err != nil {
		return fmt.Errorf("mark outreach failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

// AppendCallback implements crawl.OutreachStore. Only sent messages can flip
// to responded; everything else just accumulates metadata.
func (s *Store) AppendCallback(ctx context.Context, id string, responded bool, metadata map[string]string) error {
	metaJSON, err := marshalMap(metadata)
	if err != nil {
		return fmt.Errorf("encode outreach metadata: %w", err)
	}
	query := `UPDATE outreach_logs SET
metadata = COALESCE(metadata, '{}'::jsonb) || $2::jsonb,
status = CASE WHEN $3 AND status = $4 THEN $5 ELSE status END
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		id,
		orEmptyJSON(metaJSON),
		responded,
		string(crawl.OutreachSent),
		string(crawl.OutreachResponded),
	)
	if err != nil {
		return fmt.Errorf("append outreach callback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawl.ErrNotFound
	}
	return nil
}

func marshalMap(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func orEmptyJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
