// Package worker runs the crawl pipeline for queued tasks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobsift/crawlworker/internal/crawl"
	"github.com/jobsift/crawlworker/internal/metrics"
)

// Config carries the crawl policy knobs shared by all workers.
type Config struct {
	UserAgent         string
	MaxPagesPerDomain int
	PerDomainDelay    time.Duration
	MaxCandidates     int
	RespectRobots     bool
	ListingSettle     time.Duration
	Snapshots         bool
	ResultTopic       string
}

// Deps bundles the collaborators a Worker needs.
type Deps struct {
	Queue    crawl.Queue
	Fetcher  crawl.Fetcher
	Headless crawl.Fetcher
	Dedup    *crawl.Deduplicator
	Logs     crawl.CrawlLogStore
	Blobs    crawl.BlobStore
	Pub      crawl.Publisher
	Hasher   crawl.Hasher
	Clock    crawl.Clock
}

// Worker drains crawl tasks from the queue and runs them through the
// fetch-extract-dedupe pipeline.
type Worker struct {
	deps      Deps
	extractor *crawl.Extractor
	cfg       Config
	logger    *zap.Logger
}

// New creates a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	return &Worker{
		deps:      deps,
		extractor: crawl.NewExtractor(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes tasks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			continue
		}
		metrics.IncActiveWorkers()
		w.ProcessTask(ctx, task)
		metrics.DecActiveWorkers()
	}
}

// ProcessTask crawls every listing in the task. Each task gets a fresh
// politeness budget; a runaway domain in one task cannot starve the next.
func (w *Worker) ProcessTask(ctx context.Context, task crawl.CrawlTask) {
	budget := crawl.NewBudget(w.cfg.MaxPagesPerDomain, w.cfg.PerDomainDelay)

	respect := w.cfg.RespectRobots
	if task.Options.RespectRobotsProvided {
		respect = task.Options.RespectRobots
	}
	robots := crawl.NewRobotsPolicy(respect, w.cfg.UserAgent, w.logger)

	logger := w.logger.With(zap.String("task_id", task.ID))
	logger.Info("task started",
		zap.Int("listings", len(task.URLs)),
		zap.Strings("keywords", task.Keywords))

	for _, listingURL := range task.URLs {
		result := w.processListing(ctx, task, budget, robots, listingURL, logger)
		if w.deps.Pub != nil && w.cfg.ResultTopic != "" {
			if _, err := w.deps.Pub.Publish(ctx, w.cfg.ResultTopic, result); err != nil {
				logger.Warn("publish listing result failed",
					zap.String("listing_url", listingURL),
					zap.Error(err))
			}
		}
	}
	logger.Info("task finished")
}

// processListing handles one listing URL end to end. The crawl log entry is
// opened before the first fetch and finalized exactly once on every path.
func (w *Worker) processListing(
	ctx context.Context,
	task crawl.CrawlTask,
	budget *crawl.Budget,
	robots crawl.RobotsPolicy,
	listingURL string,
	logger *zap.Logger,
) crawl.ListingResult {
	start := w.deps.Clock.Now().UTC()
	domain := crawl.Domain(listingURL)
	entry := crawl.CrawlLogEntry{
		ListingURL: listingURL,
		Domain:     domain,
		StartTime:  start,
	}
	if err := w.deps.Logs.StartCrawl(ctx, entry); err != nil {
		logger.Error("open crawl log failed", zap.String("listing_url", listingURL), zap.Error(err))
	}

	result := crawl.ListingResult{TaskID: task.ID, ListingURL: listingURL}
	var problems []string

	finish := func(status crawl.CrawlStatus, numFound int) crawl.ListingResult {
		end := w.deps.Clock.Now().UTC()
		entry.EndTime = &end
		entry.Status = status
		entry.NumFound = numFound
		entry.Errors = strings.Join(problems, "; ")
		if err := w.deps.Logs.FinishCrawl(ctx, entry); err != nil {
			logger.Error("finalize crawl log failed", zap.String("listing_url", listingURL), zap.Error(err))
		}
		result.Status = status
		result.NumFound = numFound
		return result
	}

	if !robots.Allowed(ctx, listingURL) {
		metrics.ObservePolitenessSkip(listingURL, "robots")
		problems = append(problems, crawl.ErrRobotsDisallowed.Error())
		return finish(crawl.CrawlStatusSkipped, 0)
	}
	if err := budget.Acquire(ctx, listingURL); err != nil {
		problems = append(problems, err.Error())
		if errors.Is(err, crawl.ErrBudgetExhausted) {
			metrics.ObservePolitenessSkip(listingURL, "budget")
			return finish(crawl.CrawlStatusSkipped, 0)
		}
		return finish(crawl.CrawlStatusError, 0)
	}

	body, err := w.fetchListing(ctx, budget, listingURL, logger)
	if err != nil {
		problems = append(problems, fmt.Sprintf("fetch listing: %v", err))
		if errors.Is(err, crawl.ErrBudgetExhausted) {
			metrics.ObservePolitenessSkip(listingURL, "budget")
			return finish(crawl.CrawlStatusSkipped, 0)
		}
		return finish(crawl.CrawlStatusError, 0)
	}

	maxCandidates := task.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = w.cfg.MaxCandidates
	}
	candidates, err := crawl.ExtractCandidates(listingURL, body, maxCandidates)
	if err != nil {
		problems = append(problems, fmt.Sprintf("extract candidates: %v", err))
		return finish(crawl.CrawlStatusError, 0)
	}
	logger.Info("candidates ranked",
		zap.String("listing_url", listingURL),
		zap.Int("count", len(candidates)))

	numFound := 0
	for _, cand := range candidates {
		created, err := w.processCandidate(ctx, task, budget, robots, listingURL, cand)
		if err != nil {
			// One broken detail page never fails the listing.
			problems = append(problems, fmt.Sprintf("%s: %v", cand.URL, err))
			continue
		}
		numFound++
		if created {
			result.Inserted++
			metrics.ObserveRecord("inserted")
		} else {
			result.Updated++
			metrics.ObserveRecord("updated")
		}
	}
	return finish(crawl.CrawlStatusOK, numFound)
}

func (w *Worker) fetchListing(ctx context.Context, budget *crawl.Budget, listingURL string, logger *zap.Logger) ([]byte, error) {
	req := crawl.FetchRequest{
		URL:       listingURL,
		UserAgent: w.cfg.UserAgent,
		SettleFor: w.cfg.ListingSettle,
	}
	if w.deps.Headless != nil {
		resp, err := w.deps.Headless.Fetch(ctx, req)
		if err == nil {
			metrics.ObservePageFetched(listingURL, "headless")
			return resp.Body, nil
		}
		logger.Warn("headless fetch failed, falling back",
			zap.String("listing_url", listingURL),
			zap.Error(err))
		// The failed headless attempt spent the caller's reservation; the
		// retry is a second request to the domain and draws its own.
		if err := budget.Acquire(ctx, listingURL); err != nil {
			return nil, fmt.Errorf("fallback fetch: %w", err)
		}
	}
	resp, err := w.deps.Fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.ObservePageFetched(listingURL, "colly")
	return resp.Body, nil
}

func (w *Worker) processCandidate(
	ctx context.Context,
	task crawl.CrawlTask,
	budget *crawl.Budget,
	robots crawl.RobotsPolicy,
	listingURL string,
	cand crawl.Candidate,
) (bool, error) {
	if !robots.Allowed(ctx, cand.URL) {
		metrics.ObservePolitenessSkip(cand.URL, "robots")
		return false, crawl.ErrRobotsDisallowed
	}
	if err := budget.Acquire(ctx, cand.URL); err != nil {
		if errors.Is(err, crawl.ErrBudgetExhausted) {
			metrics.ObservePolitenessSkip(cand.URL, "budget")
		}
		return false, err
	}

	resp, err := w.deps.Fetcher.Fetch(ctx, crawl.FetchRequest{
		URL:       cand.URL,
		UserAgent: w.cfg.UserAgent,
	})
	if err != nil {
		return false, fmt.Errorf("fetch: %w", err)
	}
	metrics.ObservePageFetched(cand.URL, "colly")

	rec, err := w.extractor.Extract(cand.URL, resp.Body)
	if err != nil {
		return false, fmt.Errorf("extract: %w", err)
	}

	rec.Score = crawl.ScoreKeywords(rec.Title, rec.Description, task.Keywords)
	if task.MinScore > 0 && rec.Score < task.MinScore {
		return false, fmt.Errorf("score %d below threshold %d", rec.Score, task.MinScore)
	}
	rec.SourceListing = listingURL
	rec.CrawledAt = w.deps.Clock.Now().UTC()

	if w.snapshotsEnabled(task) {
		ref, err := w.snapshot(ctx, resp.Body)
		if err != nil {
			// A lost snapshot is not worth losing the record over.
			w.logger.Warn("snapshot failed", zap.String("url", cand.URL), zap.Error(err))
		} else {
			rec.SnapshotRef = ref
		}
	}

	_, created, err := w.deps.Dedup.Upsert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	return created, nil
}

func (w *Worker) snapshotsEnabled(task crawl.CrawlTask) bool {
	return w.deps.Blobs != nil && (w.cfg.Snapshots || task.Options.Snapshots)
}

func (w *Worker) snapshot(ctx context.Context, body []byte) (string, error) {
	digest, err := w.deps.Hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	path := fmt.Sprintf("snapshots/%s.html", digest)
	uri, err := w.deps.Blobs.PutObject(ctx, path, "text/html", body)
	if err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return uri, nil
}
