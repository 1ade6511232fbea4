// Package main wires together the crawl and outreach worker service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jobsift/crawlworker/internal/api"
	"github.com/jobsift/crawlworker/internal/clock/system"
	"github.com/jobsift/crawlworker/internal/config"
	countermemory "github.com/jobsift/crawlworker/internal/counter/memory"
	counterpostgres "github.com/jobsift/crawlworker/internal/counter/postgres"
	"github.com/jobsift/crawlworker/internal/crawl"
	"github.com/jobsift/crawlworker/internal/dispatcher"
	collyfetcher "github.com/jobsift/crawlworker/internal/fetcher/colly"
	headlessfetcher "github.com/jobsift/crawlworker/internal/fetcher/headless"
	"github.com/jobsift/crawlworker/internal/hash/sha256"
	"github.com/jobsift/crawlworker/internal/id/uuid"
	"github.com/jobsift/crawlworker/internal/logging"
	"github.com/jobsift/crawlworker/internal/metrics"
	"github.com/jobsift/crawlworker/internal/outreach"
	memorypublisher "github.com/jobsift/crawlworker/internal/publisher/memory"
	pubsubpublisher "github.com/jobsift/crawlworker/internal/publisher/pubsub"
	queuememory "github.com/jobsift/crawlworker/internal/queue/memory"
	"github.com/jobsift/crawlworker/internal/signature"
	"github.com/jobsift/crawlworker/internal/storage/gcs"
	"github.com/jobsift/crawlworker/internal/storage/local"
	memorystorage "github.com/jobsift/crawlworker/internal/storage/memory"
	postgresstorage "github.com/jobsift/crawlworker/internal/storage/postgres"
	"github.com/jobsift/crawlworker/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()
	hasher := sha256.New()
	verifier := signature.NewVerifier(cfg.Auth.WebhookSecret)
	queue := queuememory.NewQueue(cfg.Crawler.QueueDepth)

	memStore := memorystorage.NewStore()
	var (
		jobStore      crawl.JobStore      = memStore
		crawlLogStore crawl.CrawlLogStore = memStore
		outreachStore crawl.OutreachStore = memStore
		counterStore  crawl.CounterStore  = countermemory.New()
	)
	if cfg.DB.Provider == "postgres" {
		pgStore, err := postgresstorage.New(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("postgres store init failed", zap.Error(err))
		}
		defer pgStore.Close()
		jobStore = pgStore
		crawlLogStore = pgStore
		outreachStore = pgStore

		pgCounter, err := counterpostgres.New(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("postgres counter init failed", zap.Error(err))
		}
		defer pgCounter.Close()
		counterStore = pgCounter
	}

	var blobStore crawl.BlobStore
	switch cfg.Storage.Provider {
	case "gcs":
		gcsStore, err := gcs.New(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := gcsStore.Close(); closeErr != nil {
				logger.Warn("gcs blob store close failed", zap.Error(closeErr))
			}
		}()
		blobStore = gcsStore
	case "local":
		localStore, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			logger.Fatal("local blob store init failed", zap.Error(err))
		}
		blobStore = localStore
	default:
		blobStore = memorystorage.NewBlobStore()
	}

	var publisher crawl.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		psPublisher, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := psPublisher.Close(); closeErr != nil {
				logger.Warn("pubsub publisher close failed", zap.Error(closeErr))
			}
		}()
		publisher = psPublisher
	} else {
		publisher = memorypublisher.New()
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	var headless crawl.Fetcher
	if cfg.Headless.Enabled {
		headlessFetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			defer headlessFetcher.Close()
			headless = headlessFetcher
		}
	}

	dedup := crawl.NewDeduplicator(jobStore, crawl.NewCanonicalizer(cfg.Crawler.TrackingParams))
	workerCfg := worker.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		MaxPagesPerDomain: cfg.Crawler.MaxPagesPerDomain,
		PerDomainDelay:    cfg.PerDomainDelay(),
		MaxCandidates:     cfg.Crawler.MaxCandidates,
		RespectRobots:     cfg.Crawler.RespectRobots,
		ListingSettle:     cfg.ListingSettle(),
		Snapshots:         cfg.Storage.Snapshots,
		ResultTopic:       cfg.PubSub.TopicName,
	}

	var workers []*worker.Worker
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(
			worker.Deps{
				Queue:    queue,
				Fetcher:  fetcher,
				Headless: headless,
				Dedup:    dedup,
				Logs:     crawlLogStore,
				Blobs:    blobStore,
				Pub:      publisher,
				Hasher:   hasher,
				Clock:    clock,
			},
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	var transport outreach.Transport
	if cfg.Outreach.Transport == "http" {
		httpTransport, err := outreach.NewHTTPTransport(outreach.HTTPTransportConfig{
			ProviderURL: cfg.Outreach.ProviderURL,
			APIKey:      cfg.Outreach.APIKey,
			From:        cfg.Outreach.From,
			Timeout:     cfg.FetchTimeout(),
		})
		if err != nil {
			logger.Fatal("outreach transport init failed", zap.Error(err))
		}
		transport = httpTransport
	} else {
		transport = outreach.NewMemoryTransport()
	}
	scheduler := outreach.NewScheduler(
		outreachStore,
		counterStore,
		transport,
		clock,
		outreach.Config{
			DailyCap:     cfg.Outreach.DailyCap,
			PerDomainCap: cfg.Outreach.PerDomainCap,
			BatchLimit:   cfg.Outreach.BatchLimit,
		},
		logger.Named("outreach"),
	)

	var forwarder *api.Forwarder
	if cfg.Crawler.ForwardURL != "" {
		forwarder = api.NewForwarder(cfg.Crawler.ForwardURL, verifier)
		logger.Info("legacy forwarding enabled", zap.String("url", cfg.Crawler.ForwardURL))
	}

	apiServer := api.NewServer(verifier, queue, scheduler, forwarder, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}
