// Package outreach sends queued outreach messages under daily caps.
package outreach

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jobsift/crawlworker/internal/crawl"
	"github.com/jobsift/crawlworker/internal/metrics"
)

// Counter names used for cap enforcement.
const (
	GlobalCounter       = "outreach:global"
	DomainCounterPrefix = "outreach:domain:"
)

// Config holds the scheduler caps.
type Config struct {
	DailyCap     int
	PerDomainCap int
	BatchLimit   int
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Due      int `json:"due"`
	Sent     int `json:"sent"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}

// Scheduler drains due outreach messages. Ticks are serialized with a mutex
// so overlapping HTTP triggers cannot double-send.
type Scheduler struct {
	mu        sync.Mutex
	store     crawl.OutreachStore
	counters  crawl.CounterStore
	transport Transport
	clock     crawl.Clock
	cfg       Config
	logger    *zap.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	store crawl.OutreachStore,
	counters crawl.CounterStore,
	transport Transport,
	clock crawl.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.DailyCap <= 0 {
		cfg.DailyCap = 20
	}
	if cfg.PerDomainCap <= 0 {
		cfg.PerDomainCap = 5
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 20
	}
	return &Scheduler{
		store:     store,
		counters:  counters,
		transport: transport,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Tick processes due messages once. Messages over a cap stay queued for a
// later day; transport failures are terminal. Cap slots are consumed only by
// actual sends: a deferral or a delivery failure releases what it claimed.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	day := now.Format("2006-01-02")

	due, err := s.store.DueMessages(ctx, now, s.cfg.BatchLimit)
	if err != nil {
		return TickResult{}, fmt.Errorf("select due outreach: %w", err)
	}

	result := TickResult{Due: len(due)}
	for _, msg := range due {
		domain := RecipientDomain(msg.Recipient)

		ok, err := s.counters.CheckAndIncr(ctx, GlobalCounter, day, s.cfg.DailyCap)
		if err != nil {
			return result, fmt.Errorf("check global cap: %w", err)
		}
		if !ok {
			// Daily cap is spent; nothing else can send today.
			remaining := len(due) - result.Sent - result.Failed - result.Deferred
			result.Deferred += remaining
			for i := 0; i < remaining; i++ {
				metrics.ObserveOutreach("deferred")
			}
			s.logger.Info("outreach daily cap reached, deferring remainder",
				zap.String("day", day),
				zap.Int("deferred", result.Deferred),
				zap.Error(crawl.ErrCapExceeded))
			return result, nil
		}

		ok, err = s.counters.CheckAndIncr(ctx, DomainCounterPrefix+domain, day, s.cfg.PerDomainCap)
		if err != nil {
			return result, fmt.Errorf("check domain cap: %w", err)
		}
		if !ok {
			if err := s.release(ctx, day, GlobalCounter); err != nil {
				return result, err
			}
			result.Deferred++
			metrics.ObserveOutreach("deferred")
			s.logger.Info("outreach domain cap reached, deferring message",
				zap.String("message_id", msg.ID),
				zap.String("domain", domain),
				zap.Error(crawl.ErrCapExceeded))
			continue
		}

		meta, sendErr := s.transport.Send(ctx, msg)
		if sendErr != nil {
			if err := s.release(ctx, day, GlobalCounter, DomainCounterPrefix+domain); err != nil {
				return result, err
			}
			result.Failed++
			metrics.ObserveOutreach("failed")
			s.logger.Warn("outreach delivery failed",
				zap.String("message_id", msg.ID),
				zap.String("recipient", msg.Recipient),
				zap.Error(sendErr))
			failMeta := map[string]string{"error": sendErr.Error()}
			if err := s.store.MarkFailed(ctx, msg.ID, failMeta); err != nil {
				return result, fmt.Errorf("mark outreach failed: %w", err)
			}
			continue
		}

		if err := s.store.MarkSent(ctx, msg.ID, now, meta); err != nil {
			return result, fmt.Errorf("mark outreach sent: %w", err)
		}
		result.Sent++
		metrics.ObserveOutreach("sent")
		s.logger.Info("outreach message sent",
			zap.String("message_id", msg.ID),
			zap.String("domain", domain))
	}
	return result, nil
}

// release gives claimed cap slots back when a message does not go out.
func (s *Scheduler) release(ctx context.Context, day string, names ...string) error {
	for _, name := range names {
		if err := s.counters.Decr(ctx, name, day); err != nil {
			return fmt.Errorf("release cap slot %s: %w", name, err)
		}
	}
	return nil
}

// HandleCallback records delivery feedback from the provider. A positive
// response moves a sent message to responded; everything else only adds
// metadata.
func (s *Scheduler) HandleCallback(ctx context.Context, messageID string, responded bool, metadata map[string]string) error {
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}
	if err := s.store.AppendCallback(ctx, messageID, responded, metadata); err != nil {
		return fmt.Errorf("record outreach callback: %w", err)
	}
	return nil
}

// RecipientDomain extracts the cap-counting domain from a recipient: the part
// after '@' for email-shaped recipients, else the URL host, else the
// recipient itself.
func RecipientDomain(recipient string) string {
	recipient = strings.TrimSpace(strings.ToLower(recipient))
	if recipient == "" {
		return "unknown"
	}
	if at := strings.LastIndex(recipient, "@"); at >= 0 && at < len(recipient)-1 {
		return recipient[at+1:]
	}
	if u, err := url.Parse(recipient); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return recipient
}
