package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jobsift/crawlworker/internal/metrics"
)

// Budget enforces per-domain politeness for one crawl run: a hard cap on
// pages fetched per domain and a minimum spacing between fetches to the same
// domain. Listing and detail fetches draw from the same budget.
type Budget struct {
	mu       sync.Mutex
	maxPages int
	delay    time.Duration
	pages    map[string]int
	limiters map[string]*rate.Limiter
}

// NewBudget constructs a Budget. maxPages <= 0 disables the page cap and
// delay <= 0 disables spacing.
func NewBudget(maxPages int, delay time.Duration) *Budget {
	return &Budget{
		maxPages: maxPages,
		delay:    delay,
		pages:    make(map[string]int),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Acquire reserves one fetch against the domain of rawURL, blocking until the
// per-domain delay has elapsed since the previous reservation. The cap check
// and the increment happen under one lock; two concurrent callers can never
// both pass a nearly-exhausted cap.
func (b *Budget) Acquire(ctx context.Context, rawURL string) error {
	domain := Domain(rawURL)
	if domain == "" {
		return fmt.Errorf("acquire budget: no domain in %q", rawURL)
	}

	b.mu.Lock()
	if b.maxPages > 0 && b.pages[domain] >= b.maxPages {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBudgetExhausted, domain)
	}
	b.pages[domain]++
	limiter := b.limiters[domain]
	if limiter == nil {
		every := rate.Inf
		if b.delay > 0 {
			every = rate.Every(b.delay)
		}
		limiter = rate.NewLimiter(every, 1)
		b.limiters[domain] = limiter
	}
	b.mu.Unlock()

	waitStart := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	metrics.ObservePolitenessWait(domain, time.Since(waitStart))
	return nil
}

// PagesFetched reports how many reservations the domain has consumed.
func (b *Budget) PagesFetched(domain string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[domain]
}
