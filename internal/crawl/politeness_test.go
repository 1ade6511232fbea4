package crawl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBudgetEnforcesPageCap(t *testing.T) {
	t.Parallel()

	b := NewBudget(3, 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Acquire(ctx, "https://example.com/jobs"))
	}
	err := b.Acquire(ctx, "https://example.com/other")
	require.ErrorIs(t, err, ErrBudgetExhausted)
	// Other domains are unaffected.
	require.NoError(t, b.Acquire(ctx, "https://other.org/jobs"))
	require.Equal(t, 3, b.PagesFetched("example.com"))
}

func TestBudgetEnforcesSpacing(t *testing.T) {
	t.Parallel()

	delay := 50 * time.Millisecond
	b := NewBudget(10, delay)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, b.Acquire(ctx, "https://example.com/a"))
	require.NoError(t, b.Acquire(ctx, "https://example.com/b"))
	require.NoError(t, b.Acquire(ctx, "https://example.com/c"))
	require.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestBudgetSpacingIsPerDomain(t *testing.T) {
	t.Parallel()

	b := NewBudget(10, 200*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, b.Acquire(ctx, "https://a.example.com/x"))
	start := time.Now()
	require.NoError(t, b.Acquire(ctx, "https://b.example.com/x"))
	require.Less(t, time.Since(start), 100*time.Millisecond, "distinct domains should not wait on each other")
}

func TestBudgetCapIsRaceFree(t *testing.T) {
	t.Parallel()

	const limit = 5
	b := NewBudget(limit, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(ctx, "https://example.com/jobs"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else {
				require.ErrorIs(t, err, ErrBudgetExhausted)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, limit, granted)
}

func TestBudgetHonorsContext(t *testing.T) {
	t.Parallel()

	b := NewBudget(10, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Acquire(ctx, "https://example.com/a"))
	cancel()
	err := b.Acquire(ctx, "https://example.com/b")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBudgetExhausted)
	require.True(t, errors.Is(err, context.Canceled))
}
