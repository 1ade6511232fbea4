package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckAndIncrStopsAtLimit(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.CheckAndIncr(ctx, "outreach:global", "2026-08-30", 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := c.CheckAndIncr(ctx, "outreach:global", "2026-08-30", 3)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3, c.Value("outreach:global", "2026-08-30"))
}

func TestDecrReleasesSlot(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.CheckAndIncr(ctx, "outreach:global", "2026-08-30", 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, c.Decr(ctx, "outreach:global", "2026-08-30"))
	require.Equal(t, 2, c.Value("outreach:global", "2026-08-30"))

	// The released slot can be granted again.
	ok, err := c.CheckAndIncr(ctx, "outreach:global", "2026-08-30", 3)
	require.NoError(t, err)
	require.True(t, ok)

	// Decrementing an untouched counter stays at zero.
	require.NoError(t, c.Decr(ctx, "outreach:domain:example.com", "2026-08-30"))
	require.Zero(t, c.Value("outreach:domain:example.com", "2026-08-30"))
}

func TestCountersAreIndependentPerDayAndName(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	ok, err := c.CheckAndIncr(ctx, "outreach:global", "2026-08-30", 1)
	require.NoError(t, err)
	require.True(t, ok)

	// Same name, next day: fresh budget.
	ok, err = c.CheckAndIncr(ctx, "outreach:global", "2026-08-31", 1)
	require.NoError(t, err)
	require.True(t, ok)

	// Different name, same day: fresh budget.
	ok, err = c.CheckAndIncr(ctx, "outreach:domain:example.com", "2026-08-30", 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCheckAndIncrIsAtomicUnderConcurrency(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	const attempts = 50
	const limit = 10

	var wg sync.WaitGroup
	granted := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.CheckAndIncr(ctx, "outreach:global", "2026-08-30", limit)
			require.NoError(t, err)
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	var sent int
	for ok := range granted {
		if ok {
			sent++
		}
	}
	require.Equal(t, limit, sent)
	require.Equal(t, limit, c.Value("outreach:global", "2026-08-30"))
}
