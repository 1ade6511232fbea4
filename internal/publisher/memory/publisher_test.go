package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRetainsEvents(t *testing.T) {
	t.Parallel()

	p := New()
	ctx := context.Background()

	id, err := p.Publish(ctx, "crawl.results", map[string]any{"listing_url": "https://jobs.example.com/"})
	require.NoError(t, err)
	require.Equal(t, "mem-1", id)

	id, err = p.Publish(ctx, "crawl.results", map[string]any{"listing_url": "https://other.example.com/"})
	require.NoError(t, err)
	require.Equal(t, "mem-2", id)

	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, "crawl.results", events[0].Topic)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(events[0].Payload, &decoded))
	require.Equal(t, "https://jobs.example.com/", decoded["listing_url"])
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "crawl.results", make(chan int))
	require.Error(t, err)
	require.Empty(t, p.Events())
}
