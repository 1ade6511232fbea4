package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeStripsTrackingNoise(t *testing.T) {
	t.Parallel()

	c := NewCanonicalizer(nil)
	a, err := c.Canonicalize("https://Example.com/jobs/123?utm_source=news&utm_campaign=x&gclid=abc&page=2")
	require.NoError(t, err)
	b, err := c.Canonicalize("https://example.com:443/jobs/123?page=2&fbclid=zzz")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, "https://example.com/jobs/123?page=2", a)
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	t.Parallel()

	c := NewCanonicalizer(nil)
	first, err := c.Canonicalize("HTTP://example.com:80/Job/42?b=2&a=1#apply")
	require.NoError(t, err)
	second, err := c.Canonicalize("HTTP://example.com:80/Job/42?b=2&a=1#apply")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, RecordID(first), RecordID(second))
	require.Equal(t, "http://example.com/Job/42?a=1&b=2", first, "query should sort, path case should survive")
}

func TestCanonicalizeCustomDenyList(t *testing.T) {
	t.Parallel()

	c := NewCanonicalizer([]string{"session"})
	got, err := c.Canonicalize("https://jobs.example.org/post?session=9f2&ref=kept")
	require.NoError(t, err)
	// With a custom list only its entries (plus utm_*) are stripped.
	require.Equal(t, "https://jobs.example.org/post?ref=kept", got)
}

func TestCanonicalizeRejectsRelativeURLs(t *testing.T) {
	t.Parallel()

	c := NewCanonicalizer(nil)
	_, err := c.Canonicalize("/jobs/123")
	require.Error(t, err)
}

func TestRecordIDStability(t *testing.T) {
	t.Parallel()

	id := RecordID("https://example.com/jobs/123")
	require.Len(t, id, 40)
	require.Equal(t, id, RecordID("https://example.com/jobs/123"))
	require.NotEqual(t, id, RecordID("https://example.com/jobs/124"))
}

func TestDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", Domain("https://Example.com:8443/jobs"))
	require.Equal(t, "", Domain("://bad"))
}
