package crawl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<a href="/jobs/1234">Senior Backend Engineer (Remote)</a>
<a href="https://example.com/careers/5678">Data Analyst</a>
<a href="/about">About</a>
<a href="/contact">Hi</a>
<a href="mailto:team@example.com">Mail us</a>
<a href="/jobs/1234">Senior Backend Engineer (Remote)</a>
<a href="https://tracker.example.net/a/b/c">Some very long anchor text here</a>
</body></html>`

func TestExtractCandidatesFiltersAndResolves(t *testing.T) {
	t.Parallel()

	cands, err := ExtractCandidates("https://example.com/jobs", []byte(listingPage), 10)
	require.NoError(t, err)

	urls := make([]string, 0, len(cands))
	for _, c := range cands {
		urls = append(urls, c.URL)
	}
	require.Contains(t, urls, "https://example.com/jobs/1234")
	require.Contains(t, urls, "https://example.com/careers/5678")
	require.Contains(t, urls, "https://tracker.example.net/a/b/c", "deep paths pass the heuristic")
	require.NotContains(t, urls, "https://example.com/about")
	require.NotContains(t, urls, "https://example.com/contact")
	require.NotContains(t, urls, "mailto:team@example.com")

	// The duplicate /jobs/1234 anchor collapses to one candidate.
	require.Len(t, urls, 3)
}

func TestExtractCandidatesRanksDeeperFirst(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a href="/jobs/a">tiny</a>
<a href="/jobs/team/lead/42">Engineering Team Lead opening</a>
</body></html>`
	cands, err := ExtractCandidates("https://example.com/", []byte(page), 10)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	require.Equal(t, "https://example.com/jobs/team/lead/42", cands[0].URL)
}

func TestExtractCandidatesHonorsMax(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, `<a href="/jobs/%d">Opening %d</a>`, i, i)
	}
	sb.WriteString("</body></html>")

	cands, err := ExtractCandidates("https://example.com/", []byte(sb.String()), 15)
	require.NoError(t, err)
	require.Len(t, cands, 15)
}

func TestExtractCandidatesBadListingURL(t *testing.T) {
	t.Parallel()

	_, err := ExtractCandidates("://nope", []byte(listingPage), 5)
	require.Error(t, err)
}
