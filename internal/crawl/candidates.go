package crawl

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jobTokens mark a link as likely pointing at a job posting when present in
// either the URL or the anchor text.
var jobTokens = []string{
	"job", "position", "vacancy", "remote", "apply", "career", "freelance",
	"role", "opening", "opportunity", "hiring",
}

// DefaultMaxCandidates bounds how many detail links one listing may yield.
const DefaultMaxCandidates = 15

// ExtractCandidates harvests anchor elements from a listing page, resolves
// them against the listing URL, filters them through the job-likeness
// heuristic, and returns the top max candidates ranked by URL path depth and
// anchor text length. Duplicate targets keep their first occurrence.
func ExtractCandidates(listingURL string, html []byte, max int) ([]Candidate, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	if max <= 0 {
		max = DefaultMaxCandidates
	}

	seen := make(map[string]struct{})
	var candidates []Candidate
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		target := resolved.String()
		text := strings.TrimSpace(sel.Text())
		depth := pathDepth(resolved.Path)
		if !looksLikeJobLink(target, text, depth) {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		candidates = append(candidates, Candidate{
			URL:        target,
			AnchorText: text,
			Depth:      depth,
		})
	})

	// Deeper paths and longer anchors first; stable so equal links keep
	// document order.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Depth != candidates[j].Depth {
			return candidates[i].Depth > candidates[j].Depth
		}
		return len(candidates[i].AnchorText) > len(candidates[j].AnchorText)
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates, nil
}

func looksLikeJobLink(target, text string, depth int) bool {
	h := strings.ToLower(target)
	t := strings.ToLower(text)
	for _, tok := range jobTokens {
		if strings.Contains(h, tok) || strings.Contains(t, tok) {
			return true
		}
	}
	if depth >= 2 {
		return true
	}
	return len(strings.TrimSpace(text)) >= 12
}

func pathDepth(p string) int {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "/"))
}
