package crawl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsift/crawlworker/internal/metrics"
)

// descriptionLimit clips stored descriptions; detail pages routinely embed
// whole site footers below the posting body.
const descriptionLimit = 4000

// page bundles the parsed detail document with its structured-markup payload
// so strategies stay pure functions of one input.
type page struct {
	doc *goquery.Document
	ld  *ldJobPosting
}

// strategy extracts one field value from a page, returning "" on miss.
type strategy func(*page) string

// Extractor turns a detail page into a JobRecord using an ordered list of
// strategies per field: structured markup first, then labeled selectors, then
// positional fallbacks. The first non-empty value wins.
type Extractor struct {
	title       []strategy
	company     []strategy
	location    []strategy
	posted      []strategy
	budget      []strategy
	description []strategy
}

// NewExtractor builds an Extractor with the default strategy lists.
func NewExtractor() *Extractor {
	return &Extractor{
		title: []strategy{
			ldField(func(ld *ldJobPosting) string { return ld.Title }),
			selectorText("h1"),
			selectorText("h2.job-title"),
			selectorText(".job-title"),
			metaContent(`meta[property="og:title"]`),
		},
		company: []strategy{
			ldField(func(ld *ldJobPosting) string { return ld.HiringOrganization.Name }),
			selectorText(".company"),
			selectorText(".employer"),
			selectorText("[data-company]"),
			metaContent(`meta[property="og:site_name"]`),
		},
		location: []strategy{
			ldField(func(ld *ldJobPosting) string { return ld.JobLocation.Address.Locality }),
			selectorText(".location"),
			selectorText(".job-location"),
			remoteMention,
		},
		posted: []strategy{
			ldField(func(ld *ldJobPosting) string { return ld.DatePosted }),
			attrValue("time[datetime]", "datetime"),
			selectorText("time"),
			selectorText(".posted"),
		},
		budget: []strategy{
			selectorText(".budget"),
			selectorText(".rate"),
			selectorText(".salary"),
		},
		description: []strategy{
			selectorText(".description"),
			selectorText("article"),
			selectorText("main"),
			selectorText("body"),
		},
	}
}

// Extract parses a detail page into a partial JobRecord. A page with no
// usable title yields ErrNoTitle; the record is discarded upstream but the
// attempt still counts toward the listing's totals.
func (e *Extractor) Extract(detailURL string, html []byte) (JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return JobRecord{}, fmt.Errorf("parse detail html: %w", err)
	}
	pg := &page{doc: doc, ld: parseJobPostingLD(doc)}

	title := firstHit(pg, e.title)
	if title == "" {
		return JobRecord{}, ErrNoTitle
	}

	domain := Domain(detailURL)
	rec := JobRecord{
		URL:         detailURL,
		Title:       title,
		Company:     firstHit(pg, e.company),
		Location:    firstHit(pg, e.location),
		PostedAt:    clip(firstHit(pg, e.posted), 32),
		Budget:      firstHit(pg, e.budget),
		Description: clip(firstHit(pg, e.description), descriptionLimit),
		Platform:    domain,
	}
	if rec.Company == "" {
		rec.Company = domain
		metrics.ObserveExtractionGap("company")
	}
	if rec.Location == "" {
		rec.Location = "Remote"
		metrics.ObserveExtractionGap("location")
	}
	return rec, nil
}

func firstHit(pg *page, strategies []strategy) string {
	for _, s := range strategies {
		if v := s(pg); v != "" {
			return v
		}
	}
	return ""
}

func selectorText(selector string) strategy {
	return func(pg *page) string {
		return normalizeSpace(pg.doc.Find(selector).First().Text())
	}
}

func metaContent(selector string) strategy {
	return func(pg *page) string {
		v, _ := pg.doc.Find(selector).First().Attr("content")
		return strings.TrimSpace(v)
	}
}

func attrValue(selector, attr string) strategy {
	return func(pg *page) string {
		v, _ := pg.doc.Find(selector).First().Attr(attr)
		return strings.TrimSpace(v)
	}
}

// remoteMention is the positional fallback for location: the first short text
// node mentioning remote work.
func remoteMention(pg *page) string {
	found := ""
	pg.doc.Find("span, div, li, p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := normalizeSpace(sel.Text())
		if len(text) > 0 && len(text) <= 80 && strings.Contains(strings.ToLower(text), "remote") {
			found = text
			return false
		}
		return true
	})
	return found
}

func ldField(pick func(*ldJobPosting) string) strategy {
	return func(pg *page) string {
		if pg.ld == nil {
			return ""
		}
		return strings.TrimSpace(pick(pg.ld))
	}
}

// ldJobPosting is the subset of schema.org JobPosting we read from JSON-LD
// script blocks.
type ldJobPosting struct {
	Type               string `json:"@type"`
	Title              string `json:"title"`
	DatePosted         string `json:"datePosted"`
	HiringOrganization struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
	JobLocation struct {
		Address struct {
			Locality string `json:"addressLocality"`
		} `json:"address"`
	} `json:"jobLocation"`
}

func parseJobPostingLD(doc *goquery.Document) *ldJobPosting {
	var posting *ldJobPosting
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var ld ldJobPosting
		if err := json.Unmarshal([]byte(sel.Text()), &ld); err != nil {
			return true
		}
		if !strings.EqualFold(ld.Type, "JobPosting") {
			return true
		}
		posting = &ld
		return false
	})
	return posting
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
