// Package metrics exposes Prometheus collectors for the worker service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	politenessSkipsTotal       *prometheus.CounterVec
	politenessWaitSeconds      *prometheus.HistogramVec
	recordsTotal               *prometheus.CounterVec
	extractionGapsTotal        *prometheus.CounterVec
	outreachTotal              *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_pages_fetched_total",
				Help: "Pages fetched, labeled by domain and fetcher (colly or headless).",
			},
			[]string{"domain", "fetcher"},
		)

		politenessSkipsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_politeness_skips_total",
				Help: "Fetches refused by politeness rules, labeled by domain and reason (budget or robots).",
			},
			[]string{"domain", "reason"},
		)

		politenessWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_politeness_wait_seconds",
				Help:    "Time spent waiting on the per-domain delay.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_records_total",
				Help: "Job records written, labeled by outcome (inserted or updated).",
			},
			[]string{"outcome"},
		)

		extractionGapsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_extraction_gaps_total",
				Help: "Detail pages where a field fell back to its default, labeled by field.",
			},
			[]string{"field"},
		)

		outreachTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_outreach_total",
				Help: "Outreach messages processed per tick, labeled by outcome (sent, deferred, failed).",
			},
			[]string{"outcome"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_active_workers",
				Help: "Workers currently processing a crawl task.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeDomain extracts a lowercase hostname for use as a label value. It
// returns "unknown" when the URL does not parse.
func SanitizeDomain(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns the http.Handler exposing the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePageFetched counts a completed fetch.
func ObservePageFetched(domain, fetcher string) {
	Init()
	pagesFetchedTotal.WithLabelValues(SanitizeDomain(domain), fetcher).Inc()
}

// ObservePolitenessSkip counts a fetch refused by budget or robots rules.
func ObservePolitenessSkip(domain, reason string) {
	Init()
	politenessSkipsTotal.WithLabelValues(SanitizeDomain(domain), reason).Inc()
}

// ObservePolitenessWait records time spent on the per-domain delay.
func ObservePolitenessWait(domain string, duration time.Duration) {
	Init()
	politenessWaitSeconds.WithLabelValues(SanitizeDomain(domain)).Observe(duration.Seconds())
}

// ObserveRecord counts a job record write by outcome.
func ObserveRecord(outcome string) {
	Init()
	recordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExtractionGap counts a field that fell back to its default value.
func ObserveExtractionGap(field string) {
	Init()
	extractionGapsTotal.WithLabelValues(field).Inc()
}

// ObserveOutreach counts one outreach message outcome.
func ObserveOutreach(outcome string) {
	Init()
	outreachTotal.WithLabelValues(outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
