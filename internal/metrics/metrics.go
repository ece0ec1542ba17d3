// Package metrics exposes Prometheus collectors for scraping, crawling and
// the HTTP API.
//
// A nil *Metrics is valid and records nothing, so library callers that do
// not care about metrics can leave it unset.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rulecrawl"

// Metrics holds every collector.
type Metrics struct {
	PagesTotal          *prometheus.CounterVec
	PageDuration        *prometheus.HistogramVec
	RuleErrorsTotal     *prometheus.CounterVec
	MatchesTotal        prometheus.Counter
	LinksEnqueuedTotal  prometheus.Counter
	FrontierSize        prometheus.Gauge
	SessionRetriesTotal prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Total number of pages visited.",
			},
			[]string{"status"}, // success, error
		),
		PageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_duration_seconds",
				Help:      "Time to render a page and run its rules.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		),
		RuleErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_errors_total",
				Help:      "Total number of rule failures.",
			},
			[]string{"type", "kind"},
		),
		MatchesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_total",
				Help:      "Total number of matches extracted.",
			},
		),
		LinksEnqueuedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_enqueued_total",
				Help:      "Total number of discovered links added to a crawl frontier.",
			},
		),
		FrontierSize: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "frontier_size",
				Help:      "Current number of URLs waiting in crawl frontiers.",
			},
		),
		SessionRetriesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_retries_total",
				Help:      "Total number of failed attempts to open a render session.",
			},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// ObservePage records one visited page.
func (m *Metrics) ObservePage(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(status).Inc()
	m.PageDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RuleError records one failed rule.
func (m *Metrics) RuleError(variant, kind string) {
	if m == nil {
		return
	}
	m.RuleErrorsTotal.WithLabelValues(variant, kind).Inc()
}

// Matches records extracted matches.
func (m *Metrics) Matches(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MatchesTotal.Add(float64(n))
}

// LinksEnqueued records links added to a frontier.
func (m *Metrics) LinksEnqueued(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksEnqueuedTotal.Add(float64(n))
}

// FrontierDelta adjusts the frontier gauge.
func (m *Metrics) FrontierDelta(n int) {
	if m == nil || n == 0 {
		return
	}
	m.FrontierSize.Add(float64(n))
}

// SessionRetry records a failed session open that will be retried.
func (m *Metrics) SessionRetry() {
	if m == nil {
		return
	}
	m.SessionRetriesTotal.Inc()
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
