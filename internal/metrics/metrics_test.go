package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	m.ObservePage("success", time.Second)
	m.RuleError("regex", "compile")
	m.Matches(3)
	m.LinksEnqueued(2)
	m.FrontierDelta(1)
	m.SessionRetry()
	m.ObserveHTTP("GET", "/api/health", "200", time.Millisecond)
}

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePage("success", time.Second)
	m.ObservePage("success", 2*time.Second)
	m.ObservePage("error", time.Second)
	m.RuleError("css", "compile")
	m.Matches(5)
	m.Matches(0)
	m.LinksEnqueued(3)
	m.FrontierDelta(3)
	m.FrontierDelta(-1)
	m.SessionRetry()

	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful pages, got %v", got)
	}
	if got := testutil.ToFloat64(m.PagesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed page, got %v", got)
	}
	if got := testutil.ToFloat64(m.RuleErrorsTotal.WithLabelValues("css", "compile")); got != 1 {
		t.Errorf("expected 1 rule error, got %v", got)
	}
	if got := testutil.ToFloat64(m.MatchesTotal); got != 5 {
		t.Errorf("expected 5 matches, got %v", got)
	}
	if got := testutil.ToFloat64(m.LinksEnqueuedTotal); got != 3 {
		t.Errorf("expected 3 links, got %v", got)
	}
	if got := testutil.ToFloat64(m.FrontierSize); got != 2 {
		t.Errorf("expected frontier size 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionRetriesTotal); got != 1 {
		t.Errorf("expected 1 retry, got %v", got)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
