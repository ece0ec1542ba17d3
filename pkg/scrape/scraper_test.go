package scrape

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jmylchreest/rulecrawl/pkg/extract"
	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/render/rendertest"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

const contactURL = "https://acme.example/contact"

const contactHTML = `<html><head><title>Contact Acme</title></head><body>
<h1>Acme Corp</h1>
<p>Email sales@acme.example or support@acme.example. Call (555) 123-4567.</p>
<a href="/about">About</a>
<a href="https://acme.example/careers">Careers</a>
</body></html>`

func contactRules() []rule.Rule {
	return []rule.Rule{
		{Name: "Email", Variant: rule.PatternMatch, Pattern: rule.EmailPattern},
		{Name: "Heading", Variant: rule.StructuralSelector, Selector: "h1"},
		{Name: "Broken", Variant: rule.PatternMatch, Pattern: "(["},
		{Name: "Title", Variant: rule.CustomExtractor, Script: "document.title"},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Settle = 0
	cfg.AcquireBackoff = time.Millisecond
	return cfg
}

func newContactProvider() *rendertest.Provider {
	return rendertest.New(map[string]rendertest.Page{
		contactURL: {
			HTML:   contactHTML,
			Script: func(string) (any, error) { return "Contact Acme", nil },
		},
	})
}

func TestScraper_Scrape_Success(t *testing.T) {
	p := newContactProvider()
	s := New(p, testConfig())

	result, err := s.Scrape(context.Background(), contactURL, contactRules())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	if result.Status != StatusSuccess || !result.Succeeded() {
		t.Fatalf("expected success, got %q (%s)", result.Status, result.FailureReason)
	}
	if result.URL != contactURL || result.FinalURL != contactURL {
		t.Errorf("unexpected URLs: %q %q", result.URL, result.FinalURL)
	}
	if result.VisitedAt.IsZero() {
		t.Error("expected visit timestamp")
	}

	wantNames := []string{"Email", "Heading", "Broken", "Title"}
	if got := result.Data.Names(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("rule order = %v, want %v", got, wantNames)
	}

	email, _ := result.Data.Get("Email")
	if !reflect.DeepEqual(email.Matches, []string{"sales@acme.example", "support@acme.example"}) {
		t.Errorf("unexpected email matches: %q", email.Matches)
	}
	heading, _ := result.Data.Get("Heading")
	if heading.Count != 1 || heading.Matches[0] != "Acme Corp" {
		t.Errorf("unexpected heading: %+v", heading)
	}
	broken, _ := result.Data.Get("Broken")
	if !errors.Is(broken.Err, extract.ErrRuleCompile) {
		t.Errorf("expected compile error, got %v", broken.Err)
	}
	title, _ := result.Data.Get("Title")
	if title.Count != 1 || title.Matches[0] != "Contact Acme" {
		t.Errorf("unexpected title: %+v", title)
	}

	if p.Opened() != 1 || p.Closed() != 1 {
		t.Errorf("expected one session opened and closed, got %d/%d", p.Opened(), p.Closed())
	}
}

func TestScraper_Scrape_SessionIdentity(t *testing.T) {
	p := newContactProvider()
	s := New(p, testConfig())

	if _, err := s.Scrape(context.Background(), contactURL, nil); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}

	opts := p.SessionOptions()
	if len(opts) != 1 {
		t.Fatalf("expected 1 session, got %d", len(opts))
	}
	if opts[0].ViewportWidth != 1920 || opts[0].ViewportHeight != 1080 {
		t.Errorf("expected 1920x1080 viewport, got %dx%d", opts[0].ViewportWidth, opts[0].ViewportHeight)
	}
	if opts[0].UserAgent != render.DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", opts[0].UserAgent)
	}
}

func TestScraper_Scrape_NavigationFailure(t *testing.T) {
	p := newContactProvider()
	s := New(p, testConfig())

	result, err := s.Scrape(context.Background(), "https://unreachable.invalid/", contactRules())
	if err != nil {
		t.Fatalf("navigation failure must not be returned as an error: %v", err)
	}

	if result.Status != StatusError {
		t.Fatalf("expected error status, got %q", result.Status)
	}
	if result.FailureReason == "" {
		t.Error("expected failure reason")
	}
	if !errors.Is(result.Err, render.ErrNavigation) {
		t.Errorf("expected ErrNavigation, got %v", result.Err)
	}
	if result.Data.Len() != 0 {
		t.Errorf("failed page must have no data, got %v", result.Data.Names())
	}
	if p.Closed() != 1 {
		t.Errorf("expected session to be closed, got %d", p.Closed())
	}
}

func TestScraper_Scrape_ProviderUnavailable(t *testing.T) {
	p := newContactProvider()
	p.OpenErr = errors.New("chrome not found")
	cfg := testConfig()
	cfg.AcquireRetries = 2
	s := New(p, cfg)

	_, err := s.Scrape(context.Background(), contactURL, contactRules())
	if !errors.Is(err, render.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if p.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", p.Attempts())
	}
}

func TestScraper_Scrape_RetriesSessionOpen(t *testing.T) {
	p := newContactProvider()
	p.OpenErr = errors.New("target crashed")
	p.OpenFailures = 1
	s := New(p, testConfig())

	result, err := s.Scrape(context.Background(), contactURL, contactRules())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("expected success after retry, got %q", result.Status)
	}
	if p.Attempts() != 2 {
		t.Errorf("expected 2 attempts, got %d", p.Attempts())
	}
}

func TestScraper_Visit_Links(t *testing.T) {
	p := newContactProvider()
	s := New(p, testConfig())

	v, err := s.Visit(context.Background(), contactURL, nil, true)
	if err != nil {
		t.Fatalf("Visit() error = %v", err)
	}

	want := []string{"https://acme.example/about", "https://acme.example/careers"}
	if !reflect.DeepEqual(v.Links, want) {
		t.Errorf("links = %v, want %v", v.Links, want)
	}
	if p.Opened() != 1 {
		t.Errorf("links must come from the same session, got %d sessions", p.Opened())
	}
}

func TestScraper_Visit_NoLinksUnlessRequested(t *testing.T) {
	p := newContactProvider()
	s := New(p, testConfig())

	v, err := s.Visit(context.Background(), contactURL, nil, false)
	if err != nil {
		t.Fatalf("Visit() error = %v", err)
	}
	if v.Links != nil {
		t.Errorf("expected no links, got %v", v.Links)
	}
}

func TestScraper_Visit_LinkErrorIsNonFatal(t *testing.T) {
	p := rendertest.New(map[string]rendertest.Page{
		contactURL: {HTML: contactHTML, LinkErr: errors.New("execution context was destroyed")},
	})
	s := New(p, testConfig())

	v, err := s.Visit(context.Background(), contactURL, contactRules()[:1], true)
	if err != nil {
		t.Fatalf("Visit() error = %v", err)
	}
	if v.LinkErr == nil {
		t.Error("expected link error")
	}
	if v.Result.Status != StatusSuccess {
		t.Errorf("link failure must not fail the page, got %q", v.Result.Status)
	}
}

func TestScraper_Visit_CancelledMidVisit(t *testing.T) {
	p := newContactProvider()
	cfg := testConfig()
	cfg.Settle = time.Minute
	s := New(p, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	p.OnNavigate = func(context.Context, string) error {
		cancel()
		return nil
	}

	_, err := s.Visit(ctx, contactURL, contactRules(), false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.Closed() != 1 {
		t.Errorf("expected session to be closed, got %d", p.Closed())
	}
}

func TestScraper_Visit_WaitSelectorMissing(t *testing.T) {
	p := newContactProvider()
	cfg := testConfig()
	cfg.WaitSelector = "#never"
	s := New(p, cfg)

	result, err := s.Scrape(context.Background(), contactURL, contactRules()[:2])
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("missing wait selector must not fail the page, got %q", result.Status)
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(newContactProvider(), Config{AcquireRetries: -1})

	if s.config.Timeout != render.DefaultTimeout {
		t.Errorf("expected default timeout, got %v", s.config.Timeout)
	}
	if s.config.AcquireRetries != 0 {
		t.Errorf("expected retries clamped to 0, got %d", s.config.AcquireRetries)
	}
	if s.config.Session.ViewportWidth != render.DefaultViewportWidth {
		t.Errorf("expected default viewport, got %d", s.config.Session.ViewportWidth)
	}
}
