// Package scrape visits a single page and runs a rule set against it.
//
// A Scraper opens one render session per visit, loads the page, captures
// the rendered DOM and the raw source, runs every rule in order and closes
// the session. Page-level failures are reported in the PageResult. Only a
// provider that cannot open sessions at all produces a returned error.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/internal/metrics"
	"github.com/jmylchreest/rulecrawl/pkg/extract"
	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

// Defaults for page visits.
const (
	DefaultSettle         = 2 * time.Second
	DefaultAcquireRetries = 2
	DefaultAcquireBackoff = 500 * time.Millisecond
)

// Config holds configuration for the scraper.
type Config struct {
	// Timeout bounds navigation, including the wait for network idle.
	Timeout time.Duration

	// Settle is a fixed pause after navigation for deferred rendering.
	// Zero disables it.
	Settle time.Duration

	// WaitSelector, when set, is awaited after the settle pause. A page
	// where it never appears is still extracted.
	WaitSelector string

	// Session is the identity presented to sites.
	Session render.SessionOptions

	// AcquireRetries is how many times a failed session open is retried.
	AcquireRetries int
	AcquireBackoff time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        render.DefaultTimeout,
		Settle:         DefaultSettle,
		Session:        render.DefaultSessionOptions(),
		AcquireRetries: DefaultAcquireRetries,
		AcquireBackoff: DefaultAcquireBackoff,
	}
}

// Scraper visits pages through a render provider.
type Scraper struct {
	provider render.Provider
	executor *extract.Executor
	config   Config
}

// New creates a scraper. The provider is not owned by the scraper.
func New(provider render.Provider, cfg Config) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = render.DefaultTimeout
	}
	if cfg.AcquireRetries < 0 {
		cfg.AcquireRetries = 0
	}
	if cfg.AcquireBackoff <= 0 {
		cfg.AcquireBackoff = DefaultAcquireBackoff
	}
	cfg.Session = cfg.Session.WithDefaults()

	return &Scraper{
		provider: provider,
		executor: extract.NewExecutor(),
		config:   cfg,
	}
}

// Visit is the full outcome of one page visit.
type Visit struct {
	Result *PageResult

	// Links are the page's anchors, only collected when requested and the
	// page loaded.
	Links []string

	// LinkErr is set when link extraction failed. The result is still valid.
	LinkErr error
}

// Scrape visits url and runs rules against it.
func (s *Scraper) Scrape(ctx context.Context, url string, rules []rule.Rule) (*PageResult, error) {
	v, err := s.Visit(ctx, url, rules, false)
	if err != nil {
		return nil, err
	}
	return v.Result, nil
}

// Visit visits url, runs rules against it and, when withLinks is set,
// collects the page's links in the same session.
//
// The returned error is non-nil only when no session could be opened
// (wrapping render.ErrUnavailable) or ctx was cancelled mid-visit.
func (s *Scraper) Visit(ctx context.Context, url string, rules []rule.Rule, withLinks bool) (*Visit, error) {
	start := time.Now()

	session, err := s.openSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.DebugContext(ctx, "failed to close session", "url", url, "error", err)
		}
	}()

	result := &PageResult{
		URL:       url,
		VisitedAt: start.UTC(),
		Data:      NewRuleData(),
	}

	page, err := s.load(ctx, session, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.fail(err)
		logger.WarnContext(ctx, "page failed", "url", url, "error", err)
		s.config.Metrics.ObservePage(string(StatusError), time.Since(start))
		return &Visit{Result: result}, nil
	}

	for _, r := range rules {
		ms := s.executor.Execute(ctx, r, page)
		result.Data.Set(r.Name, ms)
		if ms.Err != nil {
			logger.DebugContext(ctx, "rule failed", "url", url, "rule", r.Name, "type", r.Variant, "error", ms.Err)
			s.config.Metrics.RuleError(string(r.Variant), errorKind(ms.Err))
			continue
		}
		s.config.Metrics.Matches(ms.Count)
	}
	result.Status = StatusSuccess
	result.FinalURL = page.FinalURL

	visit := &Visit{Result: result}
	if withLinks {
		links, err := session.ExtractLinks(ctx)
		if err != nil {
			visit.LinkErr = err
			logger.WarnContext(ctx, "link extraction failed", "url", url, "error", err)
		} else {
			visit.Links = links
		}
	}

	logger.DebugContext(ctx, "page scraped",
		"url", url,
		"rules", len(rules),
		"links", len(visit.Links),
		"duration", time.Since(start))
	s.config.Metrics.ObservePage(string(StatusSuccess), time.Since(start))
	return visit, nil
}

// openSession opens a session, retrying with exponential backoff.
func (s *Scraper) openSession(ctx context.Context) (render.Session, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.AcquireBackoff
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.config.AcquireRetries)), ctx)

	var session render.Session
	op := func() error {
		var err error
		session, err = s.provider.OpenSession(ctx, s.config.Session)
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "failed to open render session, retrying",
			"provider", s.provider.Name(), "error", err, "wait", wait)
		s.config.Metrics.SessionRetry()
	}

	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		if errors.Is(err, render.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", render.ErrUnavailable, err)
	}
	return session, nil
}

// load navigates and captures the page.
func (s *Scraper) load(ctx context.Context, session render.Session, url string) (*render.Page, error) {
	err := session.Navigate(ctx, url, render.NavigateOptions{
		Wait:    render.WaitNetworkIdle,
		Timeout: s.config.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if err := s.settle(ctx, session, url); err != nil {
		return nil, err
	}

	dom, err := session.DOMSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture DOM: %w", err)
	}
	raw, err := session.RawSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture source: %w", err)
	}
	finalURL, err := session.FinalURL(ctx)
	if err != nil || finalURL == "" {
		finalURL = url
	}

	return &render.Page{
		URL:       url,
		FinalURL:  finalURL,
		DOM:       dom,
		RawSource: raw,
		Live:      session,
	}, nil
}

// settle waits for deferred rendering.
func (s *Scraper) settle(ctx context.Context, session render.Session, url string) error {
	if s.config.Settle > 0 {
		timer := time.NewTimer(s.config.Settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.config.WaitSelector == "" {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := session.WaitReady(waitCtx, s.config.WaitSelector); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WarnContext(ctx, "wait selector not found, extracting anyway",
			"url", url, "selector", s.config.WaitSelector, "error", err)
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnknownVariant):
		return "unknown_type"
	case errors.Is(err, extract.ErrRuleCompile):
		return "compile"
	default:
		return "evaluation"
	}
}
