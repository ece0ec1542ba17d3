// Package static implements a render provider that fetches pages over plain
// HTTP without executing JavaScript. The served HTML is both the raw source
// and the DOM. CSS queries run through goquery and XPath through htmlquery.
package static

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/pkg/render"
)

// Config holds configuration for the static provider.
type Config struct {
	Timeout     time.Duration
	MaxBodySize int // bytes, 0 keeps the collector default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: render.DefaultTimeout,
	}
}

// Provider fetches pages with Colly.
type Provider struct {
	config Config

	mu     sync.Mutex
	closed bool
}

// New creates a static provider.
func New(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Provider{config: cfg}
}

// OpenSession creates a new session. Static sessions hold no remote
// resources, so opening only fails after Close.
func (p *Provider) OpenSession(ctx context.Context, opts render.SessionOptions) (render.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%w: static provider closed", render.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrUnavailable, err)
	}
	return &session{config: p.config, opts: opts.WithDefaults()}, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "static"
}

var errNoPage = errors.New("no page loaded")

type session struct {
	config   Config
	opts     render.SessionOptions
	doc      *Document
	finalURL string
}

func (s *session) Navigate(ctx context.Context, targetURL string, opts render.NavigateOptions) error {
	logger.Debug("static navigate", "url", targetURL)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = s.config.Timeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.UserAgent(s.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(navCtx),
	)
	c.SetRequestTimeout(timeout)
	if s.config.MaxBodySize > 0 {
		c.MaxBodySize = s.config.MaxBodySize
	}
	// A browser renders error pages too; treat them as loaded documents.
	c.ParseHTTPErrorResponse = true

	var (
		body     []byte
		finalURL string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
		logger.Debug("static response received",
			"status", r.StatusCode,
			"content_type", r.Headers.Get("Content-Type"),
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(targetURL); err != nil {
		return fmt.Errorf("%w: %s: %v", render.ErrNavigation, targetURL, err)
	}
	if fetchErr != nil {
		return fmt.Errorf("%w: %s: %v", render.ErrNavigation, targetURL, fetchErr)
	}
	if finalURL == "" {
		finalURL = targetURL
	}

	doc, err := ParseDocument(finalURL, string(body))
	if err != nil {
		return fmt.Errorf("%w: %v", render.ErrNavigation, err)
	}
	s.doc = doc
	s.finalURL = finalURL
	return nil
}

func (s *session) WaitReady(_ context.Context, selector string) error {
	if s.doc == nil {
		return errNoPage
	}
	els, err := s.doc.QueryStructural(selector)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return fmt.Errorf("%w: no element matches %q", render.ErrNavigation, selector)
	}
	return nil
}

func (s *session) DOMSnapshot(context.Context) (string, error) {
	if s.doc == nil {
		return "", errNoPage
	}
	return s.doc.HTML(), nil
}

func (s *session) RawSource(context.Context) (string, error) {
	if s.doc == nil {
		return "", errNoPage
	}
	return s.doc.HTML(), nil
}

func (s *session) FinalURL(context.Context) (string, error) {
	if s.doc == nil {
		return "", errNoPage
	}
	return s.finalURL, nil
}

func (s *session) QueryStructural(_ context.Context, selector string) ([]render.Element, error) {
	if s.doc == nil {
		return nil, errNoPage
	}
	return s.doc.QueryStructural(selector)
}

func (s *session) QueryTreePath(_ context.Context, expr string) ([]render.Element, error) {
	if s.doc == nil {
		return nil, errNoPage
	}
	return s.doc.QueryTreePath(expr)
}

func (s *session) EvaluateScript(context.Context, string) (any, error) {
	return nil, fmt.Errorf("%w: static provider cannot run scripts", render.ErrUnsupported)
}

func (s *session) ExtractLinks(context.Context) ([]string, error) {
	if s.doc == nil {
		return nil, errNoPage
	}
	return s.doc.Links(), nil
}

func (s *session) Close() error {
	s.doc = nil
	return nil
}
