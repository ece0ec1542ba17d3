// Package rendertest provides an in-memory render provider for tests.
//
// Pages are served from a map keyed by URL. CSS and XPath queries run
// against the page HTML with the static document engine, and scripts are
// answered by a per-page callback.
package rendertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/render/static"
)

// Page is a fake page served by the Provider.
type Page struct {
	HTML     string // rendered DOM
	Raw      string // server source; defaults to HTML
	FinalURL string // URL after redirects; defaults to the requested URL

	// Links overrides the anchors found in HTML when non-nil.
	Links []string

	// Script answers EvaluateScript. A nil Script evaluates to undefined.
	Script func(body string) (any, error)

	NavErr  error // returned (wrapped in ErrNavigation) by Navigate
	LinkErr error // returned by ExtractLinks
}

// Provider is a render.Provider backed by a fixed set of pages.
type Provider struct {
	Pages map[string]Page

	// OpenErr is returned by the first OpenFailures calls to OpenSession, or
	// by every call when OpenFailures is zero.
	OpenErr      error
	OpenFailures int

	// OnNavigate runs before every navigation. A non-nil error fails it.
	OnNavigate func(ctx context.Context, url string) error

	mu        sync.Mutex
	shut      bool
	attempts  int
	opened    int
	closed    int
	active    int
	maxActive int
	visits    []string
	options   []render.SessionOptions
}

// New returns a provider serving pages.
func New(pages map[string]Page) *Provider {
	return &Provider{Pages: pages}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "rendertest"
}

// OpenSession opens a session unless OpenErr says otherwise.
func (p *Provider) OpenSession(ctx context.Context, opts render.SessionOptions) (render.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if p.OpenErr != nil && (p.OpenFailures == 0 || p.attempts <= p.OpenFailures) {
		return nil, fmt.Errorf("%w: %v", render.ErrUnavailable, p.OpenErr)
	}
	if p.shut {
		return nil, fmt.Errorf("%w: provider closed", render.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrUnavailable, err)
	}

	opts = opts.WithDefaults()
	p.options = append(p.options, opts)
	p.opened++
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	return &session{provider: p}, nil
}

// Close marks the provider closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shut = true
	return nil
}

// Attempts returns how many times OpenSession was called.
func (p *Provider) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Opened returns how many sessions were opened.
func (p *Provider) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// Closed returns how many sessions were closed.
func (p *Provider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// MaxActive returns the largest number of sessions open at the same time.
func (p *Provider) MaxActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// Visits returns every URL passed to Navigate, in call order.
func (p *Provider) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

// SessionOptions returns the options of every opened session, in order.
func (p *Provider) SessionOptions() []render.SessionOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]render.SessionOptions(nil), p.options...)
}

var errNoPage = errors.New("no page loaded")

type session struct {
	provider *Provider

	url    string
	page   *Page
	doc    *static.Document
	closed bool
}

func (s *session) Navigate(ctx context.Context, url string, _ render.NavigateOptions) error {
	p := s.provider
	p.mu.Lock()
	p.visits = append(p.visits, url)
	page, ok := p.Pages[url]
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, url); err != nil {
			return fmt.Errorf("%w: %s: %v", render.ErrNavigation, url, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", render.ErrNavigation, url, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s: net::ERR_NAME_NOT_RESOLVED", render.ErrNavigation, url)
	}
	if page.NavErr != nil {
		return fmt.Errorf("%w: %s: %v", render.ErrNavigation, url, page.NavErr)
	}

	final := page.FinalURL
	if final == "" {
		final = url
	}
	doc, err := static.ParseDocument(final, page.HTML)
	if err != nil {
		return fmt.Errorf("%w: %v", render.ErrNavigation, err)
	}

	s.url = final
	s.page = &page
	s.doc = doc
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
	if s.page == nil {
		return "", errNoPage
	}
	return s.page.HTML, nil
}

func (s *session) RawSource(context.Context) (string, error) {
	if s.page == nil {
		return "", errNoPage
	}
	if s.page.Raw != "" {
		return s.page.Raw, nil
	}
	return s.page.HTML, nil
}

func (s *session) FinalURL(context.Context) (string, error) {
	if s.page == nil {
		return "", errNoPage
	}
	return s.url, nil
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

func (s *session) EvaluateScript(_ context.Context, body string) (any, error) {
	if s.page == nil {
		return nil, errNoPage
	}
	if s.page.Script == nil {
		return nil, nil
	}
	return s.page.Script(body)
}

func (s *session) ExtractLinks(context.Context) ([]string, error) {
	if s.page == nil {
		return nil, errNoPage
	}
	if s.page.LinkErr != nil {
		return nil, s.page.LinkErr
	}
	if s.page.Links != nil {
		return append([]string(nil), s.page.Links...), nil
	}
	return s.doc.Links(), nil
}

func (s *session) Close() error {
	p := s.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	p.closed++
	p.active--
	return nil
}
