// Package render defines the contract between the extraction engine and the
// component that loads and renders web pages.
//
// A Provider owns whatever heavyweight resource renders pages (a headless
// browser process, an HTTP client) and hands out isolated Sessions. A Session
// is used for exactly one page visit and must be closed by the caller.
package render

import (
	"context"
	"errors"
	"time"
)

// Defaults for sessions and navigation.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultTimeout        = 30 * time.Second
)

// Errors returned by providers and sessions.
// Check with errors.Is(err, render.ErrNavigation).
var (
	// ErrUnavailable means no session could be opened. It is fatal to a scrape.
	ErrUnavailable = errors.New("render provider unavailable")
	// ErrNavigation means the page could not be loaded within the timeout.
	ErrNavigation = errors.New("navigation failed")
	// ErrUnsupported means the provider cannot perform the requested operation.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrInvalidExpression means a selector, path or script could not be parsed.
	ErrInvalidExpression = errors.New("invalid expression")
)

// WaitPolicy says when navigation is considered complete.
type WaitPolicy string

const (
	// WaitNetworkIdle waits until the page has at most a couple of
	// connections in flight for a short quiet period.
	WaitNetworkIdle WaitPolicy = "networkidle"
	// WaitLoad waits for the load event only.
	WaitLoad WaitPolicy = "load"
)

// SessionOptions configures the identity a session presents.
type SessionOptions struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// DefaultSessionOptions returns a desktop Chrome identity at 1920x1080.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		UserAgent:      DefaultUserAgent,
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
	}
}

// WithDefaults fills zero fields from DefaultSessionOptions.
func (o SessionOptions) WithDefaults() SessionOptions {
	d := DefaultSessionOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = d.ViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = d.ViewportHeight
	}
	return o
}

// NavigateOptions controls a single navigation.
type NavigateOptions struct {
	Wait    WaitPolicy
	Timeout time.Duration
}

// Element is the projection of a DOM node returned by structural and tree
// queries. Empty strings mean the attribute is absent.
type Element struct {
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
	Src  string `json:"src,omitempty"`
}

// Value returns the element's text, falling back to href then src.
func (e Element) Value() string {
	switch {
	case e.Text != "":
		return e.Text
	case e.Href != "":
		return e.Href
	default:
		return e.Src
	}
}

// Querier evaluates expressions against a loaded page.
type Querier interface {
	// QueryStructural returns every element matching a CSS selector in
	// document order.
	QueryStructural(ctx context.Context, selector string) ([]Element, error)

	// QueryTreePath returns every node matching an XPath expression in
	// document order.
	QueryTreePath(ctx context.Context, expr string) ([]Element, error)

	// EvaluateScript evaluates a JavaScript expression in the page and
	// returns its JSON value. An undefined result is returned as nil.
	EvaluateScript(ctx context.Context, body string) (any, error)
}

// Session is one isolated page context.
type Session interface {
	Querier

	// Navigate loads url and waits according to opts. Failures wrap
	// ErrNavigation.
	Navigate(ctx context.Context, url string, opts NavigateOptions) error

	// WaitReady blocks until an element matching selector is present.
	WaitReady(ctx context.Context, selector string) error

	// DOMSnapshot returns the serialized DOM as it is now.
	DOMSnapshot(ctx context.Context) (string, error)

	// RawSource returns the document as delivered by the server.
	RawSource(ctx context.Context) (string, error)

	// FinalURL returns the URL after redirects.
	FinalURL(ctx context.Context) (string, error)

	// ExtractLinks returns the absolute href of every anchor on the page.
	ExtractLinks(ctx context.Context) ([]string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Provider creates sessions.
type Provider interface {
	// OpenSession creates a new isolated session. Failures wrap
	// ErrUnavailable.
	OpenSession(ctx context.Context, opts SessionOptions) (Session, error)

	// Close releases the provider's resources.
	Close() error

	// Name identifies the provider (e.g. "browser", "static").
	Name() string
}

// Page is the captured state of a visited page handed to rule execution.
type Page struct {
	URL       string
	FinalURL  string
	DOM       string
	RawSource string
	Live      Querier
}
