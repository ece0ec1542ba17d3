// Package browser implements a render provider backed by headless Chrome
// through chromedp.
//
// The Provider owns one browser process, started lazily on the first
// OpenSession and shared by every session until Close. Each session is a
// separate tab with its own viewport and user agent.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/pkg/render"
)

// Config holds configuration for the browser provider.
type Config struct {
	ExecPath  string        // Chrome binary; found automatically when empty
	Headless  bool          // Run without a visible window
	NoSandbox bool          // Disable the Chrome sandbox (needed in most containers)
	UserAgent string        // Browser-wide default user agent
	Timeout   time.Duration // Default navigation timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:  true,
		NoSandbox: true,
		UserAgent: render.DefaultUserAgent,
		Timeout:   render.DefaultTimeout,
	}
}

// Provider renders pages in headless Chrome.
type Provider struct {
	config Config

	mu            sync.Mutex
	closed        bool
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// New creates a browser provider. No process is started until the first
// session is opened.
func New(cfg Config) *Provider {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Provider{config: cfg}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "browser"
}

func (p *Provider) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(render.DefaultViewportWidth, render.DefaultViewportHeight),
		chromedp.UserAgent(p.config.UserAgent),
	)
	if p.config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox, chromedp.Flag("disable-setuid-sandbox", true))
	}

	execPath := p.config.ExecPath
	if execPath == "" {
		execPath = FindChromePath()
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

// browser returns the shared browser context, launching Chrome if needed.
// A failed launch is not cached so a later call can retry.
func (p *Provider) browser() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("browser provider closed")
	}
	if p.browserCtx != nil {
		return p.browserCtx, nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), p.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// The first Run launches the process and binds it to browserCtx, so it
	// must not carry a deadline.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	logger.Debug("browser started", "headless", p.config.Headless)
	p.allocCtx, p.cancelAlloc = allocCtx, cancelAlloc
	p.browserCtx, p.cancelBrowser = browserCtx, cancelBrowser
	return browserCtx, nil
}

// OpenSession opens a new tab configured with opts.
func (p *Provider) OpenSession(ctx context.Context, opts render.SessionOptions) (render.Session, error) {
	browserCtx, err := p.browser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrUnavailable, err)
	}
	opts = opts.WithDefaults()

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	s := &session{
		ctx:     tabCtx,
		cancel:  cancel,
		timeout: p.config.Timeout,
		tracker: newLoadTracker(),
	}
	chromedp.ListenTarget(tabCtx, s.tracker.handle)

	// The first Run creates the tab and ties its event loop to tabCtx.
	stop := context.AfterFunc(ctx, cancel)
	err = chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)),
		emulation.SetUserAgentOverride(opts.UserAgent),
	)
	stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to open tab: %v", render.ErrUnavailable, err)
	}

	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		s.tracker.setFrame(cdp.FrameID(c.Target.TargetID))
	}
	return s, nil
}

// Close shuts down the browser process.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.browserCtx == nil {
		return nil
	}
	err := chromedp.Cancel(p.browserCtx)
	p.cancelBrowser()
	p.cancelAlloc()
	p.browserCtx = nil
	logger.Debug("browser stopped")
	return err
}

type session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	tracker *loadTracker

	closeOnce sync.Once
}

// run executes actions in the tab, bounded by the caller's context.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *session) Navigate(ctx context.Context, url string, opts render.NavigateOptions) error {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = s.timeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	idle := s.tracker.arm()
	logger.Debug("browser navigate", "url", url, "wait", opts.Wait, "timeout", timeout)

	if err := s.run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %v", render.ErrNavigation, url, err)
	}

	if opts.Wait == render.WaitNetworkIdle {
		select {
		case <-idle:
		case <-navCtx.Done():
			return fmt.Errorf("%w: %s: waiting for network idle: %v", render.ErrNavigation, url, navCtx.Err())
		}
	}
	return nil
}

func (s *session) WaitReady(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: waiting for %q: %v", render.ErrNavigation, selector, err)
	}
	return nil
}

func (s *session) DOMSnapshot(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture DOM: %w", err)
	}
	return html, nil
}

func (s *session) RawSource(ctx context.Context) (string, error) {
	if reqID := s.tracker.documentRequest(); reqID != "" {
		var body []byte
		err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(reqID).Do(ctx)
			return err
		}))
		if err == nil {
			return string(body), nil
		}
		logger.Debug("response body unavailable, using document markup", "error", err)
	}

	var html string
	if err := s.run(ctx, chromedp.Evaluate(rawSourceFallbackJS, &html)); err != nil {
		return "", fmt.Errorf("failed to capture source: %w", err)
	}
	return html, nil
}

func (s *session) FinalURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (s *session) QueryStructural(ctx context.Context, selector string) ([]render.Element, error) {
	var els []render.Element
	if err := s.run(ctx, chromedp.Evaluate(structuralQueryJS(selector), &els)); err != nil {
		return nil, classifyException(err)
	}
	return els, nil
}

func (s *session) QueryTreePath(ctx context.Context, expr string) ([]render.Element, error) {
	var els []render.Element
	if err := s.run(ctx, chromedp.Evaluate(treePathQueryJS(expr), &els)); err != nil {
		return nil, classifyException(err)
	}
	return els, nil
}

func (s *session) EvaluateScript(ctx context.Context, body string) (any, error) {
	var out any
	err := s.run(ctx, chromedp.Evaluate(body, &out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, classifyException(err)
	}
	return out, nil
}

func (s *session) ExtractLinks(ctx context.Context) ([]string, error) {
	var links []string
	if err := s.run(ctx, chromedp.Evaluate(linksJS, &links)); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return err
}
