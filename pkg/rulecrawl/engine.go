package rulecrawl

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/jmylchreest/rulecrawl/internal/crawler"
	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// Version returns the module version of the rulecrawl library.
// Returns "(devel)" when built from source without version info.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// Engine runs rule sets against a single page or a bounded crawl.
type Engine struct {
	provider render.Provider
	scraper  *scrape.Scraper
	crawler  *crawler.Crawler
	config   Config
}

// New creates an Engine that renders pages with provider. The engine owns
// the provider and closes it in Close.
func New(provider render.Provider, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("render provider is required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := scrape.New(provider, cfg.Scrape)
	c, err := crawler.New(s, cfg.Crawl)
	if err != nil {
		return nil, err
	}

	return &Engine{
		provider: provider,
		scraper:  s,
		crawler:  c,
		config:   cfg,
	}, nil
}

// Run applies rules to seedURL. Without crawlMode exactly one result is
// returned and maxPages is ignored. With crawlMode the pages linked from
// the seed are visited breadth first until maxPages results exist
// (maxPages <= 0 returns no results).
//
// Page failures are reported inside results. An error is returned only when
// the provider is unavailable or ctx ends, together with any results
// gathered before that.
func (e *Engine) Run(ctx context.Context, seedURL string, rules []rule.Rule, crawlMode bool, maxPages int) ([]*scrape.PageResult, error) {
	logger.InfoContext(ctx, "run starting",
		"url", seedURL,
		"rules", len(rules),
		"crawl", crawlMode,
		"max_pages", maxPages,
		"provider", e.provider.Name())

	if !crawlMode {
		v, err := e.scraper.Visit(ctx, seedURL, rules, false)
		if err != nil {
			return nil, err
		}
		return []*scrape.PageResult{v.Result}, nil
	}

	return e.crawler.Crawl(ctx, seedURL, rules, maxPages)
}

// Config returns the engine configuration after options were applied.
func (e *Engine) Config() Config {
	return e.config
}

// Close releases the render provider.
func (e *Engine) Close() error {
	return e.provider.Close()
}
