package crawler

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/internal/metrics"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// ErrLinkExtraction wraps failures to read a page's links. It is logged and
// never ends a crawl.
var ErrLinkExtraction = errors.New("link extraction failed")

// Crawl limits.
const (
	DefaultMaxPages        = 50
	DefaultMaxLinksPerPage = 10
)

// Config holds crawler configuration.
type Config struct {
	// Link following
	MaxLinksPerPage int    // Links taken from each page (0 = default)
	SameHostOnly    bool   // Only follow links on the same host
	FollowPattern   string // Regex pattern for URLs to follow

	// Concurrency is the number of pages visited at once.
	Concurrency int

	Metrics *metrics.Metrics
}

// DefaultConfig returns sensible crawler defaults.
func DefaultConfig() Config {
	return Config{
		MaxLinksPerPage: DefaultMaxLinksPerPage,
		Concurrency:     1,
	}
}

// Visitor visits a single page. *scrape.Scraper implements it.
type Visitor interface {
	Visit(ctx context.Context, url string, rules []rule.Rule, withLinks bool) (*scrape.Visit, error)
}

// Crawler runs a bounded breadth-first crawl.
type Crawler struct {
	visitor Visitor
	filter  *LinkFilter
	config  Config
}

// New creates a new Crawler.
func New(visitor Visitor, cfg Config) (*Crawler, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxLinksPerPage <= 0 {
		cfg.MaxLinksPerPage = DefaultMaxLinksPerPage
	}

	filter, err := NewLinkFilter(cfg.SameHostOnly, cfg.FollowPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid follow pattern: %w", err)
	}

	return &Crawler{
		visitor: visitor,
		filter:  filter,
		config:  cfg,
	}, nil
}

// Crawl visits seed and then the pages it links to, breadth first, until
// maxPages pages have been visited or no links remain. maxPages <= 0 visits
// nothing.
//
// Results are in visit order, seed first. If ctx is cancelled the results
// gathered so far are returned with ctx's error. A provider that cannot
// open sessions ends the crawl with a render.ErrUnavailable error.
func (c *Crawler) Crawl(ctx context.Context, seed string, rules []rule.Rule, maxPages int) ([]*scrape.PageResult, error) {
	if maxPages <= 0 {
		logger.DebugContext(ctx, "crawler skipped, no page budget", "seed", seed, "max_pages", maxPages)
		return []*scrape.PageResult{}, nil
	}

	logger.DebugContext(ctx, "crawler starting",
		"seed", seed,
		"max_pages", maxPages,
		"max_links_per_page", c.config.MaxLinksPerPage,
		"concurrency", c.config.Concurrency,
		"same_host_only", c.config.SameHostOnly,
		"follow_pattern", c.config.FollowPattern)

	frontier := NewFrontier()
	if frontier.Push(seed) {
		c.config.Metrics.FrontierDelta(1)
	}
	defer func() { c.config.Metrics.FrontierDelta(-frontier.Len()) }()

	results := make([]*scrape.PageResult, 0, min(maxPages, 64))

	for frontier.Len() > 0 && len(results) < maxPages {
		if err := ctx.Err(); err != nil {
			logger.InfoContext(ctx, "crawl cancelled", "pages", len(results), "error", err)
			return results, err
		}

		wave := c.nextWave(frontier, min(c.config.Concurrency, maxPages-len(results)))
		if len(wave) == 0 {
			break
		}

		// Links are only worth reading while the frontier has room.
		withLinks := maxPages-frontier.Visited()-frontier.Len() > 0

		visits, err := c.visitWave(ctx, wave, rules, withLinks)
		for i, v := range visits {
			if v == nil {
				continue
			}
			results = append(results, v.Result)
			logger.InfoContext(ctx, "visited", "url", wave[i], "status", v.Result.Status, "pages", len(results))
			c.follow(frontier, wave[i], v, maxPages)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				logger.InfoContext(ctx, "crawl cancelled", "pages", len(results), "error", ctxErr)
				return results, ctxErr
			}
			return results, err
		}
	}

	logger.DebugContext(ctx, "crawler finished", "pages", len(results), "pending", frontier.Len())
	return results, nil
}

// nextWave pops up to n URLs that have not been visited and marks them
// visited.
func (c *Crawler) nextWave(frontier *Frontier, n int) []string {
	var wave []string
	for len(wave) < n {
		url, ok := frontier.Pop()
		if !ok {
			break
		}
		c.config.Metrics.FrontierDelta(-1)
		if !frontier.MarkVisited(url) {
			continue
		}
		wave = append(wave, url)
	}
	return wave
}

// visitWave visits every URL in wave concurrently. Visits are returned in
// wave order; a nil entry means that visit did not complete.
func (c *Crawler) visitWave(ctx context.Context, wave []string, rules []rule.Rule, withLinks bool) ([]*scrape.Visit, error) {
	visits := make([]*scrape.Visit, len(wave))

	if len(wave) == 1 {
		v, err := c.visitor.Visit(ctx, wave[0], rules, withLinks)
		visits[0] = v
		return visits, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range wave {
		g.Go(func() error {
			v, err := c.visitor.Visit(gctx, url, rules, withLinks)
			if err != nil {
				return err
			}
			visits[i] = v
			return nil
		})
	}
	return visits, g.Wait()
}

// follow queues the links of a visited page, up to the per-page limit and
// never beyond the pages the crawl may still visit.
func (c *Crawler) follow(frontier *Frontier, pageURL string, v *scrape.Visit, maxPages int) {
	if !v.Result.Succeeded() {
		return
	}
	if v.LinkErr != nil {
		logger.Warn("not following links", "url", pageURL, "error", fmt.Errorf("%w: %v", ErrLinkExtraction, v.LinkErr))
		return
	}

	links := c.filter.Filter(pageURL, v.Links)
	if len(links) > c.config.MaxLinksPerPage {
		links = links[:c.config.MaxLinksPerPage]
	}

	added := 0
	for _, link := range links {
		if frontier.Visited()+frontier.Len() >= maxPages {
			break
		}
		if frontier.Push(link) {
			added++
		}
	}

	c.config.Metrics.LinksEnqueued(added)
	c.config.Metrics.FrontierDelta(added)
	logger.Debug("crawler queued links",
		"url", pageURL,
		"found", len(v.Links),
		"followable", len(links),
		"queued", added)
}
