// Package rulecrawl provides the public API for rule-based extraction from
// rendered web pages, optionally following links breadth first.
package rulecrawl

import (
	"time"

	"github.com/jmylchreest/rulecrawl/internal/crawler"
	"github.com/jmylchreest/rulecrawl/internal/metrics"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// Config holds all engine configuration.
type Config struct {
	// Page settings
	Scrape scrape.Config

	// Crawling settings
	Crawl crawler.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Scrape: scrape.DefaultConfig(),
		Crawl:  crawler.DefaultConfig(),
	}
}

// Option configures the Engine.
type Option func(*Config)

// WithTimeout sets the navigation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Scrape.Timeout = d
	}
}

// WithSettle sets how long to wait after load for client-side rendering.
// Zero disables the wait.
func WithSettle(d time.Duration) Option {
	return func(c *Config) {
		c.Scrape.Settle = d
	}
}

// WithWaitSelector waits for a CSS selector after settling.
func WithWaitSelector(selector string) Option {
	return func(c *Config) {
		c.Scrape.WaitSelector = selector
	}
}

// WithUserAgent sets the user agent sessions present.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.Scrape.Session.UserAgent = ua
	}
}

// WithViewport sets the session viewport size.
func WithViewport(width, height int) Option {
	return func(c *Config) {
		c.Scrape.Session.ViewportWidth = width
		c.Scrape.Session.ViewportHeight = height
	}
}

// WithAcquireRetries sets how many times opening a session is retried.
func WithAcquireRetries(n int) Option {
	return func(c *Config) {
		c.Scrape.AcquireRetries = n
	}
}

// WithMaxLinksPerPage sets how many links each crawled page contributes.
func WithMaxLinksPerPage(n int) Option {
	return func(c *Config) {
		c.Crawl.MaxLinksPerPage = n
	}
}

// WithConcurrency sets the number of pages visited at once.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Crawl.Concurrency = n
	}
}

// WithSameHostOnly restricts crawling to the seed's host.
func WithSameHostOnly(enabled bool) Option {
	return func(c *Config) {
		c.Crawl.SameHostOnly = enabled
	}
}

// WithFollowPattern sets the regex pattern for URLs to follow.
func WithFollowPattern(pattern string) Option {
	return func(c *Config) {
		c.Crawl.FollowPattern = pattern
	}
}

// WithMetrics records page, rule and crawl metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) {
		c.Scrape.Metrics = m
		c.Crawl.Metrics = m
	}
}
