// Package config loads rulecrawl settings from flags, environment and
// config files through viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rulecrawl/internal/crawler"
	"github.com/jmylchreest/rulecrawl/internal/metrics"
	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/render/browser"
	"github.com/jmylchreest/rulecrawl/pkg/render/static"
	"github.com/jmylchreest/rulecrawl/pkg/rulecrawl"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// Render modes.
const (
	RenderBrowser = "browser"
	RenderStatic  = "static"
)

// Config stores all configuration for the application.
type Config struct {
	// Rendering
	Render         string        `mapstructure:"render"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Settle         time.Duration `mapstructure:"settle"`
	WaitSelector   string        `mapstructure:"wait_selector"`
	UserAgent      string        `mapstructure:"user_agent"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	ChromePath     string        `mapstructure:"chrome_path"`
	Headless       bool          `mapstructure:"headless"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	MaxBodySize    string        `mapstructure:"max_body_size"`
	AcquireRetries int           `mapstructure:"acquire_retries"`

	// Crawling
	MaxPages        int    `mapstructure:"max_pages"`
	MaxLinksPerPage int    `mapstructure:"max_links_per_page"`
	Concurrency     int    `mapstructure:"concurrency"`
	SameHostOnly    bool   `mapstructure:"same_host_only"`
	FollowPattern   string `mapstructure:"follow_pattern"`

	// Service
	Server        ServerConfig  `mapstructure:"server"`
	PostgresURL   string        `mapstructure:"postgres_url"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	ResultsTTL    time.Duration `mapstructure:"results_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SetDefaults registers default values on v. Every key is registered so
// AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("render", RenderBrowser)
	v.SetDefault("timeout", render.DefaultTimeout)
	v.SetDefault("settle", scrape.DefaultSettle)
	v.SetDefault("wait_selector", "")
	v.SetDefault("user_agent", render.DefaultUserAgent)
	v.SetDefault("viewport_width", render.DefaultViewportWidth)
	v.SetDefault("viewport_height", render.DefaultViewportHeight)
	v.SetDefault("chrome_path", "")
	v.SetDefault("headless", true)
	v.SetDefault("no_sandbox", true)
	v.SetDefault("max_body_size", "10MB")
	v.SetDefault("acquire_retries", scrape.DefaultAcquireRetries)

	v.SetDefault("max_pages", crawler.DefaultMaxPages)
	v.SetDefault("max_links_per_page", crawler.DefaultMaxLinksPerPage)
	v.SetDefault("concurrency", 1)
	v.SetDefault("same_host_only", false)
	v.SetDefault("follow_pattern", "")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("postgres_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("results_ttl", 24*time.Hour)
}

// Load applies defaults to v and decodes it into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Render) {
	case RenderBrowser, RenderStatic:
	default:
		return fmt.Errorf("unknown render mode: %q (use %q or %q)", c.Render, RenderBrowser, RenderStatic)
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		return err
	}
	if c.Timeout < 0 || c.Settle < 0 {
		return fmt.Errorf("timeout and settle must not be negative")
	}
	if c.Concurrency < 0 || c.MaxLinksPerPage < 0 || c.AcquireRetries < 0 {
		return fmt.Errorf("concurrency, max_links_per_page and acquire_retries must not be negative")
	}
	if c.FollowPattern != "" {
		if _, err := regexp.Compile(c.FollowPattern); err != nil {
			return fmt.Errorf("invalid follow_pattern: %w", err)
		}
	}
	return nil
}

// MaxBodyBytes parses MaxBodySize ("10MB", "512KiB"). Empty or "0" means
// no limit.
func (c *Config) MaxBodyBytes() (int, error) {
	s := strings.TrimSpace(c.MaxBodySize)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max_body_size %q: %w", c.MaxBodySize, err)
	}
	return int(n), nil
}

// NewProvider creates the render provider selected by Render.
func (c *Config) NewProvider() (render.Provider, error) {
	switch strings.ToLower(c.Render) {
	case RenderStatic:
		size, err := c.MaxBodyBytes()
		if err != nil {
			return nil, err
		}
		return static.New(static.Config{
			Timeout:     c.Timeout,
			MaxBodySize: size,
		}), nil
	case RenderBrowser:
		return browser.New(browser.Config{
			ExecPath:  c.ChromePath,
			Headless:  c.Headless,
			NoSandbox: c.NoSandbox,
			UserAgent: c.UserAgent,
			Timeout:   c.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown render mode: %q", c.Render)
	}
}

// EngineOptions converts the configuration into engine options.
func (c *Config) EngineOptions(m *metrics.Metrics) []rulecrawl.Option {
	return []rulecrawl.Option{
		rulecrawl.WithTimeout(c.Timeout),
		rulecrawl.WithSettle(c.Settle),
		rulecrawl.WithWaitSelector(c.WaitSelector),
		rulecrawl.WithUserAgent(c.UserAgent),
		rulecrawl.WithViewport(c.ViewportWidth, c.ViewportHeight),
		rulecrawl.WithAcquireRetries(c.AcquireRetries),
		rulecrawl.WithMaxLinksPerPage(c.MaxLinksPerPage),
		rulecrawl.WithConcurrency(c.Concurrency),
		rulecrawl.WithSameHostOnly(c.SameHostOnly),
		rulecrawl.WithFollowPattern(c.FollowPattern),
		rulecrawl.WithMetrics(m),
	}
}
