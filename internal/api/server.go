// Package api serves the rule store, templates and scraping over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmylchreest/rulecrawl/internal/config"
	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/internal/metrics"
	"github.com/jmylchreest/rulecrawl/internal/storage"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// Runner runs rules against a seed URL. *rulecrawl.Engine implements it.
type Runner interface {
	Run(ctx context.Context, seedURL string, rules []rule.Rule, crawlMode bool, maxPages int) ([]*scrape.PageResult, error)
}

// Deps holds the dependencies for the HTTP server.
type Deps struct {
	Runner   Runner
	Rules    storage.RuleStore
	Results  storage.ResultStore
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // Served on /metrics; default gatherer when nil
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     config.ServerConfig
	router     http.Handler
	httpServer *http.Server
	runner     Runner
	rules      storage.RuleStore
	results    storage.ResultStore
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
}

// NewServer creates a server. Missing stores default to in-memory ones.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		config:   cfg,
		runner:   deps.Runner,
		rules:    deps.Rules,
		results:  deps.Results,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
	}
	if s.rules == nil {
		s.rules = storage.NewMemoryRuleStore()
	}
	if s.results == nil {
		s.results = storage.NewMemoryResultStore()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("http server listening", "addr", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
