package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/rulecrawl/internal/crawler"
	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/internal/output"
	"github.com/jmylchreest/rulecrawl/internal/storage"
	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

// scrapeRequest is the body of POST /api/scrape. Rules are given inline,
// by stored id, or both; inline rules come first.
type scrapeRequest struct {
	URL       string      `json:"url"`
	Rules     []rule.Rule `json:"rules"`
	RuleIDs   []string    `json:"ruleIds"`
	CrawlMode bool        `json:"crawlMode"`
	MaxPages  *int        `json:"maxPages"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context())
	if err != nil {
		logger.Error("failed to list rules", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not list rules")
		return
	}
	s.respondWithJSON(w, http.StatusOK, rules)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ru, err := s.rules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, ru)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var ru rule.Rule
	if err := json.NewDecoder(r.Body).Decode(&ru); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := ru.Validate(); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.rules.Create(r.Context(), ru)
	if err != nil {
		logger.Error("failed to create rule", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not create rule")
		return
	}
	s.respondWithJSON(w, http.StatusCreated, created)
}

// handleUpdateRule merges the body over the stored rule, so fields left out
// keep their values.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ru, err := s.rules.Get(r.Context(), id)
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&ru); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := ru.Validate(); err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.rules.Update(r.Context(), id, ru)
	if err != nil {
		s.respondWithStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		logger.Error("failed to delete rule", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not delete rule")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, rule.Templates())
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := rule.LookupTemplate(chi.URLParam(r, "name"))
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "Template not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, t)
}

func (s *Server) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, rule.Presets())
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "Scraping is not configured")
		return
	}

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.respondWithError(w, http.StatusBadRequest, "URL is required")
		return
	}

	rules := req.Rules
	if len(req.RuleIDs) > 0 {
		stored, err := storage.Lookup(r.Context(), s.rules, req.RuleIDs)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.respondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.ErrorContext(r.Context(), "failed to load rules", "error", err)
			s.respondWithError(w, http.StatusInternalServerError, "Could not load rules")
			return
		}
		rules = append(rules, stored...)
	}
	if len(rules) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "No rules provided")
		return
	}

	maxPages := crawler.DefaultMaxPages
	if req.MaxPages != nil {
		maxPages = *req.MaxPages
	}

	log := logger.With("url", req.URL, "crawl", req.CrawlMode, "max_pages", maxPages)
	ctx := r.Context()

	results, err := s.runner.Run(ctx, req.URL, rules, req.CrawlMode, maxPages)
	if err != nil {
		switch {
		case errors.Is(err, render.ErrUnavailable):
			log.ErrorContext(ctx, "render provider unavailable", "error", err)
			s.respondWithError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.WarnContext(ctx, "scrape cancelled", "pages", len(results), "error", err)
			s.respondWithError(w, http.StatusServiceUnavailable, "Scrape cancelled")
		default:
			log.ErrorContext(ctx, "scrape failed", "error", err)
			s.respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	log.InfoContext(ctx, "scrape finished", "pages", len(results))

	if err := s.results.Replace(ctx, results); err != nil {
		log.ErrorContext(ctx, "failed to store results", "error", err)
	}
	s.respondWithJSON(w, http.StatusOK, results)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.results.Latest(r.Context())
	if err != nil {
		logger.Error("failed to load results", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not load results")
		return
	}
	s.respondWithJSON(w, http.StatusOK, results)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := output.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.results.Latest(r.Context())
	if err != nil {
		logger.Error("failed to load results", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not load results")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=scraping-results.%s", format))
	w.WriteHeader(http.StatusOK)
	if err := output.WriteRecords(w, format, results); err != nil {
		logger.Error("failed to export results", "format", format, "error", err)
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{
		"rules":   s.ping(ctx, "rules", s.rules),
		"results": s.ping(ctx, "results", s.results),
	}

	for _, status := range healthStatus {
		if status == "unhealthy" {
			s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
			return
		}
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) ping(ctx context.Context, name string, store any) string {
	p, ok := store.(pinger)
	if !ok {
		return "healthy"
	}
	if err := p.Ping(ctx); err != nil {
		logger.Error("health check failed", "store", name, "error", err)
		return "unhealthy"
	}
	return "healthy"
}

// --- Helper Functions ---

func (s *Server) respondWithStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Rule not found")
		return
	}
	logger.Error("rule store failed", "error", err)
	s.respondWithError(w, http.StatusInternalServerError, "Rule store error")
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		code = http.StatusInternalServerError
		response = []byte(`{"error":"Could not encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
