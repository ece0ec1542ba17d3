package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jmylchreest/rulecrawl/pkg/rule"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// MemoryRuleStore keeps rules in process memory.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	order []string
	rules map[string]rule.Rule
}

// NewMemoryRuleStore creates an empty in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{
		rules: make(map[string]rule.Rule),
	}
}

func (s *MemoryRuleStore) List(_ context.Context) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rule.Rule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rules[id])
	}
	return out, nil
}

func (s *MemoryRuleStore) Get(_ context.Context, id string) (rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryRuleStore) Create(_ context.Context, r rule.Rule) (rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = uuid.NewString()
	s.rules[r.ID] = r
	s.order = append(s.order, r.ID)
	return r, nil
}

func (s *MemoryRuleStore) Update(_ context.Context, id string, r rule.Rule) (rule.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return rule.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	r.ID = id
	s.rules[id] = r
	return r, nil
}

// Delete removes a rule. Deleting an unknown id is not an error.
func (s *MemoryRuleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return nil
	}
	delete(s.rules, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func (s *MemoryRuleStore) Close() error { return nil }

// MemoryResultStore keeps the latest results in process memory.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results []*scrape.PageResult
}

// NewMemoryResultStore creates an empty in-memory result store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{}
}

func (s *MemoryResultStore) Replace(_ context.Context, results []*scrape.PageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = slices.Clone(results)
	return nil
}

func (s *MemoryResultStore) Latest(_ context.Context) ([]*scrape.PageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.results == nil {
		return []*scrape.PageResult{}, nil
	}
	return slices.Clone(s.results), nil
}

func (s *MemoryResultStore) Close() error { return nil }
