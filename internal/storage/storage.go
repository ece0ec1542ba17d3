// Package storage persists rules and the results of the latest scrape.
package storage

import (
	"context"
	"errors"

	"github.com/jmylchreest/rulecrawl/pkg/rule"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// ErrNotFound is returned when a rule id does not exist.
var ErrNotFound = errors.New("not found")

// RuleStore manages saved rules. Ids are assigned by the store.
type RuleStore interface {
	// List returns all rules in creation order.
	List(ctx context.Context) ([]rule.Rule, error)
	Get(ctx context.Context, id string) (rule.Rule, error)
	// Create stores r under a new id and returns the stored rule.
	Create(ctx context.Context, r rule.Rule) (rule.Rule, error)
	// Update replaces the rule with the given id.
	Update(ctx context.Context, id string, r rule.Rule) (rule.Rule, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ResultStore keeps the results of the most recent scrape.
type ResultStore interface {
	// Replace discards the previous results and stores results.
	Replace(ctx context.Context, results []*scrape.PageResult) error
	// Latest returns the stored results, or an empty slice if there are none.
	Latest(ctx context.Context) ([]*scrape.PageResult, error)
	Close() error
}

// Lookup returns the stored rules with the given ids, in the order given.
func Lookup(ctx context.Context, store RuleStore, ids []string) ([]rule.Rule, error) {
	rules := make([]rule.Rule, 0, len(ids))
	for _, id := range ids {
		r, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
