// Package extract applies extraction rules to rendered pages.
//
// Every rule produces a MatchSet. Rule failures are carried inside the
// MatchSet rather than returned, so one broken rule never affects the other
// rules on the same page.
package extract

import (
	"encoding/json"
	"errors"

	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

// Rule-level errors. They only ever appear in MatchSet.Err.
var (
	// ErrUnknownVariant means the rule's type is not one of the supported variants.
	ErrUnknownVariant = errors.New("unknown rule type")
	// ErrRuleCompile means the pattern, selector or path could not be parsed.
	ErrRuleCompile = errors.New("rule compile error")
	// ErrRuleEvaluation means the rule failed while running against the page.
	ErrRuleEvaluation = errors.New("rule evaluation error")
)

// MatchSet is the result of applying one rule to one page.
type MatchSet struct {
	Variant rule.Variant `json:"type" yaml:"type"`
	Spec    string       `json:"spec" yaml:"spec"`
	Matches []string     `json:"matches" yaml:"matches"`
	Count   int          `json:"count" yaml:"count"`
	Error   string       `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the failure behind Error, for errors.Is checks.
	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the rule failed.
func (m MatchSet) Failed() bool {
	return m.Error != ""
}

// MarshalJSON keeps matches as an array even when there are none.
func (m MatchSet) MarshalJSON() ([]byte, error) {
	type plain MatchSet
	if m.Matches == nil {
		m.Matches = []string{}
	}
	return json.Marshal(plain(m))
}

func newMatchSet(r rule.Rule) MatchSet {
	return MatchSet{
		Variant: r.Variant,
		Spec:    r.Spec(),
		Matches: []string{},
	}
}

func (m *MatchSet) fail(err error) {
	m.Matches = []string{}
	m.Count = 0
	m.Err = err
	m.Error = err.Error()
}

func (m *MatchSet) set(raw []string) {
	m.Matches = Clean(raw)
	m.Count = len(m.Matches)
}

// Clean drops empty entries and removes duplicates, keeping the first
// occurrence of each value.
func Clean(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
