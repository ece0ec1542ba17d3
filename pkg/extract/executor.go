package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

// Executor runs rules against rendered pages. It is safe for concurrent use
// and caches compiled patterns, so one Executor should be shared across a
// crawl.
type Executor struct {
	patterns sync.Map // pattern string -> *regexp.Regexp
}

// NewExecutor creates an executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute applies r to page. It never returns an error and never panics;
// failures are reported in the MatchSet.
func (e *Executor) Execute(ctx context.Context, r rule.Rule, page *render.Page) (ms MatchSet) {
	ms = newMatchSet(r)

	defer func() {
		if rec := recover(); rec != nil {
			ms.fail(fmt.Errorf("%w: panic: %v", ErrRuleEvaluation, rec))
		}
	}()

	raw, err := e.run(ctx, r, page)
	if err != nil {
		ms.fail(err)
		return ms
	}
	ms.set(raw)
	return ms
}

func (e *Executor) run(ctx context.Context, r rule.Rule, page *render.Page) ([]string, error) {
	switch r.Variant {
	case rule.PatternMatch:
		return e.matchPattern(r.Pattern, page.DOM+" "+page.RawSource)
	case rule.StructuralSelector:
		if page.Live == nil {
			return nil, errNoLivePage
		}
		els, err := page.Live.QueryStructural(ctx, r.Selector)
		if err != nil {
			return nil, classify(err)
		}
		return elementValues(els), nil
	case rule.TreeQuery:
		if page.Live == nil {
			return nil, errNoLivePage
		}
		els, err := page.Live.QueryTreePath(ctx, r.Selector)
		if err != nil {
			return nil, classify(err)
		}
		return elementValues(els), nil
	case rule.CustomExtractor:
		if page.Live == nil {
			return nil, errNoLivePage
		}
		v, err := page.Live.EvaluateScript(ctx, r.Script)
		if err != nil {
			return nil, classify(err)
		}
		return scriptValues(v), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, r.Variant)
	}
}

var errNoLivePage = fmt.Errorf("%w: page has no live session", ErrRuleEvaluation)

// matchPattern finds every non-overlapping, case-insensitive match of
// pattern in content.
func (e *Executor) matchPattern(pattern, content string) ([]string, error) {
	re, err := e.compile(pattern)
	if err != nil {
		return nil, err
	}

	found := re.FindAllString(content, -1)
	out := make([]string, 0, len(found))
	for _, m := range found {
		out = append(out, strings.TrimSpace(m))
	}
	return out, nil
}

func (e *Executor) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleCompile, err)
	}
	e.patterns.Store(pattern, re)
	return re, nil
}

// classify maps a session error onto the rule error taxonomy.
func classify(err error) error {
	if errors.Is(err, render.ErrInvalidExpression) {
		return fmt.Errorf("%w: %v", ErrRuleCompile, err)
	}
	return fmt.Errorf("%w: %v", ErrRuleEvaluation, err)
}

func elementValues(els []render.Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, el.Value())
	}
	return out
}

// scriptValues turns a script result into raw matches. Undefined and null
// give nothing, arrays give their elements, and anything else is a single
// match.
func scriptValues(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := scalarString(x); ok {
			return []string{s}
		}
		return nil
	}
}

// scalarString renders one script value as a match. Falsy values (null,
// false, 0, NaN and "") are dropped. Objects and nested arrays are kept as
// JSON.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		return "true", x
	case float64:
		if x == 0 || math.IsNaN(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(b), true
	}
}
