// Package rule defines extraction rules and rule sets.
//
// A Rule names a piece of data to pull from a rendered page and says how to
// find it. Exactly one of four variants applies to each rule:
//
//   - regex:  a regular expression applied to the page text
//   - css:    a CSS selector evaluated against the live DOM
//   - xpath:  an XPath expression evaluated against the live DOM
//   - custom: a JavaScript expression evaluated in the page
//
// Rules are loaded from YAML or JSON files, picked from the built-in
// templates, or managed through the HTTP API.
package rule

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Variant identifies how a rule is evaluated.
type Variant string

// Supported rule variants. The string values are the wire format used in
// rule files and API payloads.
const (
	PatternMatch       Variant = "regex"
	StructuralSelector Variant = "css"
	TreeQuery          Variant = "xpath"
	CustomExtractor    Variant = "custom"
)

// Variants lists the supported variants in display order.
func Variants() []Variant {
	return []Variant{PatternMatch, StructuralSelector, TreeQuery, CustomExtractor}
}

// Known reports whether v is one of the supported variants.
func (v Variant) Known() bool {
	switch v {
	case PatternMatch, StructuralSelector, TreeQuery, CustomExtractor:
		return true
	}
	return false
}

// Rule is a single named extraction rule.
type Rule struct {
	ID          string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string  `json:"name" yaml:"name" validate:"required,max=200"`
	Variant     Variant `json:"type" yaml:"type" validate:"required,variant"`
	Pattern     string  `json:"pattern,omitempty" yaml:"pattern,omitempty" validate:"required_if=Variant regex"`
	Selector    string  `json:"selector,omitempty" yaml:"selector,omitempty" validate:"required_if=Variant css,required_if=Variant xpath"`
	Script      string  `json:"script,omitempty" yaml:"script,omitempty" validate:"required_if=Variant custom"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Spec returns the variant-specific payload: the pattern for regex rules,
// the selector for css and xpath rules and the script for custom rules.
// Unknown variants have no payload.
func (r Rule) Spec() string {
	switch r.Variant {
	case PatternMatch:
		return r.Pattern
	case StructuralSelector, TreeQuery:
		return r.Selector
	case CustomExtractor:
		return r.Script
	default:
		return ""
	}
}

// String returns a short human-readable description of the rule.
func (r Rule) String() string {
	return fmt.Sprintf("%s(%s)", r.Name, r.Variant)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		return Variant(fl.Field().String()).Known()
	})
	return v
}

// Validate checks that the rule is complete enough to be stored.
// The extraction engine does not require it: a rule with an unknown variant
// is still executed and reported as a per-rule failure.
func (r Rule) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("invalid rule %q: %s", r.Name, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid rule %q: %w", r.Name, err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	if field == "variant" {
		field = "type"
	}
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "variant":
		return fmt.Sprintf("unknown type %q", fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ValidateAll validates every rule in rules and also rejects an empty set.
func ValidateAll(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("no rules provided")
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
