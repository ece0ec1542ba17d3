package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/rulecrawl/pkg/extract"
)

// Status is the outcome of a page visit.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// PageResult is the outcome of visiting one URL.
type PageResult struct {
	URL           string    `json:"url" yaml:"url"`
	FinalURL      string    `json:"finalUrl,omitempty" yaml:"finalUrl,omitempty"`
	VisitedAt     time.Time `json:"timestamp" yaml:"timestamp"`
	Status        Status    `json:"status" yaml:"status"`
	FailureReason string    `json:"error,omitempty" yaml:"error,omitempty"`
	Data          *RuleData `json:"data" yaml:"data"`

	// Err is the failure behind FailureReason, for errors.Is checks.
	Err error `json:"-" yaml:"-"`
}

// Succeeded reports whether the page loaded.
func (r *PageResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

func (r *PageResult) fail(err error) {
	r.Status = StatusError
	r.Err = err
	r.FailureReason = err.Error()
	r.Data = NewRuleData()
}

// Fixed CSV columns that precede the rule columns.
const (
	ColumnURL       = "URL"
	ColumnTimestamp = "Timestamp"
	ColumnStatus    = "Status"
)

// ruleColumnPrefix marks a rule column whose name would otherwise collide
// with a fixed column.
const ruleColumnPrefix = "rule:"

// ruleColumn returns the CSV column for a rule name.
func ruleColumn(name string) string {
	switch name {
	case ColumnURL, ColumnTimestamp, ColumnStatus:
		return ruleColumnPrefix + name
	}
	return name
}

// CSVColumns returns the fixed columns followed by one column per rule.
// A rule named URL, Timestamp or Status is listed as rule:URL and so on.
func (r *PageResult) CSVColumns() []string {
	cols := []string{ColumnURL, ColumnTimestamp, ColumnStatus}
	if r.Data != nil {
		for _, name := range r.Data.Names() {
			cols = append(cols, ruleColumn(name))
		}
	}
	return cols
}

// CSVValue returns the cell for col. Rule columns hold the matches joined
// with "; ".
func (r *PageResult) CSVValue(col string) string {
	switch col {
	case ColumnURL:
		return r.URL
	case ColumnTimestamp:
		return r.VisitedAt.UTC().Format(time.RFC3339)
	case ColumnStatus:
		return string(r.Status)
	}
	if r.Data == nil {
		return ""
	}
	name := col
	if n, ok := strings.CutPrefix(col, ruleColumnPrefix); ok && ruleColumn(n) == col {
		name = n
	}
	ms, ok := r.Data.Get(name)
	if !ok {
		return ""
	}
	return strings.Join(ms.Matches, "; ")
}

// RuleData maps rule names to match sets and remembers insertion order, so
// results serialize in the order the rules were given.
type RuleData struct {
	names []string
	sets  map[string]extract.MatchSet
}

// NewRuleData creates an empty RuleData.
func NewRuleData() *RuleData {
	return &RuleData{sets: make(map[string]extract.MatchSet)}
}

// Set stores ms under name. Setting an existing name replaces its value
// but keeps its original position.
func (d *RuleData) Set(name string, ms extract.MatchSet) {
	if d.sets == nil {
		d.sets = make(map[string]extract.MatchSet)
	}
	if _, ok := d.sets[name]; !ok {
		d.names = append(d.names, name)
	}
	d.sets[name] = ms
}

// Get returns the match set stored under name.
func (d *RuleData) Get(name string) (extract.MatchSet, bool) {
	if d == nil {
		return extract.MatchSet{}, false
	}
	ms, ok := d.sets[name]
	return ms, ok
}

// Len returns the number of entries.
func (d *RuleData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns rule names in insertion order.
func (d *RuleData) Names() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.names...)
}

// All iterates entries in insertion order.
func (d *RuleData) All() iter.Seq2[string, extract.MatchSet] {
	return func(yield func(string, extract.MatchSet) bool) {
		if d == nil {
			return
		}
		for _, name := range d.names {
			if !yield(name, d.sets[name]) {
				return
			}
		}
	}
}

// MarshalJSON writes an object whose keys follow insertion order.
func (d *RuleData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.sets[name])
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping document key order.
func (d *RuleData) UnmarshalJSON(data []byte) error {
	*d = RuleData{sets: make(map[string]extract.MatchSet)}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("rule data: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("rule data: expected key, got %v", tok)
		}
		var ms extract.MatchSet
		if err := dec.Decode(&ms); err != nil {
			return fmt.Errorf("rule %q: %w", name, err)
		}
		d.Set(name, ms)
	}

	_, err = dec.Token()
	return err
}

// MarshalYAML writes a mapping whose keys follow insertion order.
func (d *RuleData) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for name, ms := range d.All() {
		var val yaml.Node
		if err := val.Encode(ms); err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&val,
		)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping, keeping document key order.
func (d *RuleData) UnmarshalYAML(value *yaml.Node) error {
	*d = RuleData{sets: make(map[string]extract.MatchSet)}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("rule data: expected mapping at line %d", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var ms extract.MatchSet
		if err := value.Content[i+1].Decode(&ms); err != nil {
			return fmt.Errorf("rule %q: %w", value.Content[i].Value, err)
		}
		d.Set(value.Content[i].Value, ms)
	}
	return nil
}
