package scrape

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/rulecrawl/pkg/extract"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

func matchSet(matches ...string) extract.MatchSet {
	return extract.MatchSet{Variant: rule.PatternMatch, Spec: "x", Matches: matches, Count: len(matches)}
}

func TestRuleData_SetKeepsInsertionOrder(t *testing.T) {
	d := NewRuleData()
	d.Set("Zeta", matchSet("z"))
	d.Set("Alpha", matchSet("a"))
	d.Set("Mid", matchSet("m"))
	d.Set("Zeta", matchSet("z2"))

	if got := d.Names(); !reflect.DeepEqual(got, []string{"Zeta", "Alpha", "Mid"}) {
		t.Errorf("Names() = %v", got)
	}
	if d.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", d.Len())
	}
	ms, _ := d.Get("Zeta")
	if ms.Matches[0] != "z2" {
		t.Errorf("expected overwritten value, got %q", ms.Matches)
	}

	var iterated []string
	for name := range d.All() {
		iterated = append(iterated, name)
	}
	if !reflect.DeepEqual(iterated, d.Names()) {
		t.Errorf("All() order = %v", iterated)
	}
}

func TestRuleData_JSONPreservesOrder(t *testing.T) {
	d := NewRuleData()
	d.Set("Zeta", matchSet("z"))
	d.Set("Alpha", matchSet())

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)
	if strings.Index(s, `"Zeta"`) > strings.Index(s, `"Alpha"`) {
		t.Errorf("keys out of order: %s", s)
	}
	if !strings.Contains(s, `"matches":[]`) {
		t.Errorf("empty matches should serialize as []: %s", s)
	}

	var decoded RuleData
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := decoded.Names(); !reflect.DeepEqual(got, []string{"Zeta", "Alpha"}) {
		t.Errorf("decoded order = %v", got)
	}
}

func TestRuleData_UnmarshalJSON_Invalid(t *testing.T) {
	var d RuleData
	if err := json.Unmarshal([]byte(`["a"]`), &d); err == nil {
		t.Error("expected error for array input")
	}
}

func TestRuleData_YAMLPreservesOrder(t *testing.T) {
	d := NewRuleData()
	d.Set("Zeta", matchSet("z"))
	d.Set("Alpha", matchSet("a"))

	data, err := yaml.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "Zeta:") || strings.Index(s, "Zeta:") > strings.Index(s, "Alpha:") {
		t.Errorf("keys out of order:\n%s", s)
	}

	var decoded RuleData
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := decoded.Names(); !reflect.DeepEqual(got, []string{"Zeta", "Alpha"}) {
		t.Errorf("decoded order = %v", got)
	}
}

func TestPageResult_JSONShape(t *testing.T) {
	r := &PageResult{
		URL:       "https://acme.example/",
		VisitedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:    StatusError,
		Data:      NewRuleData(),
	}
	r.FailureReason = "navigation failed"

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"url", "timestamp", "status", "error", "data"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if m, ok := decoded["data"].(map[string]any); !ok || len(m) != 0 {
		t.Errorf("expected empty data object, got %s", data)
	}
}

func TestPageResult_CSV(t *testing.T) {
	r := &PageResult{
		URL:       "https://acme.example/",
		VisitedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:    StatusSuccess,
		Data:      NewRuleData(),
	}
	r.Data.Set("Email", matchSet("a@acme.example", "b@acme.example"))
	r.Data.Set("Phone", matchSet())

	wantCols := []string{"URL", "Timestamp", "Status", "Email", "Phone"}
	if got := r.CSVColumns(); !reflect.DeepEqual(got, wantCols) {
		t.Errorf("CSVColumns() = %v", got)
	}

	tests := map[string]string{
		"URL":       "https://acme.example/",
		"Timestamp": "2024-05-01T12:00:00Z",
		"Status":    "success",
		"Email":     "a@acme.example; b@acme.example",
		"Phone":     "",
		"Missing":   "",
	}
	for col, want := range tests {
		if got := r.CSVValue(col); got != want {
			t.Errorf("CSVValue(%q) = %q, want %q", col, got, want)
		}
	}
}

func TestPageResult_CSV_RuleNamedLikeFixedColumn(t *testing.T) {
	r := &PageResult{
		URL:    "https://acme.example/",
		Status: StatusSuccess,
		Data:   NewRuleData(),
	}
	r.Data.Set("Status", matchSet("open", "closed"))
	r.Data.Set("URL", matchSet("https://acme.example/about"))

	wantCols := []string{"URL", "Timestamp", "Status", "rule:Status", "rule:URL"}
	if got := r.CSVColumns(); !reflect.DeepEqual(got, wantCols) {
		t.Errorf("CSVColumns() = %v, want %v", got, wantCols)
	}

	tests := map[string]string{
		"Status":      "success",
		"URL":         "https://acme.example/",
		"rule:Status": "open; closed",
		"rule:URL":    "https://acme.example/about",
	}
	for col, want := range tests {
		if got := r.CSVValue(col); got != want {
			t.Errorf("CSVValue(%q) = %q, want %q", col, got, want)
		}
	}
}
