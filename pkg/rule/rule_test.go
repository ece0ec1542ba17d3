package rule

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// --- Spec Tests ---

func TestRule_Spec_PerVariant(t *testing.T) {
	r := Rule{Pattern: "p", Selector: "s", Script: "x"}

	tests := []struct {
		variant Variant
		want    string
	}{
		{PatternMatch, "p"},
		{StructuralSelector, "s"},
		{TreeQuery, "s"},
		{CustomExtractor, "x"},
		{Variant("llm"), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			r.Variant = tt.variant
			if got := r.Spec(); got != tt.want {
				t.Errorf("Spec() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVariant_Known(t *testing.T) {
	for _, v := range Variants() {
		if !v.Known() {
			t.Errorf("%q should be known", v)
		}
	}
	if Variant("regexp").Known() {
		t.Error("unexpected known variant")
	}
}

// --- Validate Tests ---

func TestRule_Validate_Valid(t *testing.T) {
	rules := []Rule{
		{Name: "a", Variant: PatternMatch, Pattern: "x"},
		{Name: "b", Variant: StructuralSelector, Selector: "h1"},
		{Name: "c", Variant: TreeQuery, Selector: "//h1"},
		{Name: "d", Variant: CustomExtractor, Script: "1"},
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			t.Errorf("Validate(%s) error = %v", r, err)
		}
	}
}

func TestRule_Validate_MissingName(t *testing.T) {
	err := Rule{Variant: PatternMatch, Pattern: "x"}.Validate()
	if err == nil {
		t.Fatal("expected error for missing name")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRule_Validate_UnknownVariant(t *testing.T) {
	err := Rule{Name: "a", Variant: "llm"}.Validate()
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
	if !strings.Contains(err.Error(), `unknown type "llm"`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRule_Validate_MissingPayload(t *testing.T) {
	tests := []Rule{
		{Name: "a", Variant: PatternMatch},
		{Name: "b", Variant: StructuralSelector},
		{Name: "c", Variant: TreeQuery},
		{Name: "d", Variant: CustomExtractor},
	}
	for _, r := range tests {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(%s) should fail without payload", r)
		}
	}
}

func TestValidateAll_Empty(t *testing.T) {
	if err := ValidateAll(nil); err == nil {
		t.Error("expected error for empty rule set")
	}
}

// --- Template Tests ---

func TestTemplates_PatternsCompile(t *testing.T) {
	for _, tpl := range Templates() {
		for _, r := range tpl.Rules {
			if err := r.Validate(); err != nil {
				t.Errorf("%s: %v", tpl.Name, err)
			}
			if r.Variant != PatternMatch {
				continue
			}
			if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
				t.Errorf("%s/%s: pattern does not compile: %v", tpl.Name, r.Name, err)
			}
		}
	}
	for _, r := range Presets() {
		if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
			t.Errorf("preset %s: %v", r.Name, err)
		}
	}
}

func TestTemplates_ReturnsCopy(t *testing.T) {
	a := Templates()
	a[0].Rules[0].Name = "changed"

	b := Templates()
	if b[0].Rules[0].Name == "changed" {
		t.Error("Templates() should return a fresh copy")
	}
}

func TestLookupTemplate(t *testing.T) {
	for _, name := range []string{"Contact Information", "contact-information", "SOCIAL_MEDIA", " business directory "} {
		if _, ok := LookupTemplate(name); !ok {
			t.Errorf("LookupTemplate(%q) not found", name)
		}
	}
	if _, ok := LookupTemplate("nope"); ok {
		t.Error("LookupTemplate(nope) should not be found")
	}
}

func TestEmailPattern_Matches(t *testing.T) {
	re := regexp.MustCompile("(?i)" + EmailPattern)
	got := re.FindAllString("mail a@x.com or B.C@Example.ORG", -1)
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "B.C@Example.ORG" {
		t.Errorf("unexpected matches: %v", got)
	}
}

// --- Load Tests ---

func TestLoadFile_YAMLList(t *testing.T) {
	rules, err := LoadFile(filepath.Join("testdata", "rules.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}

	want := []Variant{PatternMatch, StructuralSelector, TreeQuery, CustomExtractor}
	for i, r := range rules {
		if r.Variant != want[i] {
			t.Errorf("rule %d variant = %q, want %q", i, r.Variant, want[i])
		}
	}
	if rules[2].Spec() != "//a/@href" {
		t.Errorf("unexpected xpath spec %q", rules[2].Spec())
	}
}

func TestLoadFile_JSONTemplate(t *testing.T) {
	rules, err := LoadFile(filepath.Join("testdata", "template.json"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].Name != "Business Names" || rules[1].Variant != PatternMatch {
		t.Errorf("unexpected rules: %+v", rules)
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	_, err := LoadFile("rules.txt")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestFromJSON_List(t *testing.T) {
	rules, err := FromJSON([]byte(`[{"name":"t","type":"custom","script":"document.title"}]`))
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if len(rules) != 1 || rules[0].Script != "document.title" {
		t.Errorf("unexpected rules: %+v", rules)
	}
}

func TestFromYAML_Template(t *testing.T) {
	data := []byte("name: t\nrules:\n  - name: h\n    type: css\n    selector: h1\n")
	rules, err := FromYAML(data)
	if err != nil {
		t.Fatalf("FromYAML() error = %v", err)
	}
	if len(rules) != 1 || rules[0].Selector != "h1" {
		t.Errorf("unexpected rules: %+v", rules)
	}
}

func TestFromYAML_Empty(t *testing.T) {
	rules, err := FromYAML(nil)
	if err != nil {
		t.Fatalf("FromYAML() error = %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("expected no rules, got %d", len(rules))
	}
}
