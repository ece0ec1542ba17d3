package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a rule set from a JSON or YAML file.
//
// Two document shapes are accepted: a bare list of rules, or a template
// object with a "rules" key (the shape produced by template export).
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- CLI reads user-specified rule files
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported rules file format: %s", ext)
	}
}

// FromJSON parses a rule set from JSON data.
func FromJSON(data []byte) ([]Rule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rules []Rule
		if err := json.Unmarshal(trimmed, &rules); err != nil {
			return nil, fmt.Errorf("failed to parse JSON rules: %w", err)
		}
		return rules, nil
	}

	var t Template
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return nil, fmt.Errorf("failed to parse JSON rules: %w", err)
	}
	return t.Rules, nil
}

// FromYAML parses a rule set from YAML data.
func FromYAML(data []byte) ([]Rule, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	doc := node.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var rules []Rule
		if err := doc.Decode(&rules); err != nil {
			return nil, fmt.Errorf("failed to parse YAML rules: %w", err)
		}
		return rules, nil
	}

	var t Template
	if err := doc.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules: %w", err)
	}
	return t.Rules, nil
}
