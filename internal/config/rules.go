package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// RuleSet is a TOML rule-set file:
//
//	[[rule]]
//	name = "unwrap_used"
//
//	[[rule]]
//	name = "ptr_arg"
//	enabled = false
type RuleSet struct {
	Rules []RuleEntry `toml:"rule"`
}

// RuleEntry enables or disables one rule. Enabled defaults to true.
type RuleEntry struct {
	Name    string `toml:"name"`
	Enabled *bool  `toml:"enabled,omitempty"`
}

// IsEnabled reports whether the entry enables its rule.
func (e RuleEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// LoadRuleSet reads and validates a rule-set file.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes a rule-set document. Unknown keys are rejected.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}
	for i, e := range rs.Rules {
		if err := validateRuleName(e.Name); err != nil {
			return nil, fmt.Errorf("invalid rule set: rule %d: %w", i+1, err)
		}
	}
	return &rs, nil
}

// Merge applies the rule set over base: enabled rules missing from base are appended,
// disabled rules are removed. Order is preserved and duplicates are dropped.
func (rs *RuleSet) Merge(base []string) []string {
	disabled := make(map[string]bool)
	for _, e := range rs.Rules {
		if !e.IsEnabled() {
			disabled[e.Name] = true
		}
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(base)+len(rs.Rules))
	add := func(r string) {
		if seen[r] || disabled[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}
	for _, r := range base {
		add(r)
	}
	for _, e := range rs.Rules {
		if e.IsEnabled() {
			add(e.Name)
		}
	}
	return out
}

// EffectiveRules returns the configured rules merged with RulesFile, resolved against root
// when relative. Rules given with the lint prefix ("clippy::unwrap_used") are reduced to
// their bare name.
func (c *Config) EffectiveRules(root string) ([]string, error) {
	rules := make([]string, 0, len(c.Rules))
	for _, r := range c.Rules {
		rules = append(rules, strings.TrimPrefix(r, c.Analyzer.LintPrefix))
	}
	if c.RulesFile == "" {
		return (&RuleSet{}).Merge(rules), nil
	}

	path := c.RulesFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		return nil, &ConfigError{Field: "rulesFile", Message: err.Error()}
	}
	for i := range rs.Rules {
		rs.Rules[i].Name = strings.TrimPrefix(rs.Rules[i].Name, c.Analyzer.LintPrefix)
	}
	return rs.Merge(rules), nil
}

// Save writes the rule set as TOML.
func (rs *RuleSet) Save(path string) error {
	data, err := toml.Marshal(rs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func validateRuleName(name string) error {
	if name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("rule name %q contains whitespace", name)
	}
	return nil
}
