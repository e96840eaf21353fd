// Package prompts builds the prompts sent to the SQL generation model and
// holds the domain rules that steer it.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Example is a question paired with SQL that answers it.
type Example struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

// Rules is the domain guidance included in every SQL generation prompt.
type Rules struct {
	Dialect  string    `yaml:"dialect"`
	Rules    []string  `yaml:"rules"`
	Examples []Example `yaml:"examples"`
}

// DefaultRules returns the built-in rules for the shipping schema.
func DefaultRules() *Rules {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml is invalid: %v", err))
	}
	return rules
}

// LoadRules reads rules from path. An empty path returns DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes a rules document. Dialect defaults to PostgreSQL.
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rules.Dialect) == "" {
		rules.Dialect = "PostgreSQL"
	}
	for i, ex := range rules.Examples {
		if strings.TrimSpace(ex.Question) == "" || strings.TrimSpace(ex.SQL) == "" {
			return nil, fmt.Errorf("example %d needs both question and sql", i+1)
		}
	}
	return &rules, nil
}
