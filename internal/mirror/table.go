package mirror

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule rewrites URLs starting with Prefix so they start with Replace.
type Rule struct {
	Prefix  string `yaml:"prefix"`
	Replace string `yaml:"replace"`
}

// Table is an ordered list of rewrite rules; the first match wins.
type Table struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultTable returns the built-in mirror overrides.
func DefaultTable() *Table {
	return &Table{
		Rules: []Rule{
			{Prefix: "https://github.com", Replace: "https://ghproxy.com/https://github.com"},
			{Prefix: "https://archive.org/download/nintendo-switch-global-firmwares/", Replace: "https://nsarchive.e6ex.com/nsfrp/"},
		},
	}
}

// LoadTable reads a YAML mirror table:
//
//	rules:
//	  - prefix: https://github.com
//	    replace: https://ghproxy.com/https://github.com
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mirror table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse mirror table %s: %w", path, err)
	}

	for i, r := range table.Rules {
		if r.Prefix == "" || r.Replace == "" {
			return nil, fmt.Errorf("parse mirror table %s: rule %d needs prefix and replace", path, i)
		}
	}

	return &table, nil
}

// Rewrite applies the first matching rule. ok is false when none matched.
func (t *Table) Rewrite(rawURL string) (string, bool) {
	for _, r := range t.Rules {
		if strings.HasPrefix(rawURL, r.Prefix) {
			return r.Replace + strings.TrimPrefix(rawURL, r.Prefix), true
		}
	}
	return rawURL, false
}
