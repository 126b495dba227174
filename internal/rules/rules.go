// Package rules loads named extraction rules from YAML or JSON and compiles
// them into boundary scanners.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/goextract/internal/boundary"
)

// Rule is the file representation of one extraction. Each side takes either
// a literal or a pattern, not both.
type Rule struct {
	Name              string `yaml:"name" json:"name"`
	Start             string `yaml:"start,omitempty" json:"start,omitempty"`
	End               string `yaml:"end,omitempty" json:"end,omitempty"`
	StartPattern      string `yaml:"startPattern,omitempty" json:"startPattern,omitempty"`
	EndPattern        string `yaml:"endPattern,omitempty" json:"endPattern,omitempty"`
	IncludeDelimiters bool   `yaml:"includeDelimiters,omitempty" json:"includeDelimiters,omitempty"`
	Multiple          *bool  `yaml:"multiple,omitempty" json:"multiple,omitempty"`
	Trim              *bool  `yaml:"trim,omitempty" json:"trim,omitempty"`
}

// File is the top-level schema of a rules file.
type File struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Named pairs a rule name with its compiled scanner.
type Named struct {
	Name    string
	Scanner *boundary.Scanner
}

// Load reads a rules file. .yaml/.yml and .json are parsed accordingly; other
// extensions try YAML then JSON.
func Load(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &f); err != nil {
			if jerr := json.Unmarshal(b, &f); jerr != nil {
				return nil, fmt.Errorf("parse rules: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return f.Rules, nil
}

// Options converts r into boundary options, compiling patterns.
func (r Rule) Options() (boundary.Options, error) {
	start, err := side("start", r.Start, r.StartPattern)
	if err != nil {
		return boundary.Options{}, err
	}
	end, err := side("end", r.End, r.EndPattern)
	if err != nil {
		return boundary.Options{}, err
	}
	include := r.IncludeDelimiters
	return boundary.Options{
		Start:             start,
		End:               end,
		IncludeDelimiters: &include,
		MultipleMatches:   r.Multiple,
		TrimResult:        r.Trim,
	}, nil
}

func side(which, literal, pattern string) (boundary.Matcher, error) {
	switch {
	case literal != "" && pattern != "":
		return nil, fmt.Errorf("%s: set either a literal or a pattern, not both", which)
	case pattern != "":
		p, err := boundary.CompilePattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", which, err)
		}
		return p, nil
	case literal != "":
		return boundary.Literal(literal), nil
	}
	return nil, nil
}

// Compile builds scanners for rules. Names must be non-empty and unique.
func Compile(rules []Rule) ([]Named, error) {
	if len(rules) == 0 {
		return nil, errors.New("no rules defined")
	}
	seen := make(map[string]bool, len(rules))
	out := make([]Named, 0, len(rules))
	for i, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("rule #%d: name is required", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("rule %q: duplicate name", name)
		}
		seen[name] = true
		opts, err := r.Options()
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		s, err := boundary.New(opts.Config())
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}
		out = append(out, Named{Name: name, Scanner: s})
	}
	return out, nil
}
