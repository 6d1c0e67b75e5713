// Package config loads lint rules from YAML files and compiles them into
// command patterns.
//
// A rules file looks like:
//
//	rules:
//	  - id: curl-follows-redirects
//	    message: curl follows redirects without restricting protocols
//	    severity: warning
//	    instructions: [RUN]
//	    steps:
//	      - kind: with
//	        command: curl
//	      - kind: any-flag
//	      - kind: with
//	        values: ["-L", "--location"]
//	      - kind: repeat
//
// Each step kind maps to one detector.Builder operation, e.g. any-flag to
// WithAnyFlag and unordered-options to WithUnorderedOptions.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/krmcbride/runlint/pkg/detector"
)

// Validation errors. Loading errors wrap them together with the rule id and
// step index.
var (
	ErrNoRules             = errors.New("no rules defined")
	ErrMissingID           = errors.New("rule has no id")
	ErrDuplicateID         = errors.New("duplicate rule id")
	ErrNoSteps             = errors.New("rule has no steps")
	ErrUnknownKind         = errors.New("unknown step kind")
	ErrUnknownSeverity     = errors.New("unknown severity")
	ErrUnknownMatcher      = errors.New("unknown matcher")
	ErrConflictingMatchers = errors.New("step sets more than one matcher")
	ErrMissingMatcher      = errors.New("step needs a matcher")
	ErrMissingEnv          = errors.New("without-env step needs env")
)

// Severities accepted in rule files.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// DefaultInstructions are checked when a rule lists none.
var DefaultInstructions = []string{"RUN"}

// File is the YAML document.
type File struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is one rule as written in YAML.
type RuleConfig struct {
	ID       string `yaml:"id"`
	Message  string `yaml:"message"`
	Severity string `yaml:"severity"`
	// Instructions restricts the rule to these Dockerfile keywords.
	Instructions []string     `yaml:"instructions"`
	Steps        []StepConfig `yaml:"steps"`
}

// StepConfig is one pattern step. Kind selects the builder operation; at
// most one matcher field supplies its predicate.
type StepConfig struct {
	Kind string `yaml:"kind"`

	Matcher `yaml:",inline"`

	// Flags are the flag names of optional-flag, any-flag-except,
	// any-flag-followed-by, any-option-except and flag-value steps.
	Flags []string `yaml:"flags,omitempty"`
	// Options are the members of an unordered-options step.
	Options []OptionConfig `yaml:"options,omitempty"`
	// Env is the variable checked by a without-env step.
	Env string `yaml:"env,omitempty"`
	// IncludeUnresolved lets with and repeat steps accept unresolved
	// arguments.
	IncludeUnresolved bool `yaml:"include_unresolved,omitempty"`
}

// Matcher holds the mutually exclusive ways of writing a predicate.
type Matcher struct {
	Value   string   `yaml:"value,omitempty"`
	Values  []string `yaml:"values,omitempty"`
	Prefix  string   `yaml:"prefix,omitempty"`
	Glob    string   `yaml:"glob,omitempty"`
	Regex   string   `yaml:"regex,omitempty"`
	Command string   `yaml:"command,omitempty"`
	// Is names a built-in matcher: any, flag, shell, eval.
	Is string `yaml:"is,omitempty"`
}

// OptionConfig is one flag of an unordered-options step. A matcher, when
// set, applies to the flag's value.
type OptionConfig struct {
	Flags    []string `yaml:"flags"`
	Optional bool     `yaml:"optional,omitempty"`

	Matcher `yaml:",inline"`
}

// Rule is a compiled rule.
type Rule struct {
	ID           string
	Message      string
	Severity     string
	Instructions []string
	Pattern      *detector.Pattern
}

// AppliesTo reports whether the rule checks instructions with keyword.
func (r *Rule) AppliesTo(keyword string) bool {
	return slices.ContainsFunc(r.Instructions, func(k string) bool {
		return strings.EqualFold(k, keyword)
	})
}

// Load reads and compiles a rules file.
func Load(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file %s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes, validates and compiles a rules document. Unknown fields
// are rejected.
func Parse(data []byte) ([]*Rule, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return file.Compile()
}

// Compile validates the document and compiles every rule.
func (f *File) Compile() ([]*Rule, error) {
	if len(f.Rules) == 0 {
		return nil, ErrNoRules
	}

	seen := make(map[string]bool, len(f.Rules))
	rules := make([]*Rule, 0, len(f.Rules))
	for i, rc := range f.Rules {
		if rc.ID == "" {
			return nil, fmt.Errorf("rule #%d: %w", i+1, ErrMissingID)
		}
		if seen[rc.ID] {
			return nil, fmt.Errorf("rule %q: %w", rc.ID, ErrDuplicateID)
		}
		seen[rc.ID] = true

		rule, err := rc.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rc.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (rc RuleConfig) compile() (*Rule, error) {
	severity := rc.Severity
	if severity == "" {
		severity = SeverityWarning
	}
	switch severity {
	case SeverityInfo, SeverityWarning, SeverityError:
	default:
		return nil, fmt.Errorf("%w: %s (must be info, warning, or error)", ErrUnknownSeverity, severity)
	}

	if len(rc.Steps) == 0 {
		return nil, ErrNoSteps
	}

	b := detector.New()
	for i, sc := range rc.Steps {
		if err := sc.apply(b); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, sc.Kind, err)
		}
	}
	pattern, err := b.Build()
	if err != nil {
		return nil, err
	}

	instructions := DefaultInstructions
	if len(rc.Instructions) > 0 {
		instructions = make([]string, len(rc.Instructions))
		for i, k := range rc.Instructions {
			instructions[i] = strings.ToUpper(k)
		}
	}

	return &Rule{
		ID:           rc.ID,
		Message:      rc.Message,
		Severity:     severity,
		Instructions: slices.Clone(instructions),
		Pattern:      pattern,
	}, nil
}
