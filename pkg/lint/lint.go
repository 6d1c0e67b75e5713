// Package lint runs compiled rules over the instructions of a Dockerfile.
package lint

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/krmcbride/runlint/pkg/config"
	"github.com/krmcbride/runlint/pkg/dockerfile"
	"github.com/krmcbride/runlint/pkg/resolve"
	"github.com/krmcbride/runlint/pkg/symbols"
	"github.com/krmcbride/runlint/pkg/tree"
)

// Finding is one match of a rule.
type Finding struct {
	File     string    `json:"file"`
	Span     tree.Span `json:"span"`
	RuleID   string    `json:"rule"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	// Instruction is the keyword of the instruction the command was found in.
	Instruction string `json:"instruction"`
	// Command is the matched sub-command, shell-quoted.
	Command string `json:"command"`
}

// String formats the finding as `file:line:col rule message`.
func (f Finding) String() string {
	return fmt.Sprintf("%s:%d:%d %s %s", f.File, f.Span.Start.Line, f.Span.Start.Column, f.RuleID, f.Message)
}

// Linter checks Dockerfiles against a fixed rule set. It is safe for
// concurrent use; each call walks its file with its own scope.
type Linter struct {
	rules  []*config.Rule
	logger *slog.Logger
}

// New returns a Linter for rules. A nil logger discards output.
func New(rules []*config.Rule, logger *slog.Logger) *Linter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Linter{rules: rules, logger: logger}
}

// Check parses the Dockerfile read from r and returns the findings in source
// order. name is only used to label findings.
func (l *Linter) Check(name string, r io.Reader) ([]Finding, error) {
	logger := l.logger.With("file", name)

	file, err := dockerfile.Parse(r, dockerfile.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var (
		findings []Finding
		// names set by ENV in the current stage; only these guard rules
		envNames []string
	)
	err = file.Walk(func(inst *dockerfile.Instruction, scope *symbols.Table) error {
		if inst.Keyword == "FROM" {
			envNames = envNames[:0]
		}

		var (
			args []resolve.ResolvedArgument
			env  map[string]string
		)
		for _, rule := range l.rules {
			if !rule.AppliesTo(inst.Keyword) {
				continue
			}
			if args == nil {
				args = resolve.ResolveAll(inst.Args, scope, resolve.StripQuotes)
				env = resolve.Environment(scope, envNames)
			}
			for _, cmd := range rule.Pattern.Search(args, env) {
				logger.Debug("rule matched", "rule", rule.ID, "line", cmd.Span.Start.Line)
				findings = append(findings, Finding{
					File:        name,
					Span:        cmd.Span,
					RuleID:      rule.ID,
					Severity:    rule.Severity,
					Message:     rule.Message,
					Instruction: inst.Keyword,
					Command:     cmd.String(),
				})
			}
		}

		if inst.Keyword == "ENV" {
			for _, declared := range inst.Declared() {
				if !slices.Contains(envNames, declared) {
					envNames = append(envNames, declared)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}
