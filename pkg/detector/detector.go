package detector

import (
	"fmt"
	"slices"
	"strings"

	"github.com/krmcbride/runlint/pkg/resolve"
	"github.com/krmcbride/runlint/pkg/shellparse"
	"github.com/krmcbride/runlint/pkg/split"
	"github.com/krmcbride/runlint/pkg/symbols"
	"github.com/krmcbride/runlint/pkg/tree"
)

// CommandRule defines what commands and patterns to detect
type CommandRule struct {
	BlockedCommand  string   // Primary command to block (git, aws, kubectl)
	BlockedPatterns []string // Subcommand patterns to block, "*" blocks every use
}

type compiledRule struct {
	CommandRule
	patterns []*Pattern
}

// CommandDetector decides whether a shell expression runs a blocked command.
// It is not safe for concurrent use.
type CommandDetector struct {
	rules        []compiledRule
	issues       []string
	maxDepth     int
	currentDepth int
}

// NewCommandDetector compiles rules into patterns. Each word of a blocked
// pattern is a glob that must appear, in order, after the command.
func NewCommandDetector(rules []CommandRule, maxDepth int) (*CommandDetector, error) {
	if maxDepth <= 0 {
		maxDepth = 10 // Default safe recursion limit
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{CommandRule: rule}
		for _, blocked := range rule.BlockedPatterns {
			p, err := compileBlockedPattern(rule.BlockedCommand, blocked)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.BlockedCommand, err)
			}
			cr.patterns = append(cr.patterns, p)
		}
		compiled = append(compiled, cr)
	}

	return &CommandDetector{
		rules:    compiled,
		maxDepth: maxDepth,
	}, nil
}

func compileBlockedPattern(command, blocked string) (*Pattern, error) {
	b := New().With(IsCommand(command))
	if strings.TrimSpace(blocked) == "*" {
		return b.Build()
	}
	words := strings.Fields(blocked)
	if len(words) == 0 {
		return nil, ErrEmptyPattern
	}
	for _, word := range words {
		g, err := Glob(word)
		if err != nil {
			return nil, err
		}
		b.WithOptionalRepeating(Any()).With(g)
	}
	return b.Build()
}

// GetIssues returns all detected issues (returns a copy to prevent aliasing)
func (d *CommandDetector) GetIssues() []string {
	if len(d.issues) == 0 {
		return nil
	}
	result := make([]string, len(d.issues))
	copy(result, d.issues)
	return result
}

// ShouldBlockShellExpr determines if a command should be blocked.
// Returns true if command should be BLOCKED, false if allowed.
func (d *CommandDetector) ShouldBlockShellExpr(shellExpr string) bool {
	// Reset state for new analysis
	d.currentDepth = 0
	d.issues = d.issues[:0]
	return d.analyzeShellExprRecursive(shellExpr)
}

// analyzeShellExprRecursive performs analysis with recursion tracking
func (d *CommandDetector) analyzeShellExprRecursive(shellExpr string) bool {
	d.currentDepth++
	if d.currentDepth > d.maxDepth {
		d.addIssue("Maximum nesting depth exceeded - command too complex")
		return true // BLOCK
	}
	defer func() { d.currentDepth-- }()

	args, err := shellparse.Parse(shellExpr, tree.Position{Line: 1, Column: 1})
	if err != nil {
		// If we can't understand it, don't run it
		d.addIssue("Unable to parse shell expression: " + err.Error())
		return true // BLOCK
	}

	list := split.Split(resolveSequentially(args))
	return slices.ContainsFunc(list.NonEmpty(), d.shouldBlockCommand) || d.checkPipedShell(list)
}

// resolveSequentially resolves args in order, recording NAME=value
// assignments found at command position so later references see them.
func resolveSequentially(args []tree.RawArgument) []resolve.ResolvedArgument {
	scope := symbols.NewTable()
	out := make([]resolve.ResolvedArgument, 0, len(args))
	atCommand := true
	for _, arg := range args {
		res := resolve.Resolve(arg, scope, resolve.StripQuotes)
		out = append(out, res)
		if atCommand {
			if name, value, ok := shellparse.Assignment(arg); ok {
				scope.Declare(name, &value, false, arg.Span.Start)
				continue
			}
		}
		atCommand = (arg.IsPlainLiteral() && split.IsOperator(res.Value)) ||
			(atCommand && res.IsResolved() && res.Value == "export")
	}
	return out
}

// shouldBlockCommand evaluates one simple command. It checks for:
// - a command word that cannot be resolved
// - patterns of the configured rules, anywhere in the command
// - rule commands followed by arguments that cannot be resolved
// - shell code passed to interpreters and eval
func (d *CommandDetector) shouldBlockCommand(args []resolve.ResolvedArgument) bool {
	head := commandIndex(args)
	if head == len(args) {
		return false // ALLOW: assignments only
	}
	if args[head].IsUnresolved() {
		d.addIssue("Command uses dynamic substitution - unable to verify safety")
		return true // BLOCK
	}

	for _, rule := range d.rules {
		if d.checkRule(args, rule) {
			return true // BLOCK
		}
	}

	return d.checkNestedShell(args[head:])
}

// commandIndex returns the index of the first argument after any leading
// NAME=value assignments.
func commandIndex(args []resolve.ResolvedArgument) int {
	raw := make([]tree.RawArgument, len(args))
	for i, arg := range args {
		raw[i] = arg.Source
	}
	return shellparse.LeadingAssignments(raw)
}

func (d *CommandDetector) checkRule(args []resolve.ResolvedArgument, rule compiledRule) bool {
	for _, p := range rule.patterns {
		if len(p.SearchWithoutSplit(args, nil)) > 0 {
			d.addIssue("Blocked " + rule.BlockedCommand + " pattern detected")
			return true
		}
	}

	if len(rule.patterns) == 0 {
		return false
	}
	isRuleCommand := IsCommand(rule.BlockedCommand)
	for i, arg := range args {
		if !arg.IsResolved() || !isRuleCommand(arg.Value) {
			continue
		}
		if slices.ContainsFunc(args[i+1:], resolve.ResolvedArgument.IsUnresolved) {
			d.addIssue(rule.BlockedCommand + " uses dynamic subcommand")
			return true
		}
	}
	return false
}

// checkNestedShell analyses code handed to `sh -c` (also behind wrappers such
// as xargs or sudo) and to eval.
func (d *CommandDetector) checkNestedShell(args []resolve.ResolvedArgument) bool {
	if args[0].Value == "eval" {
		if len(args) < 2 {
			return false
		}
		parts := make([]string, 0, len(args)-1)
		for _, arg := range args[1:] {
			if arg.IsUnresolved() {
				d.addIssue("eval of dynamic content - unable to verify safety")
				return true
			}
			parts = append(parts, arg.Value)
		}
		return d.analyzeCode(strings.Join(parts, " "))
	}

	isShell := IsShellInterpreter()
	for i, arg := range args {
		if !arg.IsResolved() || !isShell(arg.Value) {
			continue
		}
		for j := i + 1; j < len(args)-1; j++ {
			if args[j].IsResolved() && isCommandStringFlag(args[j].Value) {
				return d.analyzeNested(args[j+1])
			}
		}
	}
	return false
}

// checkPipedShell analyses what is piped into a shell reading its script
// from stdin. Only `echo` of static words can be verified; anything else,
// such as `base64 -d payload | sh` or `curl ... | bash`, is blocked.
func (d *CommandDetector) checkPipedShell(list split.SeparatedList) bool {
	for i, sep := range list.Separators {
		if sep.Value != "|" && sep.Value != "|&" {
			continue
		}
		if !readsScriptFromStdin(list.Elements[i+1]) {
			continue
		}
		code, ok := echoedCode(list.Elements[i])
		if !ok {
			d.addIssue("Shell interpreter runs piped input - unable to verify safety")
			return true
		}
		if d.analyzeCode(code) {
			return true
		}
	}
	return false
}

// readsScriptFromStdin reports whether args start a shell, directly or
// through a wrapper like sudo, without a -c script or a script file.
func readsScriptFromStdin(args []resolve.ResolvedArgument) bool {
	head := commandIndex(args)
	if head < len(args) && args[head].IsResolved() && slices.Contains(stdinWrappers, normalizeCommand(args[head].Value)) {
		head++
		for head < len(args) && args[head].IsResolved() && strings.HasPrefix(args[head].Value, "-") {
			head++
		}
	}
	if head >= len(args) || args[head].IsUnresolved() || !IsShellInterpreter()(args[head].Value) {
		return false
	}
	for _, arg := range args[head+1:] {
		switch {
		case arg.IsUnresolved():
			return false
		case arg.Value == "-s" || arg.Value == "-":
			return true
		case isCommandStringFlag(arg.Value), !strings.HasPrefix(arg.Value, "-"):
			return false
		}
	}
	return true
}

var stdinWrappers = []string{"sudo", "env", "exec", "nohup", "command", "time"}

// echoedCode returns the text written by a plain `echo` of static words.
func echoedCode(args []resolve.ResolvedArgument) (string, bool) {
	head := commandIndex(args)
	if head >= len(args) || args[head].IsUnresolved() || normalizeCommand(args[head].Value) != "echo" {
		return "", false
	}
	words := args[head+1:]
	if len(words) > 0 && words[0].IsResolved() && words[0].Value == "-n" {
		words = words[1:]
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		// -e and friends turn escapes into arbitrary text
		if w.IsUnresolved() || strings.HasPrefix(w.Value, "-") || strings.Contains(w.Value, `\`) {
			return "", false
		}
		parts = append(parts, w.Value)
	}
	return strings.Join(parts, " "), true
}

func (d *CommandDetector) analyzeNested(script resolve.ResolvedArgument) bool {
	if script.IsUnresolved() {
		d.addIssue("Shell interpreter runs dynamic content - unable to verify safety")
		return true
	}
	return d.analyzeCode(script.Value)
}

func (d *CommandDetector) analyzeCode(code string) bool {
	if d.analyzeShellExprRecursive(code) {
		d.addIssue("Blocked command found in string: " + code)
		return true
	}
	return false
}

// isCommandStringFlag matches `-c` and clustered short flags such as `-lc`.
func isCommandStringFlag(flag string) bool {
	if !strings.HasPrefix(flag, "-") || strings.HasPrefix(flag, "--") {
		return false
	}
	return strings.Contains(flag[1:], "c")
}

func (d *CommandDetector) addIssue(issue string) {
	d.issues = append(d.issues, issue)
}
