package detector

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// Predicate tests the resolved value of one argument.
type Predicate func(string) bool

// Shell interpreter names
var shellInterpreters = []string{"sh", "bash", "zsh", "ksh", "fish", "dash", "ash", "csh", "tcsh"}

// Eval-like commands that execute their arguments as code
var evalCommands = []string{"eval", "source", "."}

// Equals matches exactly s.
func Equals(s string) Predicate {
	return func(v string) bool { return v == s }
}

// OneOf matches any of values.
func OneOf(values ...string) Predicate {
	set := slices.Clone(values)
	return func(v string) bool { return slices.Contains(set, v) }
}

// Prefix matches values starting with p.
func Prefix(p string) Predicate {
	return func(v string) bool { return strings.HasPrefix(v, p) }
}

// IsFlag matches flag-shaped tokens (`-x`, `--name`, `--name=value`).
func IsFlag() Predicate {
	return Prefix("-")
}

// Any matches every resolved value.
func Any() Predicate {
	return func(string) bool { return true }
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(v string) bool { return !p(v) }
}

// And matches when every predicate matches.
func And(ps ...Predicate) Predicate {
	return func(v string) bool {
		for _, p := range ps {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches.
func Or(ps ...Predicate) Predicate {
	return func(v string) bool {
		for _, p := range ps {
			if p(v) {
				return true
			}
		}
		return false
	}
}

// Glob matches values against a shell-style wildcard pattern such as `delete-*`.
func Glob(pattern string) (Predicate, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return g.Match, nil
}

// MustGlob is like Glob but panics on an invalid pattern.
func MustGlob(pattern string) Predicate {
	p, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Regexp matches values containing a match of expr.
func Regexp(expr string) (Predicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regexp %q: %w", expr, err)
	}
	return re.MatchString, nil
}

// IsCommand matches name however the command is invoked: `git`,
// `/usr/bin/git`, `./git` or `git.exe`.
func IsCommand(name string) Predicate {
	return func(v string) bool { return isMatchingCommand(v, name) }
}

// IsShellInterpreter matches sh, bash and the other common shells.
func IsShellInterpreter() Predicate {
	return func(v string) bool { return slices.Contains(shellInterpreters, normalizeCommand(v)) }
}

// IsEvalCommand matches commands that run their arguments as shell code.
func IsEvalCommand() Predicate {
	return func(v string) bool { return slices.Contains(evalCommands, v) }
}

// FlagWithValue matches the single-token form `name=value` of a flag whose
// value satisfies value.
func FlagWithValue(name string, value Predicate) Predicate {
	return func(v string) bool {
		rest, ok := strings.CutPrefix(v, name+"=")
		return ok && value(rest)
	}
}

// normalizeCommand extracts the base command name from a full path.
// Handles various path formats:
//   - Full paths: /usr/bin/git -> git
//   - Relative paths: ./git -> git
//   - Windows paths with .exe: git.exe -> git
func normalizeCommand(cmd string) string {
	base := path.Base(cmd)
	return strings.TrimSuffix(base, ".exe")
}

// isMatchingCommand determines if a command string matches a rule's command.
func isMatchingCommand(cmd, ruleCmd string) bool {
	if cmd == ruleCmd {
		return true
	}

	// Examples: /usr/bin/git, ./git, C:\bin\git
	if strings.HasSuffix(cmd, "/"+ruleCmd) || strings.HasSuffix(cmd, "\\"+ruleCmd) {
		return true
	}

	if strings.HasSuffix(cmd, ".exe") {
		return isMatchingCommand(strings.TrimSuffix(cmd, ".exe"), ruleCmd)
	}

	return normalizeCommand(cmd) == ruleCmd
}
