package detector

import (
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/krmcbride/runlint/pkg/resolve"
	"github.com/krmcbride/runlint/pkg/split"
	"github.com/krmcbride/runlint/pkg/tree"
)

// Command is one match: the arguments consumed by the positional steps and
// the source range they cover.
type Command struct {
	Arguments []resolve.ResolvedArgument
	Span      tree.Span
}

// Values returns the resolved values of the matched arguments. Unresolved
// arguments contribute an empty string.
func (c Command) Values() []string {
	out := make([]string, len(c.Arguments))
	for i, arg := range c.Arguments {
		out[i] = arg.Value
	}
	return out
}

// String renders the match as a shell-quoted command line.
func (c Command) String() string {
	words := make([]string, len(c.Arguments))
	for i, arg := range c.Arguments {
		words[i] = arg.String()
	}
	return shellquote.Join(words...)
}

// Search splits args into sub-commands and searches each of them.
// env holds the environment consulted by WithoutEnv steps; it may be nil.
func (p *Pattern) Search(args []resolve.ResolvedArgument, env map[string]string) []Command {
	var out []Command
	for _, sub := range split.Split(args).Elements {
		out = append(out, p.SearchWithoutSplit(sub, env)...)
	}
	return out
}

// SearchWithoutSplit searches args as one sub-command. Start offsets are
// tried in increasing order; after a match the scan resumes right after it,
// so matches never overlap.
func (p *Pattern) SearchWithoutSplit(args []resolve.ResolvedArgument, env map[string]string) []Command {
	if p.excludedBy(env) {
		return nil
	}
	var out []Command
	for i := 0; i < len(args); {
		n, ok := p.matchAt(args, i)
		if !ok || n == 0 {
			i++
			continue
		}
		window := args[i : i+n]
		if !p.windowContains(window) {
			i++
			continue
		}
		out = append(out, newCommand(window))
		i += n
	}
	return out
}

func newCommand(window []resolve.ResolvedArgument) Command {
	cmd := Command{Arguments: make([]resolve.ResolvedArgument, len(window))}
	copy(cmd.Arguments, window)
	for _, arg := range window {
		cmd.Span = cmd.Span.Merge(arg.Span())
	}
	return cmd
}

func (p *Pattern) excludedBy(env map[string]string) bool {
	for _, g := range p.guards {
		if v, ok := env[g.env]; ok && g.pred(v) {
			return true
		}
	}
	return false
}

func (p *Pattern) windowContains(window []resolve.ResolvedArgument) bool {
	for _, c := range p.contains {
		found := false
		for _, arg := range window {
			if arg.IsResolved() && c.pred(arg.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// matchAt runs the positional steps from offset start and returns how many
// arguments they consumed.
func (p *Pattern) matchAt(args []resolve.ResolvedArgument, start int) (int, bool) {
	pos := start
	for k, s := range p.positional {
		switch s.kind {
		case stepFixed:
			if pos >= len(args) || !s.accepts(args[pos]) {
				return 0, false
			}
			pos++
		case stepNot:
			if pos < len(args) && (args[pos].IsUnresolved() || s.pred(args[pos].Value)) {
				return 0, false
			}
		case stepOptional:
			if pos < len(args) && s.accepts(args[pos]) {
				pos++
			}
		case stepOptionalRepeating, stepOptionalRepeatingExcept:
			for pos < len(args) && s.accepts(args[pos]) && !p.successorAccepts(k, args[pos]) {
				pos++
			}
		case stepFlagFollowedBy:
			n := s.flagValue(args[pos:])
			if n == 0 {
				return 0, false
			}
			pos += n
		case stepUnordered:
			n, ok := s.unordered(args[pos:])
			if !ok {
				return 0, false
			}
			pos += n
		}
	}
	return pos - start, true
}

// successorAccepts reports whether the positional step after k would take
// arg. A following NotWith counts as taking the arguments it rejects, so
// that a repetition never swallows them.
func (p *Pattern) successorAccepts(k int, arg resolve.ResolvedArgument) bool {
	if k+1 >= len(p.positional) {
		return false
	}
	next := p.positional[k+1]
	switch next.kind {
	case stepNot:
		return arg.IsResolved() && next.pred(arg.Value)
	case stepFlagFollowedBy:
		return arg.IsResolved() && next.isFlagName(arg.Value)
	case stepUnordered:
		return arg.IsResolved() && next.isOptionName(arg.Value)
	default:
		return next.accepts(arg)
	}
}

// accepts reports whether a consuming step takes arg.
func (s step) accepts(arg resolve.ResolvedArgument) bool {
	if s.argPred != nil {
		return s.argPred(arg)
	}
	if arg.IsUnresolved() {
		return s.includeUnresolved && (s.kind == stepOptionalRepeating || s.pred(""))
	}
	if s.kind == stepOptionalRepeatingExcept {
		return !s.pred(arg.Value)
	}
	return s.pred(arg.Value)
}

func (s step) isFlagName(v string) bool {
	for _, name := range s.names {
		if v == name || strings.HasPrefix(v, name+"=") {
			return true
		}
	}
	return false
}

// flagValue matches `--name=value` or `--name value` at the start of args
// and returns the number of arguments used, or 0.
func (s step) flagValue(args []resolve.ResolvedArgument) int {
	if len(args) == 0 || args[0].IsUnresolved() {
		return 0
	}
	flag := args[0].Value
	for _, name := range s.names {
		if flag == name {
			if len(args) > 1 && args[1].IsResolved() && s.pred(args[1].Value) {
				return 2
			}
			return 0
		}
		if FlagWithValue(name, s.pred)(flag) {
			return 1
		}
	}
	return 0
}

// unordered matches the options of a stepUnordered group in any order and
// returns the number of arguments used.
func (s step) unordered(args []resolve.ResolvedArgument) (int, bool) {
	seen := make([]bool, len(s.options))
	pos := 0
	for pos < len(args) && slices.Contains(seen, false) && args[pos].IsResolved() {
		n := 0
		for i, o := range s.options {
			if seen[i] {
				continue
			}
			if n = o.match(args[pos:]); n > 0 {
				seen[i] = true
				break
			}
		}
		if n == 0 {
			if s.isOptionName(args[pos].Value) {
				break
			}
			n = 1
		}
		pos += n
	}

	for i, o := range s.options {
		if !seen[i] && !o.Optional {
			return 0, false
		}
	}
	return pos, true
}

func (s step) isOptionName(v string) bool {
	return slices.ContainsFunc(s.options, func(o Option) bool {
		return step{names: o.Names}.isFlagName(v)
	})
}

// match returns the number of arguments the option takes at the start of
// args, or 0.
func (o Option) match(args []resolve.ResolvedArgument) int {
	if len(args) == 0 || args[0].IsUnresolved() {
		return 0
	}
	if o.Value == nil {
		if slices.Contains(o.Names, args[0].Value) {
			return 1
		}
		return 0
	}
	return step{pred: o.Value, names: o.Names}.flagValue(args)
}
