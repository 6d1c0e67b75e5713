// Package resolve turns raw arguments into static values without executing
// anything, using the declarations recorded in a scope.
package resolve

import (
	"strings"

	"github.com/krmcbride/runlint/pkg/symbols"
	"github.com/krmcbride/runlint/pkg/tree"
)

// Status tells whether an argument could be statically determined.
type Status int

const (
	// Resolved arguments carry their full value.
	Resolved Status = iota
	// Unresolved arguments depend on something unknown; no partial value is kept.
	Unresolved
)

func (s Status) String() string {
	if s == Resolved {
		return "RESOLVED"
	}
	return "UNRESOLVED"
}

// QuoteMode selects whether quotes are removed from literals.
type QuoteMode int

const (
	// StripQuotes yields the value the shell would see.
	StripQuotes QuoteMode = iota
	// KeepQuotes keeps the quotes of the instruction's own literals.
	KeepQuotes
)

// Scope is what the resolver needs from a symbol table.
// *symbols.Table satisfies it.
type Scope interface {
	LastValue(name string) (symbols.Declaration, bool)
}

// ResolvedArgument is the outcome of resolving one raw argument.
// Value is only meaningful when Status is Resolved.
type ResolvedArgument struct {
	Status Status
	Value  string
	Source tree.RawArgument

	mode QuoteMode
}

// IsResolved reports whether the value is known.
func (r ResolvedArgument) IsResolved() bool {
	return r.Status == Resolved
}

// IsUnresolved reports whether the value depends on unknown input.
func (r ResolvedArgument) IsUnresolved() bool {
	return r.Status == Unresolved
}

// Span returns the source range of the argument.
func (r ResolvedArgument) Span() tree.Span {
	return r.Source.Span
}

func (r ResolvedArgument) String() string {
	if r.IsUnresolved() {
		return "<unresolved " + r.Source.Text() + ">"
	}
	return r.Value
}

// Resolve resolves arg against scope. A nil scope has no declarations.
//
// Literals contribute their text, variables the resolved value of their last
// visible declaration. A missing variable, a self-referencing chain or any
// run-time-only construct makes the whole argument Unresolved.
func Resolve(arg tree.RawArgument, scope Scope, mode QuoteMode) ResolvedArgument {
	r := resolver{
		scope:    scope,
		memo:     make(map[string]memoEntry),
		visiting: make(map[string]bool),
	}
	var sb strings.Builder
	if !r.fragments(arg.Fragments, mode, &sb) {
		return ResolvedArgument{Status: Unresolved, Source: arg, mode: mode}
	}
	return ResolvedArgument{Status: Resolved, Value: sb.String(), Source: arg, mode: mode}
}

// ResolveAll resolves every argument with the same scope and mode.
func ResolveAll(args []tree.RawArgument, scope Scope, mode QuoteMode) []ResolvedArgument {
	out := make([]ResolvedArgument, len(args))
	for i, arg := range args {
		out[i] = Resolve(arg, scope, mode)
	}
	return out
}

// Derive resolves a literal-only piece cut out of parent, using the quote
// mode parent was resolved with.
func Derive(parent ResolvedArgument, fragments []tree.Fragment, span tree.Span) ResolvedArgument {
	return Resolve(tree.RawArgument{Fragments: fragments, Span: span}, nil, parent.mode)
}

// Environment resolves the given names to their current values. Names that
// do not resolve are left out.
func Environment(scope Scope, names []string) map[string]string {
	env := make(map[string]string, len(names))
	for _, name := range names {
		ref := tree.RawArgument{Fragments: []tree.Fragment{tree.Var(name)}}
		if res := Resolve(ref, scope, StripQuotes); res.IsResolved() {
			env[name] = res.Value
		}
	}
	return env
}

type memoEntry struct {
	value string
	ok    bool
}

type resolver struct {
	scope    Scope
	memo     map[string]memoEntry
	visiting map[string]bool
}

func (r *resolver) fragments(fragments []tree.Fragment, mode QuoteMode, sb *strings.Builder) bool {
	for _, f := range fragments {
		if !r.fragment(f, mode, sb) {
			return false
		}
	}
	return true
}

func (r *resolver) fragment(f tree.Fragment, mode QuoteMode, sb *strings.Builder) bool {
	switch f.Kind {
	case tree.Literal:
		if mode == KeepQuotes {
			sb.WriteString(f.Raw)
		} else {
			sb.WriteString(f.Text)
		}
		return true
	case tree.Expandable:
		if mode == KeepQuotes {
			sb.WriteByte('"')
		}
		if !r.fragments(f.Parts, mode, sb) {
			return false
		}
		if mode == KeepQuotes {
			sb.WriteByte('"')
		}
		return true
	case tree.Variable:
		if !supportedModifier(f.Modifier) {
			return false
		}
		value, ok := r.variable(f.Name)
		if ok {
			sb.WriteString(value)
		}
		return ok
	case tree.Dynamic:
		return false
	}
	return false
}

// variable resolves the last visible value of name. Declaration values are
// always quote-stripped so that quotes are never duplicated in the result.
func (r *resolver) variable(name string) (string, bool) {
	if e, ok := r.memo[name]; ok {
		return e.value, e.ok
	}
	if r.visiting[name] || r.scope == nil {
		return "", false
	}
	decl, ok := r.scope.LastValue(name)
	if !ok {
		r.memo[name] = memoEntry{}
		return "", false
	}

	r.visiting[name] = true
	var sb strings.Builder
	ok = r.fragments(decl.Value.Fragments, StripQuotes, &sb)
	delete(r.visiting, name)

	e := memoEntry{ok: ok}
	if ok {
		e.value = sb.String()
	}
	r.memo[name] = e
	return e.value, e.ok
}

// supportedModifier lists the parameter expansions whose value is the
// variable's own value whenever the variable is set. Alternate-value forms
// (":+", "+") substitute something else and are never resolved.
func supportedModifier(op string) bool {
	switch op {
	case "", "-", ":-", "=", ":=", "?", ":?":
		return true
	}
	return false
}
