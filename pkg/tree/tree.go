// Package tree provides the syntax-tree types consumed by the analysis core:
// source positions, argument fragments and raw arguments.
package tree

import "fmt"

// Position is a 1-based line/column location in a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p comes strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// IsValid reports whether the position points somewhere in a file.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Shift moves the position right by n columns on the same line.
func (p Position) Shift(n int) Position {
	return Position{Line: p.Line, Column: p.Column + n}
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a source range. End is exclusive.
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// NewSpan returns the span starting at start and covering n columns on one line.
func NewSpan(start Position, n int) Span {
	return Span{Start: start, End: start.Shift(n)}
}

// Merge returns the smallest span covering both s and o.
// An invalid (zero) span is ignored.
func (s Span) Merge(o Span) Span {
	if !s.Start.IsValid() {
		return o
	}
	if !o.Start.IsValid() {
		return s
	}
	merged := s
	if o.Start.Before(merged.Start) {
		merged.Start = o.Start
	}
	if merged.End.Before(o.End) {
		merged.End = o.End
	}
	return merged
}

// Overlaps reports whether the two spans share at least one column.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

func (s Span) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// FragmentKind tags the variant held by a Fragment.
type FragmentKind int

const (
	// Literal is plain or single-quoted text.
	Literal FragmentKind = iota
	// Variable is a $NAME or ${NAME...} reference.
	Variable
	// Expandable is a double-quoted string holding nested fragments.
	Expandable
	// Dynamic is anything whose value only exists at run time:
	// command substitution, arithmetic, unsupported parameter operations.
	Dynamic
)

func (k FragmentKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Variable:
		return "variable"
	case Expandable:
		return "expandable"
	case Dynamic:
		return "dynamic"
	}
	return fmt.Sprintf("FragmentKind(%d)", int(k))
}

// Fragment is one piece of a raw argument. Which fields are meaningful
// depends on Kind:
//
//	Literal:    Text, Raw, Quoted, Escaped
//	Variable:   Name, Modifier, Default, Raw
//	Expandable: Parts, Raw
//	Dynamic:    Raw
type Fragment struct {
	Kind FragmentKind
	Span Span

	// Text is the literal value with quotes and escapes removed.
	Text string
	// Raw is the source text of the fragment.
	Raw string
	// Quoted is set for single-quoted literals.
	Quoted bool
	// Escaped is set when the literal contained a backslash escape.
	Escaped bool

	// Name is the referenced variable.
	Name string
	// Modifier is the parameter expansion operator (":-", "+", ...), if any.
	Modifier string
	// Default is the word following Modifier.
	Default []Fragment

	// Parts holds the fragments of an Expandable string.
	Parts []Fragment
}

// RawArgument is one whitespace-delimited source token.
type RawArgument struct {
	Fragments []Fragment
	Span      Span
	// Opaque marks a literal block (heredoc body) that must never be
	// inspected for shell operators.
	Opaque bool
}

// Text returns the source text of the argument.
func (a RawArgument) Text() string {
	return RawText(a.Fragments)
}

// IsPlainLiteral reports whether every fragment is an unquoted, unescaped literal.
func (a RawArgument) IsPlainLiteral() bool {
	for _, f := range a.Fragments {
		if f.Kind != Literal || f.Quoted || f.Escaped {
			return false
		}
	}
	return true
}

// IsLiteral reports whether the argument is made of literal fragments only,
// quoted or not.
func (a RawArgument) IsLiteral() bool {
	for _, f := range a.Fragments {
		if f.Kind != Literal {
			return false
		}
	}
	return true
}

// RawText concatenates the source text of the fragments.
func RawText(fragments []Fragment) string {
	var n int
	for _, f := range fragments {
		n += len(f.Raw)
	}
	b := make([]byte, 0, n)
	for _, f := range fragments {
		b = append(b, f.Raw...)
	}
	return string(b)
}
