// Package split partitions a resolved argument list into the sub-commands a
// shell would run, cutting on control operators.
package split

import (
	"strings"

	"github.com/krmcbride/runlint/pkg/resolve"
	"github.com/krmcbride/runlint/pkg/tree"
)

// Operators that end a sub-command, longest first so that glued text is cut
// on the widest operator.
var operators = []string{"&&", "||", "|&", ";", "|", "&"}

// IsOperator reports whether s is exactly one control operator.
func IsOperator(s string) bool {
	for _, op := range operators {
		if s == op {
			return true
		}
	}
	return false
}

// SeparatedList holds the sub-commands of one instruction and the operators
// between them. len(Elements) == len(Separators)+1 always holds; sub-commands
// produced by leading, trailing or doubled operators are empty.
type SeparatedList struct {
	Elements   [][]resolve.ResolvedArgument
	Separators []resolve.ResolvedArgument
}

// Flatten interleaves elements and separators back into one list.
func (l SeparatedList) Flatten() []resolve.ResolvedArgument {
	var out []resolve.ResolvedArgument
	for i, elem := range l.Elements {
		out = append(out, elem...)
		if i < len(l.Separators) {
			out = append(out, l.Separators[i])
		}
	}
	return out
}

// NonEmpty returns the sub-commands holding at least one argument.
func (l SeparatedList) NonEmpty() [][]resolve.ResolvedArgument {
	var out [][]resolve.ResolvedArgument
	for _, elem := range l.Elements {
		if len(elem) > 0 {
			out = append(out, elem)
		}
	}
	return out
}

// Split scans args left to right and starts a new sub-command at every
// control operator.
//
// Only resolved arguments made of unquoted, unescaped literals can act as
// operators. Unresolved arguments are content even if they would expand to an
// operator at run time, and opaque blocks are never inspected. Operators glued
// to a literal word (`update;`, `a&&b`) are cut out, and the pieces get the
// exact source range they cover.
func Split(args []resolve.ResolvedArgument) SeparatedList {
	list := SeparatedList{Elements: [][]resolve.ResolvedArgument{{}}}
	cur := 0
	for _, arg := range args {
		for _, piece := range cut(arg) {
			if isSeparator(piece) {
				list.Separators = append(list.Separators, piece)
				list.Elements = append(list.Elements, []resolve.ResolvedArgument{})
				cur++
				continue
			}
			list.Elements[cur] = append(list.Elements[cur], piece)
		}
	}
	return list
}

func isSeparator(arg resolve.ResolvedArgument) bool {
	return arg.IsResolved() && !arg.Source.Opaque && arg.Source.IsPlainLiteral() && IsOperator(arg.Value)
}

// cut splits arg on operators found inside its unquoted literal fragments.
// Arguments that are not literal-only are returned untouched.
func cut(arg resolve.ResolvedArgument) []resolve.ResolvedArgument {
	if !arg.IsResolved() || arg.Source.Opaque || !arg.Source.IsLiteral() || isSeparator(arg) || !hasGluedOperator(arg.Source) {
		return []resolve.ResolvedArgument{arg}
	}

	var out []resolve.ResolvedArgument
	var piece []tree.Fragment
	flush := func() {
		if len(piece) == 0 {
			return
		}
		out = append(out, resolve.Derive(arg, piece, spanOf(piece)))
		piece = nil
	}

	for _, f := range arg.Source.Fragments {
		if f.Quoted || f.Escaped {
			piece = append(piece, f)
			continue
		}
		text := f.Text
		start := 0
		for i := 0; i < len(text); {
			op := operatorAt(text, i)
			if op == "" {
				i++
				continue
			}
			if i > start {
				piece = append(piece, sub(f, start, i))
			}
			flush()
			opFrag := sub(f, i, i+len(op))
			out = append(out, resolve.Derive(arg, []tree.Fragment{opFrag}, opFrag.Span))
			i += len(op)
			start = i
		}
		if start < len(text) {
			piece = append(piece, sub(f, start, len(text)))
		}
	}
	flush()
	return out
}

func hasGluedOperator(arg tree.RawArgument) bool {
	for _, f := range arg.Fragments {
		if f.Kind != tree.Literal || f.Quoted || f.Escaped {
			continue
		}
		for i := range len(f.Text) {
			if operatorAt(f.Text, i) != "" {
				return true
			}
		}
	}
	return false
}

// operatorAt returns the operator starting at text[i], or "". An ampersand
// that belongs to a redirection (`2>&1`, `&>file`, `<&3`) is not an operator.
func operatorAt(text string, i int) string {
	for _, op := range operators {
		if !strings.HasPrefix(text[i:], op) {
			continue
		}
		if op == "&" || op == "&&" {
			if i > 0 && (text[i-1] == '>' || text[i-1] == '<') {
				return ""
			}
			if op == "&" && i+1 < len(text) && text[i+1] == '>' {
				return ""
			}
		}
		return op
	}
	return ""
}

// sub returns the literal fragment covering text[from:to] of the plain
// literal f. Plain literals have identical raw and cooked text, so columns
// map one to one.
func sub(f tree.Fragment, from, to int) tree.Fragment {
	text := f.Text[from:to]
	return tree.Fragment{
		Kind: tree.Literal,
		Text: text,
		Raw:  text,
		Span: tree.NewSpan(f.Span.Start.Shift(from), len(text)),
	}
}

func spanOf(fragments []tree.Fragment) tree.Span {
	var span tree.Span
	for _, f := range fragments {
		span = span.Merge(f.Span)
	}
	return span
}
