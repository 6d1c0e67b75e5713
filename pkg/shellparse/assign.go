package shellparse

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/krmcbride/runlint/pkg/tree"
)

// Assignment splits an argument of the form NAME=value. The value keeps the
// fragments and spans of the source; an empty value is a valid assignment.
// Appends (`NAME+=x`) and indexed assignments are not recognised.
func Assignment(arg tree.RawArgument) (name string, value tree.RawArgument, ok bool) {
	if len(arg.Fragments) == 0 {
		return "", tree.RawArgument{}, false
	}
	head := arg.Fragments[0]
	if head.Kind != tree.Literal || head.Quoted || head.Escaped {
		return "", tree.RawArgument{}, false
	}
	name, rest, found := strings.Cut(head.Text, "=")
	if !found || !syntax.ValidName(name) {
		return "", tree.RawArgument{}, false
	}

	valueStart := head.Span.Start.Shift(len(name) + 1)
	var fragments []tree.Fragment
	if rest != "" {
		fragments = append(fragments, tree.Fragment{
			Kind: tree.Literal,
			Text: rest,
			Raw:  rest,
			Span: tree.NewSpan(valueStart, len(rest)),
		})
	}
	fragments = append(fragments, arg.Fragments[1:]...)

	return name, tree.RawArgument{
		Fragments: fragments,
		Span:      tree.Span{Start: valueStart, End: arg.Span.End},
	}, true
}

// LeadingAssignments returns how many arguments at the start of a command
// are NAME=value assignments.
func LeadingAssignments(args []tree.RawArgument) int {
	n := 0
	for n < len(args) {
		if _, _, ok := Assignment(args[n]); !ok {
			break
		}
		n++
	}
	return n
}
