package tree

import "strings"

// The helpers below build arguments by hand. Fragments are laid out left to
// right on a single line starting at the given position, so spans stay
// consistent with the raw text.

// Lit returns an unquoted literal fragment.
func Lit(text string) Fragment {
	return Fragment{Kind: Literal, Text: text, Raw: text}
}

// Escaped returns a backslash-escaped literal fragment, e.g. Escaped(";") for `\;`.
func Escaped(text string) Fragment {
	return Fragment{Kind: Literal, Text: text, Raw: `\` + text, Escaped: true}
}

// Quoted returns a single-quoted literal fragment.
func Quoted(text string) Fragment {
	return Fragment{Kind: Literal, Text: text, Raw: "'" + text + "'", Quoted: true}
}

// Var returns a $name variable fragment.
func Var(name string) Fragment {
	return Fragment{Kind: Variable, Name: name, Raw: "$" + name}
}

// VarWith returns a ${name<modifier>default} variable fragment.
func VarWith(name, modifier string, def ...Fragment) Fragment {
	return Fragment{
		Kind:     Variable,
		Name:     name,
		Modifier: modifier,
		Default:  def,
		Raw:      "${" + name + modifier + RawText(def) + "}",
	}
}

// Str returns a double-quoted expandable string fragment.
func Str(parts ...Fragment) Fragment {
	return Fragment{Kind: Expandable, Parts: parts, Raw: `"` + RawText(parts) + `"`}
}

// Cmd returns a dynamic command-substitution fragment for the given source.
func Cmd(src string) Fragment {
	return Fragment{Kind: Dynamic, Raw: "$(" + src + ")"}
}

// Word assembles fragments into an argument starting at pos and assigns
// each fragment its span.
func Word(pos Position, fragments ...Fragment) RawArgument {
	laid := layout(pos, fragments)
	return RawArgument{Fragments: laid, Span: NewSpan(pos, len(RawText(laid)))}
}

// Words builds one literal argument per whitespace-separated field of line,
// positioned as they appear on the given line number.
func Words(line int, text string) []RawArgument {
	var args []RawArgument
	col := 1
	for _, field := range strings.Split(text, " ") {
		if field != "" {
			args = append(args, Word(Position{Line: line, Column: col}, Lit(field)))
		}
		col += len(field) + 1
	}
	return args
}

func layout(pos Position, fragments []Fragment) []Fragment {
	out := make([]Fragment, len(fragments))
	col := pos.Column
	for i, f := range fragments {
		start := Position{Line: pos.Line, Column: col}
		if f.Kind == Expandable {
			// skip the opening quote
			f.Parts = layout(start.Shift(1), f.Parts)
		}
		f.Span = NewSpan(start, len(f.Raw))
		out[i] = f
		col += len(f.Raw)
	}
	return out
}
