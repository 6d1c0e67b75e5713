package dockerfile

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"

	"github.com/krmcbride/runlint/pkg/shellparse"
	"github.com/krmcbride/runlint/pkg/tree"
)

// shellWords parses instruction text as shell, falling back to the lexer
// for text the shell parser rejects.
func shellWords(body string, origin tree.Position, logger *slog.Logger) []tree.RawArgument {
	args, err := shellparse.Parse(body, origin)
	if err != nil {
		logger.Debug("shell parse failed, using lexer", "error", err)
		return shellparse.Lex(body, origin)
	}
	return args
}

func lexWords(body string, origin tree.Position) []tree.RawArgument {
	return shellparse.Lex(body, origin)
}

// execArgs turns the elements of a JSON array into quoted literals located
// in the instruction text.
func execArgs(values []string, text string, line int) []tree.RawArgument {
	args := make([]tree.RawArgument, 0, len(values))
	cursor := 0
	for _, v := range values {
		encoded := jsonString(v)
		start := tree.Position{Line: line, Column: 1}
		if i := strings.Index(text[cursor:], encoded); i >= 0 {
			start = offsetPosition(text, cursor+i, line)
			cursor += i + len(encoded)
		}
		span := tree.NewSpan(start, len(encoded))
		args = append(args, tree.RawArgument{
			Fragments: []tree.Fragment{{Kind: tree.Literal, Text: v, Raw: encoded, Quoted: true, Span: span}},
			Span:      span,
		})
	}
	return args
}

func jsonString(v string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return `"` + v + `"`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func offsetPosition(text string, offset, line int) tree.Position {
	before := text[:offset]
	return tree.Position{
		Line:   line + strings.Count(before, "\n"),
		Column: offset - strings.LastIndexByte(before, '\n'),
	}
}

func argDeclarations(cmd *instructions.ArgCommand, args []tree.RawArgument) []declaration {
	keys := make([]string, len(cmd.Args))
	for i, kv := range cmd.Args {
		keys[i] = kv.Key
	}
	return declarations(keys, args)
}

// envDeclarations also handles the legacy `ENV NAME value...` form, where
// everything after the name is the value.
func envDeclarations(cmd *instructions.EnvCommand, args []tree.RawArgument) []declaration {
	if len(cmd.Env) == 1 && len(args) > 0 && args[0].Text() == cmd.Env[0].Key {
		if _, _, ok := shellparse.Assignment(args[0]); !ok {
			value := joinWords(args[1:])
			return []declaration{{name: cmd.Env[0].Key, value: &value, site: args[0].Span.Start}}
		}
	}
	keys := make([]string, len(cmd.Env))
	for i, kv := range cmd.Env {
		keys[i] = kv.Key
	}
	return declarations(keys, args)
}

// declarations pairs the keys buildkit found with the arguments declaring
// them. `NAME=value` declares a value, a bare `NAME` declares none.
func declarations(keys []string, args []tree.RawArgument) []declaration {
	var decls []declaration
	next := 0
	for _, key := range keys {
		for next < len(args) {
			arg := args[next]
			next++
			if name, value, ok := shellparse.Assignment(arg); ok && name == key {
				decls = append(decls, declaration{name: key, value: &value, site: arg.Span.Start})
				break
			}
			if arg.IsPlainLiteral() && arg.Text() == key {
				decls = append(decls, declaration{name: key, site: arg.Span.Start})
				break
			}
		}
	}
	return decls
}

// joinWords merges words into one value, keeping a single space between
// them.
func joinWords(words []tree.RawArgument) tree.RawArgument {
	var joined tree.RawArgument
	for i, w := range words {
		if i > 0 {
			gap := tree.Span{Start: words[i-1].Span.End, End: w.Span.Start}
			joined.Fragments = append(joined.Fragments, tree.Fragment{Kind: tree.Literal, Text: " ", Raw: " ", Span: gap})
		}
		joined.Fragments = append(joined.Fragments, w.Fragments...)
		joined.Span = joined.Span.Merge(w.Span)
	}
	return joined
}
