package shellparse

import (
	"strings"

	"github.com/krmcbride/runlint/pkg/tree"
)

// Lex splits shell text into words without building a syntax tree. It is the
// fallback for text the parser rejects, such as an unterminated `if`.
//
// Quotes and backslash escapes are honoured when looking for word
// boundaries. Unquoted control operators are emitted as separate tokens.
// Each word is then parsed on its own so that quoting and variable
// references are still represented; a word that does not parse becomes one
// plain literal.
func Lex(src string, origin tree.Position) []tree.RawArgument {
	var args []tree.RawArgument
	for _, tok := range lexTokens(src) {
		start := offsetPosition(src, tok.start, origin)
		text := src[tok.start:tok.end]
		if tok.operator {
			args = append(args, plain(text, start, offsetPosition(src, tok.end, origin)))
			continue
		}
		if arg, err := ParseWord(text, start); err == nil {
			args = append(args, arg)
			continue
		}
		args = append(args, plain(text, start, offsetPosition(src, tok.end, origin)))
	}
	return args
}

type token struct {
	start, end int
	operator   bool
}

func lexTokens(src string) []token {
	var toks []token
	start := -1
	var quote byte

	flush := func(end int) {
		if start >= 0 && end > start {
			toks = append(toks, token{start: start, end: end})
		}
		start = -1
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' && i+1 < len(src) {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\\' && i+1 < len(src):
			if src[i+1] == '\n' {
				flush(i)
				i++
				continue
			}
			if start < 0 {
				start = i
			}
			i++
		case c == '\'' || c == '"':
			if start < 0 {
				start = i
			}
			quote = c
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush(i)
		case c == ';' || c == '&' || c == '|':
			if isRedirectAmpersand(src, i) {
				if start < 0 {
					start = i
				}
				continue
			}
			flush(i)
			n := operatorLen(src[i:])
			toks = append(toks, token{start: i, end: i + n, operator: true})
			i += n - 1
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(src))
	return toks
}

func operatorLen(s string) int {
	for _, op := range []string{"&&", "||", "|&"} {
		if strings.HasPrefix(s, op) {
			return len(op)
		}
	}
	return 1
}

// isRedirectAmpersand reports whether the `&` at i belongs to a redirection
// such as `2>&1` or `&>file`.
func isRedirectAmpersand(src string, i int) bool {
	if src[i] != '&' {
		return false
	}
	if i > 0 && (src[i-1] == '>' || src[i-1] == '<') {
		return true
	}
	return i+1 < len(src) && src[i+1] == '>'
}

func plain(text string, start, end tree.Position) tree.RawArgument {
	span := tree.Span{Start: start, End: end}
	return tree.RawArgument{
		Fragments: []tree.Fragment{{Kind: tree.Literal, Text: text, Raw: text, Span: span}},
		Span:      span,
	}
}

// offsetPosition converts a byte offset in src to a file position.
func offsetPosition(src string, offset int, origin tree.Position) tree.Position {
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return translate(line, col, origin)
}
