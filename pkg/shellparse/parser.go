// Package shellparse provides shell command parsing utilities. It turns shell
// text into the flat argument list analysed by the resolver, splitter and
// pattern matcher.
package shellparse

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/krmcbride/runlint/pkg/tree"
)

// ErrNotAWord is returned by ParseWord when the text is not exactly one word.
var ErrNotAWord = errors.New("not a single shell word")

// Parse parses shell text and flattens it into raw arguments.
//
// Words become arguments, control operators (`&&`, `||`, `|`, `|&`, `;`,
// `&`) become operator tokens with their own spans, redirections become an
// operator token followed by their target, and heredoc bodies become opaque
// arguments. The reserved words and grouping tokens of compound commands
// become `;` separators. Positions are reported relative to origin, the location
// of the first byte of src in the enclosing file.
func Parse(src string, origin tree.Position) ([]tree.RawArgument, error) {
	parser := syntax.NewParser()
	file, err := parser.Parse(strings.NewReader(src), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	f := &flattener{src: src, origin: origin}
	f.stmts(file.Stmts)
	return f.args, nil
}

// ParseWord parses text holding exactly one shell word, such as the value
// of a variable declaration.
func ParseWord(text string, origin tree.Position) (tree.RawArgument, error) {
	// A leading no-op command keeps `a=b` from being read as an assignment.
	const prefix = ": "
	shifted := tree.Position{Line: origin.Line, Column: origin.Column - len(prefix)}

	src := prefix + text
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil {
		return tree.RawArgument{}, fmt.Errorf("failed to parse word: %w", err)
	}
	if len(file.Stmts) != 1 {
		return tree.RawArgument{}, ErrNotAWord
	}
	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) != 2 || len(file.Stmts[0].Redirs) > 0 {
		return tree.RawArgument{}, ErrNotAWord
	}

	f := &flattener{src: src, origin: shifted}
	return f.word(call.Args[1]), nil
}

type flattener struct {
	src    string
	origin tree.Position
	args   []tree.RawArgument
}

func (f *flattener) stmts(stmts []*syntax.Stmt) {
	for i, s := range stmts {
		f.stmt(s)
		if i+1 < len(stmts) && !s.Semicolon.IsValid() {
			f.newline(s.End())
		}
	}
}

func (f *flattener) stmt(s *syntax.Stmt) {
	if s.Negated {
		f.keyword(s.Pos(), "!")
	}

	switch cmd := s.Cmd.(type) {
	case nil:
		f.redirects(s.Redirs)
	case *syntax.CallExpr:
		f.call(cmd, s.Redirs)
	case *syntax.BinaryCmd:
		f.stmt(cmd.X)
		f.operator(cmd.OpPos, cmd.Op.String())
		f.stmt(cmd.Y)
		f.redirects(s.Redirs)
	case *syntax.DeclClause:
		f.decl(cmd)
		f.redirects(s.Redirs)
	case *syntax.LetClause, *syntax.TestClause, *syntax.ArithmCmd:
		f.lexNode(cmd)
		f.redirects(s.Redirs)
	default:
		f.compound(cmd)
		f.redirects(s.Redirs)
	}

	if s.Semicolon.IsValid() {
		op := ";"
		switch {
		case s.Coprocess:
			op = "|&"
		case s.Background:
			op = "&"
		}
		f.operator(s.Semicolon, op)
	}
}

// compound flattens the statements nested in a compound command. Reserved
// words and grouping tokens become separators, so every nested command
// starts a sub-command of its own. Loop and case headers stay words.
func (f *flattener) compound(cmd syntax.Command) {
	switch c := cmd.(type) {
	case *syntax.Subshell:
		f.keyword(c.Lparen, "(")
		f.stmts(c.Stmts)
		f.keyword(c.Rparen, ")")
	case *syntax.Block:
		f.keyword(c.Lbrace, "{")
		f.stmts(c.Stmts)
		f.keyword(c.Rbrace, "}")
	case *syntax.IfClause:
		f.ifClause(c)
		f.keyword(c.FiPos, "fi")
	case *syntax.WhileClause:
		word := "while"
		if c.Until {
			word = "until"
		}
		f.keyword(c.WhilePos, word)
		f.stmts(c.Cond)
		f.keyword(c.DoPos, "do")
		f.stmts(c.Do)
		f.keyword(c.DonePos, "done")
	case *syntax.ForClause:
		do, done := "do", "done"
		if c.Braces {
			do, done = "{", "}"
		}
		if _, ok := c.Loop.(*syntax.CStyleLoop); ok {
			f.keyword(c.ForPos, f.slice(c.ForPos, c.Loop.End()))
		} else {
			f.lexRange(c.ForPos, c.DoPos)
		}
		f.keyword(c.DoPos, do)
		f.stmts(c.Do)
		f.keyword(c.DonePos, done)
	case *syntax.CaseClause:
		in, esac := "in", "esac"
		if c.Braces {
			in, esac = "{", "}"
		}
		f.lexRange(c.Case, c.Word.End())
		f.keyword(c.In, in)
		for _, item := range c.Items {
			if len(item.Patterns) > 0 {
				f.keyword(item.Patterns[0].Pos(), f.slice(item.Patterns[0].Pos(), item.Patterns[len(item.Patterns)-1].End())+")")
			}
			f.stmts(item.Stmts)
			if item.OpPos.IsValid() {
				f.keyword(item.OpPos, item.Op.String())
			}
		}
		f.keyword(c.Esac, esac)
	case *syntax.TimeClause:
		f.keyword(c.Time, "time")
		if c.Stmt != nil {
			f.stmt(c.Stmt)
		}
	case *syntax.CoprocClause:
		f.keyword(c.Coproc, "coproc")
		if c.Stmt != nil {
			f.stmt(c.Stmt)
		}
	case *syntax.FuncDecl:
		f.keyword(c.Pos(), strings.TrimSpace(f.slice(c.Pos(), c.Body.Pos())))
		f.stmt(c.Body)
	default:
		f.lexNode(cmd)
	}
}

// ifClause flattens an if clause and its elif and else branches. The
// closing fi is shared and emitted by the caller.
func (f *flattener) ifClause(c *syntax.IfClause) {
	word := "if"
	switch {
	case !c.ThenPos.IsValid():
		word = "else"
	case f.slice(c.Position, advance(c.Position, 4)) == "elif":
		word = "elif"
	}
	f.keyword(c.Position, word)
	f.stmts(c.Cond)
	f.keyword(c.ThenPos, "then")
	f.stmts(c.Then)
	if c.Else != nil {
		f.ifClause(c.Else)
	}
}

// call emits assignments, words and redirections in source order.
func (f *flattener) call(call *syntax.CallExpr, redirs []*syntax.Redirect) {
	ri := 0
	flushBefore := func(pos syntax.Pos) {
		for ri < len(redirs) && redirs[ri].Pos().Offset() < pos.Offset() {
			f.redirect(redirs[ri])
			ri++
		}
	}
	for _, as := range call.Assigns {
		flushBefore(as.Pos())
		f.assign(as)
	}
	for _, w := range call.Args {
		flushBefore(w.Pos())
		f.args = append(f.args, f.word(w))
	}
	f.redirects(redirs[ri:])
}

func (f *flattener) decl(d *syntax.DeclClause) {
	if d.Variant != nil {
		f.args = append(f.args, f.literal(d.Variant.Pos(), d.Variant.End()))
	}
	for _, as := range d.Args {
		switch {
		case !as.Naked:
			f.assign(as)
		case as.Name != nil:
			f.args = append(f.args, f.literal(as.Name.Pos(), as.Name.End()))
		case as.Value != nil:
			f.args = append(f.args, f.word(as.Value))
		}
	}
}

// assign emits NAME=value as one argument whose first fragment is the
// literal `NAME=`.
func (f *flattener) assign(as *syntax.Assign) {
	if as.Name == nil || as.Index != nil || as.Array != nil {
		f.args = append(f.args, f.literal(as.Pos(), as.End()))
		return
	}

	hasValue := as.Value != nil && len(as.Value.Parts) > 0
	nameEnd := as.End()
	if hasValue {
		nameEnd = as.Value.Pos()
	}
	head := f.slice(as.Pos(), nameEnd)
	fragments := []tree.Fragment{{
		Kind: tree.Literal,
		Text: head,
		Raw:  head,
		Span: f.span(as.Pos(), nameEnd),
	}}
	if hasValue {
		fragments = append(fragments, f.parts(as.Value.Parts, false)...)
	}
	f.args = append(f.args, tree.RawArgument{Fragments: fragments, Span: f.span(as.Pos(), as.End())})
}

func (f *flattener) redirects(redirs []*syntax.Redirect) {
	for _, r := range redirs {
		f.redirect(r)
	}
}

func (f *flattener) redirect(r *syntax.Redirect) {
	start := r.OpPos
	if r.N != nil {
		start = r.N.Pos()
	}
	f.args = append(f.args, f.literal(start, advance(r.OpPos, len(r.Op.String()))))

	if r.Word != nil {
		f.args = append(f.args, f.word(r.Word))
	}
	if (r.Op == syntax.Hdoc || r.Op == syntax.DashHdoc) && r.Hdoc != nil && r.Hdoc.Pos().IsValid() {
		f.args = append(f.args, f.heredoc(r))
	}
}

var unquoter = strings.NewReplacer(`'`, "", `"`, "", `\`, "")

// heredoc returns the body of a heredoc as one opaque argument. The parser
// ends the body word after the closing delimiter line, which is not part
// of the body.
func (f *flattener) heredoc(r *syntax.Redirect) tree.RawArgument {
	text := f.slice(r.Hdoc.Pos(), r.Hdoc.End())
	start := f.pos(r.Hdoc.Pos())
	end := f.pos(r.Hdoc.End())

	delim := ""
	if r.Word != nil {
		delim = unquoter.Replace(f.slice(r.Word.Pos(), r.Word.End()))
	}
	nl := strings.LastIndexByte(text, '\n')
	last := strings.TrimRight(text[nl+1:], " \r")
	if r.Op == syntax.DashHdoc {
		last = strings.TrimLeft(last, "\t")
	}
	if delim != "" && last == delim {
		text = text[:nl+1]
		end = start
		if nl >= 0 {
			end = translate(int(r.Hdoc.End().Line()), 1, f.origin)
		}
	}

	span := tree.Span{Start: start, End: end}
	return tree.RawArgument{
		Fragments: []tree.Fragment{{Kind: tree.Literal, Text: text, Raw: text, Span: span}},
		Span:      span,
		Opaque:    true,
	}
}

// lexNode falls back to plain words for constructs the analysis does not
// model, such as test and arithmetic commands.
func (f *flattener) lexNode(n syntax.Node) {
	f.lexRange(n.Pos(), n.End())
}

func (f *flattener) lexRange(from, to syntax.Pos) {
	start, end := from.Offset(), to.Offset()
	if !from.IsValid() || end > uint(len(f.src)) || start > end {
		return
	}
	f.args = append(f.args, Lex(f.src[start:end], f.pos(from))...)
}

// keyword emits a reserved word or grouping token as a `;` separator whose
// raw text is the word itself.
func (f *flattener) keyword(pos syntax.Pos, word string) {
	if !pos.IsValid() || word == "" {
		return
	}
	span := tree.NewSpan(f.pos(pos), len(word))
	f.args = append(f.args, tree.RawArgument{
		Fragments: []tree.Fragment{{Kind: tree.Literal, Text: ";", Raw: word, Span: span}},
		Span:      span,
	})
}

func (f *flattener) operator(pos syntax.Pos, op string) {
	if !pos.IsValid() {
		return
	}
	start := f.pos(pos)
	f.args = append(f.args, tree.RawArgument{
		Fragments: []tree.Fragment{{Kind: tree.Literal, Text: op, Raw: op, Span: tree.NewSpan(start, len(op))}},
		Span:      tree.NewSpan(start, len(op)),
	})
}

// newline emits the line break ending a statement as a `;` separator whose
// raw text is the line break itself.
func (f *flattener) newline(after syntax.Pos) {
	start := after.Offset()
	if start > uint(len(f.src)) {
		return
	}
	i := strings.IndexByte(f.src[start:], '\n')
	if i < 0 {
		return
	}
	pos := f.pos(after).Shift(i)
	span := tree.NewSpan(pos, 1)
	f.args = append(f.args, tree.RawArgument{
		Fragments: []tree.Fragment{{Kind: tree.Literal, Text: ";", Raw: "\n", Span: span}},
		Span:      span,
	})
}

// literal returns the source between from and to as one plain literal.
func (f *flattener) literal(from, to syntax.Pos) tree.RawArgument {
	text := f.slice(from, to)
	span := f.span(from, to)
	return tree.RawArgument{
		Fragments: []tree.Fragment{{Kind: tree.Literal, Text: text, Raw: text, Span: span}},
		Span:      span,
	}
}

func (f *flattener) word(w *syntax.Word) tree.RawArgument {
	return tree.RawArgument{
		Fragments: f.parts(w.Parts, false),
		Span:      f.span(w.Pos(), w.End()),
	}
}

func (f *flattener) parts(parts []syntax.WordPart, quoted bool) []tree.Fragment {
	out := make([]tree.Fragment, 0, len(parts))
	for _, part := range parts {
		raw := f.slice(part.Pos(), part.End())
		span := f.span(part.Pos(), part.End())

		switch p := part.(type) {
		case *syntax.Lit:
			text, escaped := unescape(raw, quoted)
			out = append(out, tree.Fragment{Kind: tree.Literal, Text: text, Raw: raw, Escaped: escaped, Span: span})
		case *syntax.SglQuoted:
			if p.Dollar {
				// $'...' needs ANSI-C decoding
				out = append(out, tree.Fragment{Kind: tree.Dynamic, Raw: raw, Span: span})
				continue
			}
			out = append(out, tree.Fragment{Kind: tree.Literal, Text: p.Value, Raw: raw, Quoted: true, Span: span})
		case *syntax.DblQuoted:
			if p.Dollar {
				out = append(out, tree.Fragment{Kind: tree.Dynamic, Raw: raw, Span: span})
				continue
			}
			out = append(out, tree.Fragment{Kind: tree.Expandable, Parts: f.parts(p.Parts, true), Raw: raw, Span: span})
		case *syntax.ParamExp:
			out = append(out, f.param(p, raw, span))
		default:
			// CmdSubst, ArithmExp, ProcSubst, ExtGlob, BraceExp
			out = append(out, tree.Fragment{Kind: tree.Dynamic, Raw: raw, Span: span})
		}
	}
	return out
}

func (f *flattener) param(p *syntax.ParamExp, raw string, span tree.Span) tree.Fragment {
	dynamic := tree.Fragment{Kind: tree.Dynamic, Raw: raw, Span: span}
	if p.Param == nil || p.Excl || p.Length || p.Width || p.Index != nil || p.Slice != nil || p.Repl != nil || p.Names != 0 {
		return dynamic
	}
	if !syntax.ValidName(p.Param.Value) {
		// positional and special parameters
		return dynamic
	}

	frag := tree.Fragment{Kind: tree.Variable, Name: p.Param.Value, Raw: raw, Span: span}
	if p.Exp != nil {
		frag.Modifier = p.Exp.Op.String()
		if p.Exp.Word != nil {
			frag.Default = f.parts(p.Exp.Word.Parts, false)
		}
	}
	return frag
}

// advance returns the position n bytes after p on the same line.
func advance(p syntax.Pos, n int) syntax.Pos {
	return syntax.NewPos(p.Offset()+uint(n), p.Line(), p.Col()+uint(n))
}

func (f *flattener) slice(from, to syntax.Pos) string {
	start, end := from.Offset(), to.Offset()
	if end > uint(len(f.src)) || start > end {
		return ""
	}
	return f.src[start:end]
}

func (f *flattener) span(from, to syntax.Pos) tree.Span {
	return tree.Span{Start: f.pos(from), End: f.pos(to)}
}

func (f *flattener) pos(p syntax.Pos) tree.Position {
	return translate(int(p.Line()), int(p.Col()), f.origin)
}

// translate maps a 1-based line/column inside parsed text to the enclosing
// file. Only the first line is shifted horizontally.
func translate(line, col int, origin tree.Position) tree.Position {
	if line == 1 {
		col += origin.Column - 1
	}
	return tree.Position{Line: line + origin.Line - 1, Column: col}
}

// unescape removes backslash escapes from unquoted or double-quoted literal
// text. Inside double quotes only `$`, backquote, `"`, `\` and newline are
// escapable.
func unescape(raw string, quoted bool) (string, bool) {
	if !strings.Contains(raw, `\`) {
		return raw, false
	}
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			sb.WriteByte(c)
			continue
		}
		next := raw[i+1]
		switch {
		case next == '\n':
		case !quoted || strings.IndexByte("$`\"\\", next) >= 0:
			sb.WriteByte(next)
		default:
			sb.WriteByte(c)
			sb.WriteByte(next)
		}
		i++
	}
	return sb.String(), true
}
