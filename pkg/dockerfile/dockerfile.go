// Package dockerfile adapts buildkit's Dockerfile parser to the analysis
// core. It turns instructions into raw arguments with exact source spans and
// replays ARG/ENV declarations and stage boundaries into a symbol table while
// walking the file.
package dockerfile

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"
	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/krmcbride/runlint/pkg/symbols"
	"github.com/krmcbride/runlint/pkg/tree"
)

// Flag is an instruction flag such as `--mount=type=cache,target=/root/.cache`.
type Flag struct {
	Name  string
	Value string
}

// Stage is a build stage opened by FROM.
type Stage struct {
	Index int
	Name  string
	Base  string
}

// Instruction is one Dockerfile instruction.
type Instruction struct {
	// Keyword is upper case: RUN, ARG, FROM...
	Keyword string
	Args    []tree.RawArgument
	Flags   []Flag
	Span    tree.Span
	// ExecForm is set for JSON-array RUN, CMD and ENTRYPOINT.
	ExecForm bool
	// Stage is nil for instructions before the first FROM.
	Stage *Stage

	declarations []declaration
}

type declaration struct {
	name  string
	value *tree.RawArgument
	site  tree.Position
}

// Declared returns the names an ARG or ENV instruction declares, in order.
func (inst *Instruction) Declared() []string {
	names := make([]string, len(inst.declarations))
	for i, d := range inst.declarations {
		names[i] = d.name
	}
	return names
}

// File is a parsed Dockerfile.
type File struct {
	Instructions []Instruction
	Stages       []*Stage
}

// Visitor is called for every instruction. scope holds the declarations
// made before the instruction; it must not be retained after the call.
type Visitor func(inst *Instruction, scope *symbols.Table) error

// Option configures Parse.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for skipped or degraded instructions.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Parse reads a Dockerfile. Only syntax errors of the file as a whole are
// returned; an instruction buildkit cannot interpret is skipped and logged
// at debug level.
func Parse(r io.Reader, opts ...Option) (*File, error) {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read Dockerfile: %w", err)
	}
	result, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Dockerfile: %w", err)
	}

	c := &converter{
		lines:  splitLines(string(data)),
		logger: o.logger,
		file:   &File{},
	}
	for _, node := range result.AST.Children {
		c.convert(node)
	}
	return c.file, nil
}

// Walk visits the instructions in source order with a fresh symbol table.
// FROM opens a new stage before the visitor sees it; ARG and ENV declare
// their variables after the visitor has seen them.
func (f *File) Walk(fn Visitor) error {
	scope := symbols.NewTable()
	for i := range f.Instructions {
		inst := &f.Instructions[i]
		if inst.Keyword == "FROM" {
			scope.OnStageBoundary()
		}
		if err := fn(inst, scope); err != nil {
			return err
		}
		for _, d := range inst.declarations {
			scope.Declare(d.name, d.value, false, d.site)
		}
	}
	return nil
}

func splitLines(src string) []string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

type converter struct {
	lines  []string
	logger *slog.Logger
	file   *File
	stage  *Stage
}

func (c *converter) convert(node *parser.Node) {
	keyword := strings.ToUpper(node.Value)
	logger := c.logger.With("instruction", keyword, "line", node.StartLine)

	typed, err := instructions.ParseInstruction(node)
	if err != nil {
		logger.Debug("skipping instruction", "error", err)
		return
	}

	inst := Instruction{
		Keyword: keyword,
		Flags:   parseFlags(node.Flags),
		Span:    c.span(node),
	}
	body := c.body(node)
	origin := tree.Position{Line: node.StartLine, Column: 1}

	switch cmd := typed.(type) {
	case *instructions.Stage:
		c.stage = &Stage{Index: len(c.file.Stages), Name: cmd.Name, Base: cmd.BaseName}
		c.file.Stages = append(c.file.Stages, c.stage)
		inst.Args = shellWords(body, origin, logger)
	case *instructions.ArgCommand:
		inst.Args = shellWords(body, origin, logger)
		inst.declarations = argDeclarations(cmd, inst.Args)
	case *instructions.EnvCommand:
		inst.Args = shellWords(body, origin, logger)
		inst.declarations = envDeclarations(cmd, inst.Args)
	case *instructions.RunCommand:
		c.command(&inst, node, cmd.ShellDependantCmdLine, body, logger)
	case *instructions.CmdCommand:
		c.command(&inst, node, cmd.ShellDependantCmdLine, body, logger)
	case *instructions.EntrypointCommand:
		c.command(&inst, node, cmd.ShellDependantCmdLine, body, logger)
	default:
		inst.Args = lexWords(body, origin)
	}

	inst.Stage = c.stage
	c.file.Instructions = append(c.file.Instructions, inst)
}

// command fills the arguments of RUN, CMD and ENTRYPOINT.
func (c *converter) command(inst *Instruction, node *parser.Node, cmdLine instructions.ShellDependantCmdLine, body string, logger *slog.Logger) {
	if !cmdLine.PrependShell {
		inst.ExecForm = true
		inst.Args = execArgs(cmdLine.CmdLine, c.text(node), node.StartLine)
		return
	}

	origin := tree.Position{Line: node.StartLine, Column: 1}
	args := shellWords(body, origin, logger)
	if script, ok := heredocScript(args); ok {
		args = shellWords(script.Text(), script.Span.Start, logger)
	}
	inst.Args = args
}

// heredocScript reports whether args are exactly a heredoc whose body is
// the script itself, as in `RUN <<EOF`.
func heredocScript(args []tree.RawArgument) (tree.RawArgument, bool) {
	if len(args) != 3 || !args[2].Opaque {
		return tree.RawArgument{}, false
	}
	if op := args[0].Text(); op != "<<" && op != "<<-" {
		return tree.RawArgument{}, false
	}
	return args[2], true
}

// text returns the source lines of the instruction, joined.
func (c *converter) text(node *parser.Node) string {
	from, to := node.StartLine-1, node.EndLine
	if from < 0 || to > len(c.lines) || from >= to {
		return ""
	}
	return strings.Join(c.lines[from:to], "\n")
}

func (c *converter) span(node *parser.Node) tree.Span {
	text := c.text(node)
	lead := len(text) - len(strings.TrimLeft(text, " \t"))
	last := node.EndLine - 1
	if last >= len(c.lines) || last < 0 {
		return tree.Span{}
	}
	return tree.Span{
		Start: tree.Position{Line: node.StartLine, Column: lead + 1},
		End:   tree.Position{Line: node.EndLine, Column: len(c.lines[last]) + 1},
	}
}

// body returns the instruction text with the keyword, the flags and comment
// lines blanked out, so positions inside it match the file.
func (c *converter) body(node *parser.Node) string {
	b := []byte(c.text(node))

	i := skipBlank(b, 0)
	end := min(i+len(node.Value), len(b))
	blank(b, i, end)
	i = end

	for range node.Flags {
		i = skipBlank(b, i)
		start := i
		for i < len(b) && !isSpace(b[i]) {
			i++
		}
		blank(b, start, i)
	}

	if len(node.Heredocs) == 0 {
		blankComments(b)
	}
	return string(b)
}

// skipBlank skips spaces and line continuations.
func skipBlank(b []byte, i int) int {
	for i < len(b) {
		switch {
		case isSpace(b[i]):
			i++
		case b[i] == '\\' && i+1 < len(b) && b[i+1] == '\n':
			i += 2
		default:
			return i
		}
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func blank(b []byte, from, to int) {
	for i := from; i < to; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}

// blankComments removes comment lines buildkit drops from continued
// instructions. The blanked line keeps the continuation going.
func blankComments(b []byte) {
	start := 0
	for start < len(b) {
		end := bytes.IndexByte(b[start:], '\n')
		if end < 0 {
			end = len(b)
		} else {
			end += start
		}
		if line := bytes.TrimLeft(b[start:end], " \t"); start > 0 && len(line) > 0 && line[0] == '#' {
			blank(b, start, end)
			b[end-1] = '\\'
		}
		start = end + 1
	}
}

func parseFlags(raw []string) []Flag {
	if len(raw) == 0 {
		return nil
	}
	flags := make([]Flag, 0, len(raw))
	for _, f := range raw {
		name, value, _ := strings.Cut(strings.TrimLeft(f, "-"), "=")
		flags = append(flags, Flag{Name: name, Value: value})
	}
	return flags
}
