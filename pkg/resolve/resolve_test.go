package resolve

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krmcbride/runlint/pkg/symbols"
	"github.com/krmcbride/runlint/pkg/tree"
)

var origin = tree.Position{Line: 1, Column: 1}

func word(fragments ...tree.Fragment) tree.RawArgument {
	return tree.Word(origin, fragments...)
}

// scopeWith declares each name=fragments pair inside a stage, in order.
func scopeWith(decls ...any) *symbols.Table {
	table := symbols.NewTable()
	table.OnStageBoundary()
	for i := 0; i+1 < len(decls); i += 2 {
		name := decls[i].(string)
		var arg tree.RawArgument
		switch v := decls[i+1].(type) {
		case string:
			arg = word(tree.Lit(v))
		case tree.Fragment:
			arg = word(v)
		case []tree.Fragment:
			arg = word(v...)
		}
		table.Declare(name, &arg, false, tree.Position{Line: i + 2, Column: 1})
	}
	return table
}

func TestResolve_Literals(t *testing.T) {
	tests := []struct {
		name      string
		fragments []tree.Fragment
		strip     string
		keep      string
	}{
		{"plain", []tree.Fragment{tree.Lit("foo")}, "foo", "foo"},
		{"double quoted", []tree.Fragment{tree.Str(tree.Lit("foo"))}, "foo", `"foo"`},
		{"partly double quoted", []tree.Fragment{tree.Lit("fo"), tree.Str(tree.Lit("o"))}, "foo", `fo"o"`},
		{"single quoted suffix", []tree.Fragment{tree.Lit("f"), tree.Quoted("oo")}, "foo", "f'oo'"},
		{"mixed quotes", []tree.Fragment{tree.Lit("f"), tree.Quoted("o"), tree.Str(tree.Lit("o"))}, "foo", `f'o'"o"`},
		{"escaped", []tree.Fragment{tree.Escaped(";")}, ";", `\;`},
		{"quoted operator", []tree.Fragment{tree.Str(tree.Lit("foo && bar"))}, "foo && bar", `"foo && bar"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arg := word(tt.fragments...)

			stripped := Resolve(arg, nil, StripQuotes)
			require.True(t, stripped.IsResolved())
			assert.Equal(t, tt.strip, stripped.Value)

			kept := Resolve(arg, nil, KeepQuotes)
			require.True(t, kept.IsResolved())
			assert.Equal(t, tt.keep, kept.Value)
		})
	}
}

func TestResolve_EmptyArgumentIsResolved(t *testing.T) {
	res := Resolve(tree.RawArgument{}, nil, StripQuotes)
	assert.Equal(t, Resolved, res.Status)
	assert.Equal(t, "", res.Value)
}

func TestResolve_Variables(t *testing.T) {
	scope := scopeWith(
		"FOO", "bar",
		"QUOTED", tree.Str(tree.Lit("foo")),
		"SUFFIX", "ar",
		"CHAIN", []tree.Fragment{tree.Lit("b"), tree.Var("SUFFIX")},
	)

	tests := []struct {
		name      string
		fragments []tree.Fragment
		mode      QuoteMode
		want      string
	}{
		{"bare reference", []tree.Fragment{tree.Var("FOO")}, StripQuotes, "bar"},
		{"braced reference", []tree.Fragment{tree.VarWith("FOO", "")}, StripQuotes, "bar"},
		{"default modifier with set variable", []tree.Fragment{tree.VarWith("FOO", ":-", tree.Lit("notbar"))}, StripQuotes, "bar"},
		{"concatenated", []tree.Fragment{tree.Lit("b"), tree.Var("SUFFIX")}, StripQuotes, "bar"},
		{"inside double quotes", []tree.Fragment{tree.Str(tree.Lit("x="), tree.Var("FOO"))}, StripQuotes, "x=bar"},
		{"chained declaration", []tree.Fragment{tree.Var("CHAIN")}, StripQuotes, "bar"},
		{"declaration quotes are not duplicated", []tree.Fragment{tree.Str(tree.Var("QUOTED"))}, KeepQuotes, `"foo"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(word(tt.fragments...), scope, tt.mode)
			require.Equal(t, Resolved, res.Status)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}

func TestResolve_Unresolved(t *testing.T) {
	scope := scopeWith(
		"FOO", "bar",
		"SELF", tree.VarWith("SELF", ""),
		"A", tree.Var("B"),
		"B", tree.Var("A"),
		"DYN", tree.Cmd("date"),
	)

	tests := []struct {
		name      string
		fragments []tree.Fragment
	}{
		{"missing variable", []tree.Fragment{tree.Var("MISSING")}},
		{"missing variable keeps no partial value", []tree.Fragment{tree.Lit("foo"), tree.Var("MISSING")}},
		{"missing inside double quotes", []tree.Fragment{tree.Str(tree.Lit("foo"), tree.Var("MISSING"))}},
		{"default modifier does not apply", []tree.Fragment{tree.VarWith("MISSING", ":-", tree.Lit("bar"))}},
		{"alternate modifier", []tree.Fragment{tree.VarWith("FOO", ":+", tree.Lit("notbar"))}},
		{"substring removal", []tree.Fragment{tree.VarWith("FOO", "%", tree.Lit("r"))}},
		{"command substitution", []tree.Fragment{tree.Cmd("id -u")}},
		{"direct self reference", []tree.Fragment{tree.Var("SELF")}},
		{"transitive cycle", []tree.Fragment{tree.Var("A")}},
		{"dynamic declaration", []tree.Fragment{tree.Var("DYN")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(word(tt.fragments...), scope, StripQuotes)
			assert.Equal(t, Unresolved, res.Status)
			assert.Empty(t, res.Value)
			assert.True(t, res.IsUnresolved())
		})
	}
}

func TestResolve_NilScopeLeavesVariablesUnresolved(t *testing.T) {
	var table *symbols.Table
	res := Resolve(word(tree.Var("FOO")), table, StripQuotes)
	assert.True(t, res.IsUnresolved())

	res = Resolve(word(tree.Var("FOO")), nil, StripQuotes)
	assert.True(t, res.IsUnresolved())
}

func TestResolve_LongChainTerminates(t *testing.T) {
	// V0=x, Vn=$V(n-1)$V(n-1): without memoisation this is exponential.
	const depth = 16
	decls := []any{"V0", "x"}
	for i := 1; i <= depth; i++ {
		prev := fmt.Sprintf("V%d", i-1)
		decls = append(decls, fmt.Sprintf("V%d", i), []tree.Fragment{tree.Var(prev), tree.Var(prev)})
	}
	scope := scopeWith(decls...)

	res := Resolve(word(tree.Var(fmt.Sprintf("V%d", depth))), scope, StripQuotes)
	require.True(t, res.IsResolved())
	assert.Equal(t, strings.Repeat("x", 1<<depth), res.Value)
}

func TestResolve_IsPure(t *testing.T) {
	scope := scopeWith("FOO", "bar")
	arg := word(tree.Lit("a"), tree.Var("FOO"))

	first := Resolve(arg, scope, StripQuotes)
	second := Resolve(arg, scope, StripQuotes)

	if diff := cmp.Diff(first.Value, second.Value); diff != "" {
		t.Errorf("Resolve() not deterministic (-first +second):\n%s", diff)
	}
	assert.Equal(t, []string{"FOO"}, scope.Names())
	assert.Equal(t, arg.Span, first.Span())
}

func TestResolveAll(t *testing.T) {
	scope := scopeWith("PKG", "curl")
	args := []tree.RawArgument{
		word(tree.Lit("apk")),
		word(tree.Lit("add")),
		word(tree.Var("PKG")),
		word(tree.Var("NOPE")),
	}

	got := ResolveAll(args, scope, StripQuotes)
	values := make([]string, len(got))
	for i, r := range got {
		values[i] = r.String()
	}
	want := []string{"apk", "add", "curl", "<unresolved $NOPE>"}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Errorf("ResolveAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestDerive_UsesParentQuoteMode(t *testing.T) {
	parent := Resolve(word(tree.Quoted("foo"), tree.Lit("&&"), tree.Quoted("bar")), nil, KeepQuotes)
	require.True(t, parent.IsResolved())

	piece := Derive(parent, []tree.Fragment{tree.Quoted("foo")}, tree.NewSpan(origin, 5))
	assert.Equal(t, "'foo'", piece.Value)
}

func TestEnvironment(t *testing.T) {
	scope := scopeWith("HOME", "/root", "TOKEN", tree.Cmd("cat /run/secret"))

	env := Environment(scope, scope.Names())
	assert.Equal(t, map[string]string{"HOME": "/root"}, env)
}
