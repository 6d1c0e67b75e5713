package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krmcbride/runlint/pkg/tree"
)

func value(line int, text string) *tree.RawArgument {
	arg := tree.Word(tree.Position{Line: line, Column: 1}, tree.Lit(text))
	return &arg
}

func valueText(t *testing.T, d Declaration) string {
	t.Helper()
	require.NotNil(t, d.Value)
	return d.Value.Text()
}

func TestTable_DeclareBeforeFirstStageIsGlobal(t *testing.T) {
	table := NewTable()
	table.Declare("X", value(1, "1"), false, tree.Position{Line: 1, Column: 1})

	sym := table.ResolveLast("X")
	require.NotNil(t, sym)
	last, ok := sym.Last()
	require.True(t, ok)
	assert.Equal(t, Global, last.Kind)
	assert.False(t, table.InStage())
}

func TestTable_Shadowing(t *testing.T) {
	table := NewTable()
	table.Declare("X", value(1, "1"), false, tree.Position{Line: 1, Column: 1})

	table.OnStageBoundary()
	table.Declare("X", value(3, "2"), false, tree.Position{Line: 3, Column: 1})

	d, ok := table.LastValue("X")
	require.True(t, ok)
	assert.Equal(t, "2", valueText(t, d))
	assert.Equal(t, Stage, d.Kind)

	table.OnStageBoundary()

	d, ok = table.LastValue("X")
	require.True(t, ok)
	assert.Equal(t, "1", valueText(t, d))
	assert.Equal(t, Global, d.Kind)
}

func TestTable_StageBoundaryClearsOnlyStage(t *testing.T) {
	table := NewTable()
	table.OnStageBoundary()
	table.Declare("LOCAL", value(2, "a"), false, tree.Position{Line: 2, Column: 1})
	require.NotNil(t, table.ResolveLast("LOCAL"))

	table.OnStageBoundary()
	assert.Nil(t, table.ResolveLast("LOCAL"))
}

func TestTable_UnknownNameIsNil(t *testing.T) {
	table := NewTable()
	assert.Nil(t, table.ResolveLast("MISSING"))
	_, ok := table.LastValue("MISSING")
	assert.False(t, ok)
}

func TestTable_LastDeclarationWins(t *testing.T) {
	table := NewTable()
	table.OnStageBoundary()
	table.Declare("X", value(2, "first"), false, tree.Position{Line: 2, Column: 1})
	table.Declare("X", value(3, "second"), false, tree.Position{Line: 3, Column: 1})

	d, ok := table.LastValue("X")
	require.True(t, ok)
	assert.Equal(t, "second", valueText(t, d))
	assert.Len(t, table.ResolveLast("X").Declarations, 2)
}

func TestTable_OutOfOrderDeclarationsAreSorted(t *testing.T) {
	table := NewTable()
	table.Declare("X", value(5, "late"), false, tree.Position{Line: 5, Column: 1})
	table.Declare("X", value(2, "early"), false, tree.Position{Line: 2, Column: 1})

	last, ok := table.ResolveLast("X").Last()
	require.True(t, ok)
	assert.Equal(t, "late", valueText(t, last))
}

func TestTable_BareStageDeclarationShowsGlobalValue(t *testing.T) {
	table := NewTable()
	table.Declare("VERSION", value(1, "1.2"), false, tree.Position{Line: 1, Column: 1})
	table.OnStageBoundary()
	table.Declare("VERSION", nil, false, tree.Position{Line: 3, Column: 1})

	d, ok := table.LastValue("VERSION")
	require.True(t, ok)
	assert.Equal(t, "1.2", valueText(t, d))
}

func TestTable_BareDeclarationWithoutValueAnywhere(t *testing.T) {
	table := NewTable()
	table.OnStageBoundary()
	table.Declare("TOKEN", nil, false, tree.Position{Line: 2, Column: 1})

	require.NotNil(t, table.ResolveLast("TOKEN"))
	_, ok := table.LastValue("TOKEN")
	assert.False(t, ok)
}

func TestTable_ExplicitGlobalInsideStage(t *testing.T) {
	table := NewTable()
	table.OnStageBoundary()
	table.Declare("G", value(2, "g"), true, tree.Position{Line: 2, Column: 1})

	table.OnStageBoundary()
	d, ok := table.LastValue("G")
	require.True(t, ok)
	assert.Equal(t, Global, d.Kind)
}

func TestTable_Names(t *testing.T) {
	table := NewTable()
	table.Declare("B", value(1, "b"), false, tree.Position{Line: 1, Column: 1})
	table.OnStageBoundary()
	table.Declare("A", value(2, "a"), false, tree.Position{Line: 2, Column: 1})
	table.Declare("B", value(3, "b2"), false, tree.Position{Line: 3, Column: 1})

	assert.Equal(t, []string{"A", "B"}, table.Names())
}

func TestTable_NilTableIsEmpty(t *testing.T) {
	var table *Table

	assert.Nil(t, table.ResolveLast("X"))
	_, ok := table.LastValue("X")
	assert.False(t, ok)
	assert.Empty(t, table.Names())
}
