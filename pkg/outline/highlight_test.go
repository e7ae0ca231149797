package outline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/syntaxtest"
)

func renderedModel(t *testing.T, text string) (*outline.Model, *syntaxtest.Tree) {
	t.Helper()

	tree := syntaxtest.Parse(text, edit.UTF16)

	rows, err := outline.Flatten(context.Background(), tree, &generations{}, outline.Options{})
	require.NoError(t, err)

	m := outline.NewModel(outline.DefaultMargins())
	m.SetRows(rows, 1)

	return m, tree
}

func highlightedRows(m *outline.Model) []int {
	var out []int

	for i, row := range m.Rows() {
		if row.Highlighted {
			out = append(out, i)
		}
	}

	return out
}

func TestModel_CaretInsideIdentifier(t *testing.T) {
	t.Parallel()

	m, tree := renderedModel(t, "let abc = 12")
	vp := outline.Viewport{Height: 400, RowHeight: 20}

	_, scroll := m.Sync(tree, pos(0, 5), pos(0, 5), vp)
	assert.False(t, scroll, "row already visible")

	require.Equal(t, []int{2}, highlightedRows(m))

	row, ok := m.Row(2)
	require.True(t, ok)
	assert.Equal(t, "identifier", row.Label)
	assert.Equal(t, pos(0, 4), row.Start)

	idx, ok := m.Highlighted()
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestModel_SyncMovesHighlight(t *testing.T) {
	t.Parallel()

	m, tree := renderedModel(t, "let abc = 12")
	vp := outline.Viewport{Height: 400, RowHeight: 20}

	m.Sync(tree, pos(0, 5), pos(0, 5), vp)
	m.Sync(tree, pos(0, 11), pos(0, 11), vp)

	assert.Equal(t, []int{3}, highlightedRows(m), "previous highlight cleared")
}

func TestModel_InvertedSelectionIsNormalized(t *testing.T) {
	t.Parallel()

	m, tree := renderedModel(t, "let abc = 12\nfoo(bar)")
	vp := outline.Viewport{Height: 400, RowHeight: 20}

	m.Sync(tree, pos(1, 2), pos(0, 1), vp)
	assert.Equal(t, []int{0}, highlightedRows(m), "range spanning lines highlights the program")

	m.Sync(tree, pos(0, 12), pos(0, 4), vp)
	assert.Equal(t, []int{1}, highlightedRows(m))
}

func TestModel_SuspendedWhileRendering(t *testing.T) {
	t.Parallel()

	m, tree := renderedModel(t, "let abc = 12")
	vp := outline.Viewport{Height: 400, RowHeight: 20}

	m.BeginRender()
	assert.True(t, m.Rendering())

	_, scroll := m.Sync(tree, pos(0, 5), pos(0, 5), vp)
	assert.False(t, scroll)
	assert.Empty(t, highlightedRows(m))

	m.AbortRender()
	m.Sync(tree, pos(0, 5), pos(0, 5), vp)
	assert.Equal(t, []int{2}, highlightedRows(m))
}

func TestModel_SetRowsClearsHighlight(t *testing.T) {
	t.Parallel()

	m, tree := renderedModel(t, "let abc = 12")
	m.Sync(tree, pos(0, 5), pos(0, 5), outline.Viewport{Height: 400})

	rows := m.Rows()
	m.SetRows(rows, 2)

	_, ok := m.Highlighted()
	assert.False(t, ok)
	assert.Empty(t, highlightedRows(m))
	assert.Equal(t, uint64(2), m.Generation())
}

func TestModel_RowsFromAnotherTreeDoNotMatch(t *testing.T) {
	t.Parallel()

	m, _ := renderedModel(t, "let abc = 12")
	other := syntaxtest.Parse("let abc = 12", edit.UTF16)

	_, scroll := m.Sync(other, pos(0, 5), pos(0, 5), outline.Viewport{Height: 400})
	assert.False(t, scroll)
	assert.Empty(t, highlightedRows(m))
}

func TestModel_SyncScrollsToRow(t *testing.T) {
	t.Parallel()

	m, tree := renderedModel(t, bigSource(100))
	vp := outline.Viewport{ScrollTop: 0, Height: 200, RowHeight: 20}

	target, scroll := m.Sync(tree, pos(50, 5), pos(50, 5), vp)
	require.True(t, scroll)

	idx, _ := m.Highlighted()
	assert.Equal(t, idx, target.Index)
	assert.Equal(t, idx*20+20+40-200, target.ScrollTop)

	vp.ScrollTop = 99999
	target, scroll = m.Sync(tree, pos(50, 5), pos(50, 5), vp)
	require.True(t, scroll)
	assert.Equal(t, idx*20-20, target.ScrollTop)
}

func TestViewport_ScrollFor(t *testing.T) {
	t.Parallel()

	vp := outline.Viewport{ScrollTop: 100, Height: 200, RowHeight: 20}
	m := outline.DefaultMargins()

	_, scroll := vp.ScrollFor(8, m)
	assert.False(t, scroll, "row 8 at 160 is inside [120, 240]")

	top, scroll := vp.ScrollFor(0, m)
	require.True(t, scroll)
	assert.Equal(t, 0, top, "never negative")

	top, scroll = vp.ScrollFor(20, m)
	require.True(t, scroll)
	assert.Equal(t, 20*20+20+40-200, top)
}

func TestViewport_VisibleRange(t *testing.T) {
	t.Parallel()

	vp := outline.Viewport{ScrollTop: 40, Height: 60, RowHeight: 20}

	first, last := vp.VisibleRange(100)
	assert.Equal(t, 2, first)
	assert.Equal(t, 5, last)

	first, last = vp.VisibleRange(3)
	assert.Equal(t, 2, first)
	assert.Equal(t, 3, last)
}

func TestBuffer(t *testing.T) {
	t.Parallel()

	b := outline.NewBuffer(40, 20)
	rows := []outline.Row{{Label: "a"}, {Label: "b"}, {Label: "c"}}

	b.SetRows(rows)
	rows[0].Label = "mutated"

	assert.Equal(t, "a", b.Rows()[0].Label)
	assert.Len(t, b.Visible(), 2)

	b.ScrollTo(20)
	assert.Equal(t, "b", b.Visible()[0].Label)
	assert.Equal(t, []int{20}, b.Scrolls())
	assert.Equal(t, 1, b.Updates())

	b.SetHighlight(2)
	b.SetHighlight(1)
	assert.Equal(t, 1, b.Highlighted())
	assert.Equal(t, []bool{false, true, false}, highlightFlags(b.Rows()))

	b.SetHighlight(-1)
	assert.Equal(t, -1, b.Highlighted())
	assert.Equal(t, []bool{false, false, false}, highlightFlags(b.Rows()))
	assert.Equal(t, 1, b.Updates())
}

func highlightFlags(rows []outline.Row) []bool {
	out := make([]bool, len(rows))
	for i, row := range rows {
		out[i] = row.Highlighted
	}

	return out
}

func TestSearch(t *testing.T) {
	t.Parallel()

	rows := []outline.Row{{Label: "program"}, {Label: "identifier"}, {Label: "MISSING )"}, {Label: "Identifier"}}

	matches := outline.Search(rows, "ident")
	assert.Equal(t, []int{1, 3}, matches)
	assert.Nil(t, outline.Search(rows, "  "))

	next, ok := outline.NextMatch(matches, 1)
	require.True(t, ok)
	assert.Equal(t, 3, next)

	next, _ = outline.NextMatch(matches, 3)
	assert.Equal(t, 1, next, "wraps around")

	_, ok = outline.NextMatch(nil, 0)
	assert.False(t, ok)
}
