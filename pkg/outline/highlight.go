package outline

import (
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// Model holds the rows of the latest completed render and the highlighted
// row. It is owned by one goroutine.
type Model struct {
	rows        []Row
	index       map[syntax.NodeID]int
	highlighted int
	generation  uint64
	rendering   bool
	margins     Margins
}

// NewModel creates an empty model using margins when scrolling.
func NewModel(margins Margins) *Model {
	return &Model{highlighted: -1, margins: margins}
}

// BeginRender marks a pass in flight; Sync is suspended until the pass
// completes or is abandoned.
func (m *Model) BeginRender() {
	m.rendering = true
}

// AbortRender ends an abandoned pass, keeping the previous rows.
func (m *Model) AbortRender() {
	m.rendering = false
}

// Rendering reports whether a pass is in flight.
func (m *Model) Rendering() bool {
	return m.rendering
}

// SetRows installs the rows of a completed pass. The highlight is cleared.
func (m *Model) SetRows(rows []Row, generation uint64) {
	m.rows = rows
	m.generation = generation
	m.highlighted = -1
	m.rendering = false

	m.index = make(map[syntax.NodeID]int, len(rows))
	for i, row := range rows {
		m.rows[i].Highlighted = false
		m.index[row.NodeID] = i
	}
}

// Rows returns the current rows.
func (m *Model) Rows() []Row {
	return m.rows
}

// Generation returns the generation the rows were built from.
func (m *Model) Generation() uint64 {
	return m.generation
}

// Row returns row i.
func (m *Model) Row(i int) (Row, bool) {
	if i < 0 || i >= len(m.rows) {
		return Row{}, false
	}

	return m.rows[i], true
}

// Highlighted returns the index of the highlighted row.
func (m *Model) Highlighted() (int, bool) {
	return m.highlighted, m.highlighted >= 0
}

// Sync highlights the row of the smallest named node covering the selection
// (anchor, head) and returns where to scroll to keep it visible. The bool is
// false when nothing needs to scroll: a render is in flight, no row matches,
// or the row is already visible.
func (m *Model) Sync(tree syntax.Tree, anchor, head edit.Position, vp Viewport) (Target, bool) {
	if m.rendering || tree == nil {
		return Target{}, false
	}

	start, end := anchor, head
	if edit.Compare(start, end) > 0 {
		start, end = end, start
	}

	node, ok := tree.NamedDescendantForRange(start, end)

	m.clear()

	if !ok {
		return Target{}, false
	}

	i, ok := m.index[node.ID]
	if !ok {
		return Target{}, false
	}

	m.rows[i].Highlighted = true
	m.highlighted = i

	scrollTop, scroll := vp.ScrollFor(i, m.margins)
	if !scroll {
		return Target{}, false
	}

	return Target{Index: i, ScrollTop: scrollTop}, true
}

func (m *Model) clear() {
	if m.highlighted >= 0 && m.highlighted < len(m.rows) {
		m.rows[m.highlighted].Highlighted = false
	}

	m.highlighted = -1
}
