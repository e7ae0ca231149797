package outline

import "sync"

// List is a virtualized list that displays rows.
type List interface {
	SetRows(rows []Row)
	Viewport() Viewport
	ScrollTo(scrollTop int)
}

// Highlighter is implemented by lists that can move the highlight without
// receiving every row again.
type Highlighter interface {
	SetHighlight(index int)
}

// Buffer is an in-memory List. It copies rows on SetRows so callers may keep
// mutating theirs. Buffer is safe for concurrent use.
type Buffer struct {
	mu          sync.Mutex
	rows        []Row
	highlighted int
	viewport    Viewport
	updates     int
	scrolls     []int
}

// NewBuffer creates a buffer showing height pixels of rows rowHeight tall.
func NewBuffer(height, rowHeight int) *Buffer {
	return &Buffer{highlighted: -1, viewport: Viewport{Height: height, RowHeight: rowHeight}}
}

// SetRows replaces the displayed rows.
func (b *Buffer) SetRows(rows []Row) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = append(b.rows[:0:0], rows...)
	b.highlighted = -1
	b.updates++

	for i := range b.rows {
		if b.rows[i].Highlighted {
			b.highlighted = i
		}
	}
}

// SetHighlight highlights row index alone; a negative index clears it.
func (b *Buffer) SetHighlight(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.highlighted >= 0 && b.highlighted < len(b.rows) {
		b.rows[b.highlighted].Highlighted = false
	}

	b.highlighted = -1

	if index >= 0 && index < len(b.rows) {
		b.rows[index].Highlighted = true
		b.highlighted = index
	}
}

// Highlighted returns the highlighted row index, or -1.
func (b *Buffer) Highlighted() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.highlighted
}

// Viewport returns the current viewport.
func (b *Buffer) Viewport() Viewport {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.viewport
}

// ScrollTo moves the viewport.
func (b *Buffer) ScrollTo(scrollTop int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.viewport.ScrollTop = scrollTop
	b.scrolls = append(b.scrolls, scrollTop)
}

// Resize changes the viewport height.
func (b *Buffer) Resize(height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.viewport.Height = height
}

// Rows returns a copy of the displayed rows.
func (b *Buffer) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Row(nil), b.rows...)
}

// Visible returns the rows inside the viewport.
func (b *Buffer) Visible() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	first, last := b.viewport.VisibleRange(len(b.rows))

	return append([]Row(nil), b.rows[first:last]...)
}

// Updates reports how many times SetRows was called.
func (b *Buffer) Updates() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.updates
}

// Scrolls returns the scroll offsets requested so far.
func (b *Buffer) Scrolls() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]int(nil), b.scrolls...)
}
