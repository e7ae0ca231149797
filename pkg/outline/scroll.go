package outline

// Default scroll geometry, in pixels of the original list widget. Terminal
// lists use a row height of one.
const (
	DefaultRowHeight    = 20
	DefaultTopMargin    = 20
	DefaultBottomMargin = 40
)

// Viewport is the visible window of a list.
type Viewport struct {
	ScrollTop int `json:"scroll_top"`
	Height    int `json:"height"`
	RowHeight int `json:"row_height"`
}

// Margins is the space kept around a highlighted row when scrolling to it.
type Margins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// DefaultMargins returns the default scroll margins.
func DefaultMargins() Margins {
	return Margins{Top: DefaultTopMargin, Bottom: DefaultBottomMargin}
}

// Target is a scroll request for the list.
type Target struct {
	Index     int `json:"index"`
	ScrollTop int `json:"scroll_top"`
}

// ScrollFor returns the scroll offset that brings row index fully into view
// with the margins around it, and false when it is already visible.
func (v Viewport) ScrollFor(index int, m Margins) (int, bool) {
	rowHeight := v.RowHeight
	if rowHeight <= 0 {
		rowHeight = DefaultRowHeight
	}

	offset := index * rowHeight

	if v.ScrollTop > offset-m.Top {
		return max(0, offset-m.Top), true
	}

	if v.ScrollTop < offset+rowHeight+m.Bottom-v.Height {
		return max(0, offset+rowHeight+m.Bottom-v.Height), true
	}

	return v.ScrollTop, false
}

// VisibleRange returns the half-open row index range inside the viewport,
// clamped to n rows.
func (v Viewport) VisibleRange(n int) (first, last int) {
	rowHeight := v.RowHeight
	if rowHeight <= 0 {
		rowHeight = DefaultRowHeight
	}

	first = min(max(0, v.ScrollTop/rowHeight), n)
	last = min(first+(v.Height+rowHeight-1)/rowHeight, n)

	return first, last
}
