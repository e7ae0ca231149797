// Package edit translates text-editing deltas, expressed in line/column
// coordinates, into the offset and position descriptors an incremental parser
// needs to reuse unchanged subtrees.
package edit

import "fmt"

// Position is a zero-based (row, column) location in a document. Column is
// measured in the document's text units (see Units).
type Position struct {
	Row    uint32 `json:"row"    yaml:"row"`
	Column uint32 `json:"column" yaml:"column"`
}

// Compare orders positions by row, then column. It returns -1, 0 or 1.
func Compare(a, b Position) int {
	switch {
	case a.Row < b.Row:
		return -1
	case a.Row > b.Row:
		return 1
	case a.Column < b.Column:
		return -1
	case a.Column > b.Column:
		return 1
	default:
		return 0
	}
}

// Less reports whether p sorts strictly before other.
func (p Position) Less(other Position) bool {
	return Compare(p, other) < 0
}

// String renders the position the way the outline prints ranges: [row, column].
func (p Position) String() string {
	return fmt.Sprintf("[%d, %d]", p.Row, p.Column)
}

// Ordered returns a and b swapped if needed so that start <= end.
func Ordered(a, b Position) (start, end Position) {
	if Compare(a, b) > 0 {
		return b, a
	}

	return a, b
}

// Contains reports whether [start, end] encloses [innerStart, innerEnd].
func Contains(start, end, innerStart, innerEnd Position) bool {
	return Compare(start, innerStart) <= 0 && Compare(innerEnd, end) <= 0
}
