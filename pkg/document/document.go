// Package document holds the text being edited: a line-indexed buffer that
// applies deltas, converts between positions and offsets in a chosen unit
// system, and tracks the caret selection.
package document

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
)

// Sentinel errors for document operations.
var (
	// ErrPositionOutOfRange indicates a position outside the document or
	// inside a multi-unit character.
	ErrPositionOutOfRange = errors.New("document: position out of range")
	// ErrRemovedMismatch indicates a delta whose Removed lines do not match
	// the document text between From and To.
	ErrRemovedMismatch = errors.New("document: removed text does not match document")
)

// Selection is a caret range. Anchor stays put while Head follows the caret,
// so Head may precede Anchor.
type Selection struct {
	Anchor edit.Position `json:"anchor"`
	Head   edit.Position `json:"head"`
}

// Range returns the selection normalized so start <= end.
func (s Selection) Range() (start, end edit.Position) {
	return edit.Ordered(s.Anchor, s.Head)
}

// Document is a line-indexed text buffer. It is not safe for concurrent use.
type Document struct {
	lines      []string
	units      edit.Units
	lineStarts []uint32
	selection  Selection
	version    uint64
}

// New creates a document holding text, measuring columns in units.
func New(text string, units edit.Units) *Document {
	return &Document{
		lines: SplitLines(text),
		units: units,
	}
}

// SplitLines splits text on "\n". The result always has at least one line.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// Text returns the full document text.
func (d *Document) Text() string {
	return strings.Join(d.lines, "\n")
}

// Units returns the unit system columns and offsets are measured in.
func (d *Document) Units() edit.Units {
	return d.units
}

// Version increments on every text mutation.
func (d *Document) Version() uint64 {
	return d.version
}

// LineCount returns the number of lines; an empty document has one.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// Line returns the text of row without its separator.
func (d *Document) Line(row int) (string, bool) {
	if row < 0 || row >= len(d.lines) {
		return "", false
	}

	return d.lines[row], true
}

// End returns the position just past the last character.
func (d *Document) End() edit.Position {
	last := len(d.lines) - 1

	return edit.Position{Row: safeconv.MustIntToUint32(last), Column: safeconv.MustIntToUint32(d.units.Len(d.lines[last]))}
}

// Len returns the document length in its units.
func (d *Document) Len() uint32 {
	d.indexLines()

	last := len(d.lines) - 1

	return d.lineStarts[last] + safeconv.MustIntToUint32(d.units.Len(d.lines[last]))
}

// OffsetAt returns the absolute offset of p.
func (d *Document) OffsetAt(p edit.Position) (uint32, error) {
	_, err := d.splitAt(p)
	if err != nil {
		return 0, err
	}

	d.indexLines()

	return d.lineStarts[p.Row] + p.Column, nil
}

// PositionAt returns the position of an absolute offset.
func (d *Document) PositionAt(offset uint32) (edit.Position, error) {
	d.indexLines()

	if offset > d.Len() {
		return edit.Position{}, fmt.Errorf("%w: offset %d", ErrPositionOutOfRange, offset)
	}

	lo, hi := 0, len(d.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if d.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return edit.Position{Row: safeconv.MustIntToUint32(lo), Column: offset - d.lineStarts[lo]}, nil
}

// Slice returns the text between from and to.
func (d *Document) Slice(from, to edit.Position) ([]string, error) {
	if edit.Compare(from, to) > 0 {
		return nil, fmt.Errorf("%w: from %s to %s", edit.ErrInvertedRange, from, to)
	}

	startIdx, err := d.splitAt(from)
	if err != nil {
		return nil, err
	}

	endIdx, err := d.splitAt(to)
	if err != nil {
		return nil, err
	}

	if from.Row == to.Row {
		return []string{d.lines[from.Row][startIdx:endIdx]}, nil
	}

	out := make([]string, 0, to.Row-from.Row+1)
	out = append(out, d.lines[from.Row][startIdx:])
	out = append(out, d.lines[from.Row+1:to.Row]...)
	out = append(out, d.lines[to.Row][:endIdx])

	return out, nil
}

// DeltaFor builds the delta that replaces the text between from and to with
// text, without applying it.
func (d *Document) DeltaFor(from, to edit.Position, text string) (edit.Delta, error) {
	removed, err := d.Slice(from, to)
	if err != nil {
		return edit.Delta{}, err
	}

	return edit.Delta{
		From:     from,
		To:       to,
		Removed:  removed,
		Inserted: SplitLines(text),
	}, nil
}

// Replace replaces the text between from and to with text and returns the
// applied delta.
func (d *Document) Replace(from, to edit.Position, text string) (edit.Delta, error) {
	delta, err := d.DeltaFor(from, to, text)
	if err != nil {
		return edit.Delta{}, err
	}

	err = d.Apply(delta)
	if err != nil {
		return edit.Delta{}, err
	}

	return delta, nil
}

// Apply applies delta to the document. The delta's Removed lines must match
// the current text between From and To.
func (d *Document) Apply(delta edit.Delta) error {
	err := delta.Validate()
	if err != nil {
		return err
	}

	current, err := d.Slice(delta.From, delta.To)
	if err != nil {
		return err
	}

	if !slices.Equal(current, delta.Removed) {
		return fmt.Errorf("%w at %s", ErrRemovedMismatch, delta.From)
	}

	startIdx, _ := d.splitAt(delta.From) //nolint:errcheck // validated by Slice above
	endIdx, _ := d.splitAt(delta.To)     //nolint:errcheck // validated by Slice above

	head := d.lines[delta.From.Row][:startIdx]
	tail := d.lines[delta.To.Row][endIdx:]

	replacement := make([]string, len(delta.Inserted))
	copy(replacement, delta.Inserted)
	replacement[0] = head + replacement[0]
	replacement[len(replacement)-1] += tail

	lines := make([]string, 0, len(d.lines)-int(delta.To.Row-delta.From.Row)+len(replacement)-1)
	lines = append(lines, d.lines[:delta.From.Row]...)
	lines = append(lines, replacement...)
	lines = append(lines, d.lines[delta.To.Row+1:]...)

	d.lines = lines
	d.lineStarts = nil
	d.version++
	d.selection = d.clampSelection(d.selection)

	return nil
}

// SetText replaces the whole document.
func (d *Document) SetText(text string) {
	d.lines = SplitLines(text)
	d.lineStarts = nil
	d.version++
	d.selection = d.clampSelection(d.selection)
}

// Selection returns the current caret selection.
func (d *Document) Selection() Selection {
	return d.selection
}

// SetSelection moves the caret selection, clamping both ends into the document.
func (d *Document) SetSelection(sel Selection) {
	d.selection = d.clampSelection(sel)
}

// ConvertPosition converts p, whose column is measured in from, into the
// document's units.
func (d *Document) ConvertPosition(p edit.Position, from edit.Units) (edit.Position, error) {
	return d.convert(p, from, d.units)
}

// ExportPosition converts p from the document's units into to.
func (d *Document) ExportPosition(p edit.Position, to edit.Units) (edit.Position, error) {
	return d.convert(p, d.units, to)
}

func (d *Document) convert(p edit.Position, from, to edit.Units) (edit.Position, error) {
	if from == to {
		return p, nil
	}

	line, ok := d.Line(int(p.Row))
	if !ok {
		return edit.Position{}, fmt.Errorf("%w: row %d", ErrPositionOutOfRange, p.Row)
	}

	prefix, used := from.Prefix(line, int(p.Column))
	if used != int(p.Column) {
		return edit.Position{}, fmt.Errorf("%w: %s", ErrPositionOutOfRange, p)
	}

	return edit.Position{Row: p.Row, Column: safeconv.MustIntToUint32(to.Len(prefix))}, nil
}

// splitAt returns the byte index of p within its line.
func (d *Document) splitAt(p edit.Position) (int, error) {
	line, ok := d.Line(int(p.Row))
	if !ok {
		return 0, fmt.Errorf("%w: row %d of %d", ErrPositionOutOfRange, p.Row, len(d.lines))
	}

	prefix, used := d.units.Prefix(line, int(p.Column))
	if used != int(p.Column) {
		return 0, fmt.Errorf("%w: %s", ErrPositionOutOfRange, p)
	}

	return len(prefix), nil
}

func (d *Document) indexLines() {
	if d.lineStarts != nil {
		return
	}

	starts := make([]uint32, len(d.lines))

	var next uint32

	for i, line := range d.lines {
		starts[i] = next
		next += safeconv.MustIntToUint32(d.units.Len(line)) + 1
	}

	d.lineStarts = starts
}

func (d *Document) clampSelection(sel Selection) Selection {
	return Selection{Anchor: d.clamp(sel.Anchor), Head: d.clamp(sel.Head)}
}

func (d *Document) clamp(p edit.Position) edit.Position {
	if int(p.Row) >= len(d.lines) {
		return d.End()
	}

	prefix, _ := d.units.Prefix(d.lines[p.Row], int(p.Column))

	return edit.Position{Row: p.Row, Column: safeconv.MustIntToUint32(d.units.Len(prefix))}
}
