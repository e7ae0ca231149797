package edit

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
)

// Sentinel errors for malformed deltas.
var (
	// ErrInvertedRange indicates a delta whose To position precedes From.
	ErrInvertedRange = errors.New("edit: delta range is inverted")
	// ErrNoLines indicates a delta with an empty Removed or Inserted list.
	// A zero-length side is represented as a single empty line.
	ErrNoLines = errors.New("edit: delta has no removed or inserted lines")
	// ErrOffsetOverflow indicates an offset that does not fit in 32 bits.
	ErrOffsetOverflow = errors.New("edit: offset overflows uint32")
	// ErrUnknownUnits indicates an unrecognized text unit name.
	ErrUnknownUnits = errors.New("edit: unknown text units")
)

// Delta is a single text change in line/column coordinates: the text between
// From and To (the Removed lines) was replaced by the Inserted lines. Line
// separators are implicit between consecutive entries of both lists.
type Delta struct {
	From     Position `json:"from"     yaml:"from"`
	To       Position `json:"to"       yaml:"to"`
	Removed  []string `json:"removed"  yaml:"removed"`
	Inserted []string `json:"inserted" yaml:"inserted"`
}

// Validate checks the delta's preconditions.
func (d Delta) Validate() error {
	if Compare(d.From, d.To) > 0 {
		return fmt.Errorf("%w: from %s to %s", ErrInvertedRange, d.From, d.To)
	}

	if len(d.Removed) == 0 || len(d.Inserted) == 0 {
		return ErrNoLines
	}

	return nil
}

// IsEmpty reports whether the delta neither removes nor inserts text.
func (d Delta) IsEmpty() bool {
	return d.From == d.To && len(d.Inserted) == 1 && d.Inserted[0] == ""
}

// Descriptor is the incremental-edit input of the parser: where the edit
// starts and where the old and new text end, both as absolute offsets and as
// row/column positions.
type Descriptor struct {
	StartOffset    uint32   `json:"start_offset"`
	OldEndOffset   uint32   `json:"old_end_offset"`
	NewEndOffset   uint32   `json:"new_end_offset"`
	StartPosition  Position `json:"start_position"`
	OldEndPosition Position `json:"old_end_position"`
	NewEndPosition Position `json:"new_end_position"`
}

// Translate converts d into a Descriptor. startOffset is the absolute offset
// of d.From in the pre-edit text, measured in units, as reported by the
// editing surface.
func Translate(d Delta, startOffset uint32, units Units) (Descriptor, error) {
	err := d.Validate()
	if err != nil {
		return Descriptor{}, err
	}

	oldLineCount := len(d.Removed)
	newLineCount := len(d.Inserted)
	lastLineLength := units.Len(d.Inserted[newLineCount-1])

	newEnd := Position{Row: d.From.Row + safeconv.MustIntToUint32(newLineCount-1)}
	if newLineCount == 1 {
		newEnd.Column = d.From.Column + safeconv.MustIntToUint32(lastLineLength)
	} else {
		newEnd.Column = safeconv.MustIntToUint32(lastLineLength)
	}

	newEndOffset, err := spanEnd(startOffset, newLineCount, d.Inserted, units)
	if err != nil {
		return Descriptor{}, err
	}

	oldEndOffset, err := spanEnd(startOffset, oldLineCount, d.Removed, units)
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		StartOffset:    startOffset,
		OldEndOffset:   oldEndOffset,
		NewEndOffset:   newEndOffset,
		StartPosition:  d.From,
		OldEndPosition: d.To,
		NewEndPosition: newEnd,
	}, nil
}

// spanEnd returns start + (lineCount-1) + the summed lengths of lines: the
// lines joined by one separator each.
func spanEnd(start uint32, lineCount int, lines []string, units Units) (uint32, error) {
	total := uint64(start) + uint64(lineCount-1)

	for _, line := range lines {
		total += uint64(units.Len(line))
	}

	if total > math.MaxUint32 {
		return 0, ErrOffsetOverflow
	}

	return uint32(total), nil
}

// OffsetFunc resolves a position to its absolute offset in the text the
// delta applies to.
type OffsetFunc func(Position) (uint32, error)

// TranslateAll translates a batch of deltas, resolving each start offset
// through offsetAt, which is consulted once per delta in order.
func TranslateAll(deltas []Delta, offsetAt OffsetFunc, units Units) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(deltas))

	for i, d := range deltas {
		start, err := offsetAt(d.From)
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}

		desc, err := Translate(d, start, units)
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}

		out = append(out, desc)
	}

	return out, nil
}
