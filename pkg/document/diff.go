package document

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
)

// Diff returns the deltas that turn oldText into newText, for surfaces that
// only report whole-text snapshots (full LSP sync, file watching). Deltas are
// ordered and each applies to the text produced by the ones before it, so
// they can be fed to Apply and to the session one after another.
func Diff(oldText, newText string, units edit.Units) []edit.Delta {
	if oldText == newText {
		return nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var (
		deltas []edit.Delta
		cursor edit.Position
	)

	for i := 0; i < len(diffs); i++ {
		d := diffs[i]

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			cursor = advance(cursor, d.Text, units)
		case diffmatchpatch.DiffDelete:
			insertedText := ""

			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				insertedText = diffs[i+1].Text
				i++
			}

			deltas = append(deltas, edit.Delta{
				From:     cursor,
				To:       advance(cursor, d.Text, units),
				Removed:  SplitLines(d.Text),
				Inserted: SplitLines(insertedText),
			})

			cursor = advance(cursor, insertedText, units)
		case diffmatchpatch.DiffInsert:
			deltas = append(deltas, edit.Delta{
				From:     cursor,
				To:       cursor,
				Removed:  []string{""},
				Inserted: SplitLines(d.Text),
			})

			cursor = advance(cursor, d.Text, units)
		}
	}

	return deltas
}

// advance returns the position reached after text is laid out from p.
func advance(p edit.Position, text string, units edit.Units) edit.Position {
	lines := SplitLines(text)
	last := lines[len(lines)-1]

	if len(lines) == 1 {
		return edit.Position{Row: p.Row, Column: p.Column + safeconv.MustIntToUint32(units.Len(last))}
	}

	return edit.Position{
		Row:    p.Row + safeconv.MustIntToUint32(len(lines)-1),
		Column: safeconv.MustIntToUint32(units.Len(last)),
	}
}
