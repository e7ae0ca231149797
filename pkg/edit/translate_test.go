package edit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
)

func pos(row, col uint32) edit.Position {
	return edit.Position{Row: row, Column: col}
}

func TestTranslate_InsertNewlineAtEndOfLine(t *testing.T) {
	t.Parallel()

	// "let x = 1" with "\n" typed after the last character.
	delta := edit.Delta{
		From:     pos(0, 9),
		To:       pos(0, 9),
		Removed:  []string{""},
		Inserted: []string{"", ""},
	}

	desc, err := edit.Translate(delta, 9, edit.UTF16)
	require.NoError(t, err)

	assert.Equal(t, pos(1, 0), desc.NewEndPosition)
	assert.Equal(t, pos(0, 9), desc.StartPosition)
	assert.Equal(t, pos(0, 9), desc.OldEndPosition)
	assert.Equal(t, uint32(9), desc.StartOffset)
	assert.Equal(t, uint32(9), desc.OldEndOffset)
	assert.Equal(t, uint32(10), desc.NewEndOffset)
}

func TestTranslate_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		delta edit.Delta
		start uint32
		want  edit.Descriptor
	}{
		{
			name:  "single line replace",
			delta: edit.Delta{From: pos(2, 4), To: pos(2, 7), Removed: []string{"foo"}, Inserted: []string{"barbaz"}},
			start: 30,
			want: edit.Descriptor{
				StartOffset: 30, OldEndOffset: 33, NewEndOffset: 36,
				StartPosition: pos(2, 4), OldEndPosition: pos(2, 7), NewEndPosition: pos(2, 10),
			},
		},
		{
			name: "multi line insert",
			delta: edit.Delta{
				From: pos(1, 3), To: pos(1, 3),
				Removed:  []string{""},
				Inserted: []string{"abc", "de", "fghi"},
			},
			start: 12,
			want: edit.Descriptor{
				StartOffset: 12, OldEndOffset: 12, NewEndOffset: 12 + 2 + 3 + 2 + 4,
				StartPosition: pos(1, 3), OldEndPosition: pos(1, 3), NewEndPosition: pos(3, 4),
			},
		},
		{
			name: "multi line delete",
			delta: edit.Delta{
				From: pos(0, 5), To: pos(2, 1),
				Removed:  []string{"tail", "whole line", "x"},
				Inserted: []string{""},
			},
			start: 5,
			want: edit.Descriptor{
				StartOffset: 5, OldEndOffset: 5 + 2 + 4 + 10 + 1, NewEndOffset: 5,
				StartPosition: pos(0, 5), OldEndPosition: pos(2, 1), NewEndPosition: pos(0, 5),
			},
		},
		{
			name:  "cursor only",
			delta: edit.Delta{From: pos(4, 2), To: pos(4, 2), Removed: []string{""}, Inserted: []string{""}},
			start: 40,
			want: edit.Descriptor{
				StartOffset: 40, OldEndOffset: 40, NewEndOffset: 40,
				StartPosition: pos(4, 2), OldEndPosition: pos(4, 2), NewEndPosition: pos(4, 2),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := edit.Translate(tt.delta, tt.start, edit.UTF16)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.StartOffset, got.OldEndOffset)
			assert.LessOrEqual(t, got.StartOffset, got.NewEndOffset)
		})
	}
}

func TestTranslate_UnitsChangeLengths(t *testing.T) {
	t.Parallel()

	// U+1F600 is two UTF-16 code units and four UTF-8 bytes.
	delta := edit.Delta{From: pos(0, 1), To: pos(0, 1), Removed: []string{""}, Inserted: []string{"é😀"}}

	utf16Desc, err := edit.Translate(delta, 1, edit.UTF16)
	require.NoError(t, err)
	assert.Equal(t, uint32(1+1+2), utf16Desc.NewEndOffset)
	assert.Equal(t, pos(0, 4), utf16Desc.NewEndPosition)

	byteDesc, err := edit.Translate(delta, 1, edit.Bytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(1+2+4), byteDesc.NewEndOffset)
	assert.Equal(t, pos(0, 7), byteDesc.NewEndPosition)

	runeDesc, err := edit.Translate(delta, 1, edit.Runes)
	require.NoError(t, err)
	assert.Equal(t, pos(0, 3), runeDesc.NewEndPosition)
}

func TestTranslate_RejectsMalformedDeltas(t *testing.T) {
	t.Parallel()

	_, err := edit.Translate(edit.Delta{From: pos(3, 0), To: pos(1, 0), Removed: []string{""}, Inserted: []string{""}}, 0, edit.UTF16)
	require.ErrorIs(t, err, edit.ErrInvertedRange)

	_, err = edit.Translate(edit.Delta{From: pos(0, 0), To: pos(0, 0), Inserted: []string{"x"}}, 0, edit.UTF16)
	require.ErrorIs(t, err, edit.ErrNoLines)

	_, err = edit.Translate(edit.Delta{From: pos(0, 0), To: pos(0, 0), Removed: []string{""}}, 0, edit.UTF16)
	require.ErrorIs(t, err, edit.ErrNoLines)
}

func TestTranslate_OffsetsCountEachSideLines(t *testing.T) {
	t.Parallel()

	// Three removed lines replaced by two inserted ones; the emoji is two
	// UTF-16 code units.
	delta := edit.Delta{
		From:     pos(1, 3),
		To:       pos(3, 2),
		Removed:  []string{"ab😀", "", "cd"},
		Inserted: []string{"x", "yz"},
	}

	desc, err := edit.Translate(delta, 10, edit.UTF16)
	require.NoError(t, err)

	assert.Equal(t, uint32(10+2+4+0+2), desc.OldEndOffset)
	assert.Equal(t, uint32(10+1+1+2), desc.NewEndOffset)
	assert.Equal(t, pos(3, 2), desc.OldEndPosition)
	assert.Equal(t, pos(2, 2), desc.NewEndPosition)
}

func TestTranslate_OffsetOverflow(t *testing.T) {
	t.Parallel()

	delta := edit.Delta{From: pos(0, 0), To: pos(0, 0), Removed: []string{""}, Inserted: []string{"", ""}}

	_, err := edit.Translate(delta, ^uint32(0), edit.Bytes)
	require.ErrorIs(t, err, edit.ErrOffsetOverflow)
}

func TestTranslateAll_ResolvesEachStart(t *testing.T) {
	t.Parallel()

	deltas := []edit.Delta{
		{From: pos(0, 1), To: pos(0, 1), Removed: []string{""}, Inserted: []string{"a"}},
		{From: pos(1, 0), To: pos(1, 2), Removed: []string{"xy"}, Inserted: []string{""}},
	}

	offsets := map[edit.Position]uint32{pos(0, 1): 1, pos(1, 0): 6}

	descs, err := edit.TranslateAll(deltas, func(p edit.Position) (uint32, error) {
		return offsets[p], nil
	}, edit.Bytes)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, uint32(2), descs[0].NewEndOffset)
	assert.Equal(t, uint32(8), descs[1].OldEndOffset)
	assert.Equal(t, uint32(6), descs[1].NewEndOffset)
}

func TestTranslate_SingleLineProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		row := uint32(rapid.IntRange(0, 10_000).Draw(rt, "row"))
		col := uint32(rapid.IntRange(0, 500).Draw(rt, "col"))
		removed := rapid.StringMatching(`[a-z ]{0,20}`).Draw(rt, "removed")
		inserted := rapid.StringMatching(`[a-zé😀 ]{0,20}`).Draw(rt, "inserted")
		start := uint32(rapid.IntRange(0, 1<<20).Draw(rt, "start"))

		delta := edit.Delta{
			From:     pos(row, col),
			To:       pos(row, col+uint32(edit.UTF16.Len(removed))),
			Removed:  []string{removed},
			Inserted: []string{inserted},
		}

		desc, err := edit.Translate(delta, start, edit.UTF16)
		require.NoError(rt, err)

		want := pos(row, col+uint32(edit.UTF16.Len(inserted)))
		if desc.NewEndPosition != want {
			rt.Fatalf("new end %v, want %v", desc.NewEndPosition, want)
		}

		if desc.NewEndOffset-desc.StartOffset != uint32(edit.UTF16.Len(inserted)) {
			rt.Fatalf("new end offset %d does not cover inserted text", desc.NewEndOffset)
		}
	})
}

func TestTranslate_MultiLineInsertProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		col := uint32(rapid.IntRange(0, 500).Draw(rt, "col"))
		lines := rapid.SliceOfN(rapid.StringMatching(`[a-z(){} ]{0,12}`), 2, 8).Draw(rt, "lines")

		delta := edit.Delta{From: pos(3, col), To: pos(3, col), Removed: []string{""}, Inserted: lines}

		desc, err := edit.Translate(delta, 100, edit.UTF16)
		require.NoError(rt, err)

		last := lines[len(lines)-1]
		if desc.NewEndPosition.Column != uint32(len(last)) {
			rt.Fatalf("column %d, want %d", desc.NewEndPosition.Column, len(last))
		}

		if desc.NewEndPosition.Row != 3+uint32(len(lines)-1) {
			rt.Fatalf("row %d, want %d", desc.NewEndPosition.Row, 3+len(lines)-1)
		}
	})
}
