// Package termview prints an outline as an indented, colored tree.
package termview

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

const indentWidth = 2

// Printer writes outline rows to a terminal.
type Printer struct {
	w      io.Writer
	label  *color.Color
	errRow *color.Color
	hl     *color.Color
	rng    *color.Color
	match  *color.Color
}

// New creates a printer writing to w. colorize toggles escape sequences
// regardless of what the terminal supports.
func New(w io.Writer, colorize bool) *Printer {
	p := &Printer{
		w:      w,
		label:  color.New(color.FgCyan),
		errRow: color.New(color.FgRed, color.Bold),
		hl:     color.New(color.ReverseVideo, color.Bold),
		rng:    color.New(color.Faint),
		match:  color.New(color.FgGreen, color.Underline),
	}

	for _, c := range []*color.Color{p.label, p.errRow, p.hl, p.rng, p.match} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// IsProblem reports whether row marks an ERROR or MISSING node.
func IsProblem(row outline.Row) bool {
	return row.Label == "ERROR" || strings.HasPrefix(row.Label, syntax.MissingPrefix)
}

// Print writes one line per row. Rows whose index is in matches are marked.
func (p *Printer) Print(rows []outline.Row, matches []int) error {
	marked := make(map[int]bool, len(matches))
	for _, i := range matches {
		marked[i] = true
	}

	for i, row := range rows {
		var label string

		switch {
		case row.Highlighted:
			label = p.hl.Sprint(row.Label)
		case IsProblem(row):
			label = p.errRow.Sprint(row.Label)
		case marked[i]:
			label = p.match.Sprint(row.Label)
		default:
			label = p.label.Sprint(row.Label)
		}

		_, err := fmt.Fprintf(p.w, "%s%s %s\n",
			strings.Repeat(" ", row.Depth*indentWidth), label,
			p.rng.Sprintf("%s - %s", row.Start, row.End))
		if err != nil {
			return fmt.Errorf("print outline: %w", err)
		}
	}

	return nil
}

// Problems writes a line per ERROR or MISSING row and returns their count.
func (p *Printer) Problems(rows []outline.Row) (int, error) {
	count := 0

	for _, row := range rows {
		if !IsProblem(row) {
			continue
		}

		count++

		msg := "syntax error"
		if row.Label != "ERROR" {
			msg = "missing " + strings.TrimPrefix(row.Label, syntax.MissingPrefix)
		}

		_, err := p.errRow.Fprintf(p.w, "%s: %s\n", row.Start, msg)
		if err != nil {
			return count, fmt.Errorf("print problems: %w", err)
		}
	}

	return count, nil
}
