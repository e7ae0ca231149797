package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/internal/termview"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
	"github.com/Sumatoshi-tech/sitterview/pkg/session"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
	"github.com/Sumatoshi-tech/sitterview/pkg/textutil"
)

// ErrUnsupportedFormat indicates an unknown --format value.
var ErrUnsupportedFormat = errors.New("unsupported format")

const (
	formatTree  = "tree"
	formatTable = "table"
	formatJSON  = "json"
)

type parseOptions struct {
	language string
	format   string
	search   string
	colorize bool
	nocolor  bool
}

// parseOutput is the JSON form of a parse.
type parseOutput struct {
	Grammar string             `json:"grammar"`
	Parse   session.ParseStats `json:"parse"`
	Rows    []outline.Row      `json:"rows"`
	Matches []int              `json:"matches,omitempty"`
}

func parseCmd(flags *globalFlags) *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Print the syntax outline of a file",
		Long: `Parse a file and print its outline: one row per visible node, indented by
depth, with the node's start and end position.

Examples:
  sitterview parse main.go
  sitterview parse -l javascript - < app.js
  sitterview parse -f table --search identifier main.go
  sitterview parse -f json main.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), flags, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer e.close()

			return runParse(cmd.Context(), e, args[0], opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "grammar to parse with (default: detected from the file)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTree, "output format (tree, table, json)")
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "mark rows whose label contains this text")
	cmd.Flags().BoolVar(&opts.colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&opts.nocolor, "no-color", false, "disable colored output")

	return cmd
}

func runParse(ctx context.Context, e *env, path string, opts parseOptions, stdin io.Reader, w io.Writer) error {
	text, label, err := readInput(path, stdin)
	if err != nil {
		return err
	}

	grammar, err := resolveGrammar(opts.language, path, text, e.cfg.Editor.Grammar)
	if err != nil {
		return err
	}

	sess := session.New(sitter.NewParser(), sitter.NewLoader(), session.Options{
		TrailingNewline: e.cfg.Editor.TrailingNewline,
		Logger:          e.logger,
		Metrics:         e.session,
		Tracer:          e.providers.Tracer,
	})
	defer sess.Close()

	_, err = sess.SwitchGrammar(ctx, grammar)
	if err != nil {
		return err
	}

	stats, err := sess.Reset(ctx, text)
	if err != nil {
		return fmt.Errorf("parse %s: %w", label, err)
	}

	rows, err := outline.Flatten(ctx, sess.Tree(), sess, outline.Options{BatchSize: e.cfg.Render.BatchSize})
	if err != nil {
		return err
	}

	matches := outline.Search(rows, opts.search)

	switch opts.format {
	case formatTree:
		return writeTree(w, text, rows, matches, stats, opts)
	case formatTable:
		writeRowTable(w, rows, matches, stats)

		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(parseOutput{Grammar: grammar, Parse: stats, Rows: rows, Matches: matches})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.format)
	}
}

func writeTree(w io.Writer, text string, rows []outline.Row, matches []int, stats session.ParseStats, opts parseOptions) error {
	colorize := !color.NoColor

	switch {
	case opts.nocolor:
		colorize = false
	case opts.colorize:
		colorize = true
	}

	printer := termview.New(w, colorize)

	err := printer.Print(rows, matches)
	if err != nil {
		return err
	}

	problems, err := printer.Problems(rows)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s: %s rows, %d problems, %s lines (%s) parsed in %s\n",
		stats.Grammar, humanize.Comma(int64(len(rows))), problems,
		humanize.Comma(int64(textutil.CountLines([]byte(text)))),
		humanize.Bytes(safeconv.MustIntToUint64(stats.Bytes)), stats.Duration)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func writeRowTable(w io.Writer, rows []outline.Row, matches []int, stats session.ParseStats) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"#", "Node", "Depth", "Start", "End", "Match"})

	marked := make(map[int]bool, len(matches))
	for _, i := range matches {
		marked[i] = true
	}

	for i, row := range rows {
		match := ""
		if marked[i] {
			match = "*"
		}

		tbl.AppendRow(table.Row{i, row.Label, row.Depth, row.Start.String(), row.End.String(), match})
	}

	tbl.AppendFooter(table.Row{"", stats.Grammar, "", "", fmt.Sprintf("Total: %d rows", len(rows)), ""})
	tbl.Render()
}
