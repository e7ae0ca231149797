package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/internal/replay"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
)

type replayOptions struct {
	chart  string
	format string
}

func replayCmd(flags *globalFlags) *cobra.Command {
	var opts replayOptions

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a scripted editing session",
		Long: `Replay a YAML script of edits, caret moves, clicks and grammar switches
against the playground and report the parse and outline after each step.

Example script:
  grammar: javascript
  units: utf16
  text: "let x = 1"
  steps:
    - edit: {from: {row: 0, column: 9}, text: ";"}
    - caret: {anchor: {row: 0, column: 4}}
    - click: 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), flags, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer e.close()

			return runReplay(cmd.Context(), e, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.chart, "chart", "", "write an HTML chart of parse time and rows per step to this file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format (table, json)")

	return cmd
}

func runReplay(ctx context.Context, e *env, path string, opts replayOptions, w io.Writer) error {
	script, err := replay.LoadScript(path)
	if err != nil {
		return err
	}

	units, err := script.InputUnits()
	if err != nil {
		return err
	}

	pgOpts := e.playgroundOptions()
	pgOpts.InputUnits = units

	c := playground.New(sitter.NewParser(), sitter.NewLoader(),
		outline.NewBuffer(headlessListHeight, e.cfg.Scroll.RowHeight), pgOpts)

	stop := runController(ctx, c, e.logger)
	defer stop()

	report, err := replay.NewRunner(c, units, e.logger).Run(ctx, script)
	if err != nil {
		return err
	}

	switch opts.format {
	case formatTable:
		replay.WriteTable(w, report)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err = enc.Encode(report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.format)
	}

	if opts.chart == "" {
		return nil
	}

	f, err := os.Create(opts.chart)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}

	err = replay.WriteChart(f, report)

	closeErr := f.Close()
	if err != nil {
		return err
	}

	return closeErr
}
