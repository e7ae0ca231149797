package main

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/internal/tui"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
)

func exploreCmd(flags *globalFlags) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "explore [file]",
		Short: "Edit text with a live syntax outline",
		Long: `Open a file (or an empty buffer) in a terminal editor next to its live
outline. The outline is reparsed incrementally on every keystroke and the row
of the node under the caret is highlighted.

Keys:
  tab       switch between editor and outline
  enter     select the text of the outline row under the cursor
  /  n      search rows, jump to the next match
  ctrl+l    toggle parser logging
  ctrl+c    quit`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := setup(ctx, flags, observability.ModeTUI)
			if err != nil {
				return err
			}
			defer e.close()

			path, text := "", ""

			if len(args) == 1 {
				path = args[0]

				var readErr error

				text, _, readErr = readInput(path, nil)
				if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
					return readErr
				}
			}

			grammar, err := resolveGrammar(language, path, text, e.cfg.Editor.Grammar)
			if err != nil {
				return err
			}

			opts := e.playgroundOptions()
			opts.InputUnits = tui.InputUnits
			opts.Margins = outline.Margins{
				Top:    e.cfg.Scroll.TopMargin / e.cfg.Scroll.RowHeight,
				Bottom: e.cfg.Scroll.BottomMargin / e.cfg.Scroll.RowHeight,
			}

			list := outline.NewBuffer(1, 1)
			c := playground.New(sitter.NewParser(), sitter.NewLoader(), list, opts)

			stop := runController(ctx, c, e.logger)
			defer stop()

			err = c.Open(ctx, text, grammar)
			if err != nil {
				return err
			}

			return tui.Run(ctx, c, list, text)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "grammar to parse with (default: detected from the file)")

	return cmd
}
