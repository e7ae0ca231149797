package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/internal/replay"
	"github.com/Sumatoshi-tech/sitterview/internal/termview"
	"github.com/Sumatoshi-tech/sitterview/internal/watch"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
	"github.com/Sumatoshi-tech/sitterview/pkg/safeconv"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
)

// headlessListHeight is the list height, in pixels, of commands with no
// visible outline.
const headlessListHeight = 600

func watchCmd(flags *globalFlags) *cobra.Command {
	var language string

	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Follow a file and report every reparse",
		Long: `Watch a file on disk. Each save is diffed against the previous content and
applied as incremental edits; one line is printed per reparse.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := setup(ctx, flags, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer e.close()

			return runWatch(ctx, e, args[0], language, debounce, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "grammar to parse with (default: detected from the file)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a change is applied")

	return cmd
}

func runWatch(ctx context.Context, e *env, path, language string, debounce time.Duration, w io.Writer) error {
	text, _, err := readInput(path, nil)
	if err != nil {
		return err
	}

	grammar, err := resolveGrammar(language, path, text, e.cfg.Editor.Grammar)
	if err != nil {
		return err
	}

	opts := e.playgroundOptions()
	c := playground.New(sitter.NewParser(), sitter.NewLoader(),
		outline.NewBuffer(headlessListHeight, e.cfg.Scroll.RowHeight), opts)

	stop := runController(ctx, c, e.logger)
	defer stop()

	sink := &reportingSink{c: c, w: w}

	err = sink.Open(ctx, text, grammar)
	if err != nil {
		return err
	}

	watcher, err := watch.New(watch.Config{Path: path, Debounce: debounce, Logger: e.logger})
	if err != nil {
		return err
	}

	changes, err := watcher.Start()
	if err != nil {
		return err
	}

	defer func() {
		stopErr := watcher.Stop()
		if stopErr != nil {
			e.logger.Warn("stop watcher", "error", stopErr)
		}
	}()

	return watch.Follow(ctx, changes, path, text, opts.InputUnits, sink, e.logger)
}

// reportingSink forwards changes to the controller and prints a line once
// the outline has caught up.
type reportingSink struct {
	c *playground.Controller
	w io.Writer
}

func (s *reportingSink) Edit(ctx context.Context, deltas ...edit.Delta) error {
	err := s.c.Edit(ctx, deltas...)
	if err != nil {
		return err
	}

	return s.report(ctx, len(deltas))
}

func (s *reportingSink) Open(ctx context.Context, text, grammar string) error {
	err := s.c.Open(ctx, text, grammar)
	if err != nil {
		return err
	}

	return s.report(ctx, 0)
}

func (s *reportingSink) report(ctx context.Context, edits int) error {
	snap, err := replay.Settle(ctx, s.c, replay.DefaultPollInterval)
	if err != nil {
		return err
	}

	mode := "fresh"
	if snap.Parse.Incremental {
		mode = "incremental"
	}

	problems := 0

	for _, row := range snap.Rows {
		if termview.IsProblem(row) {
			problems++
		}
	}

	_, err = fmt.Fprintf(s.w, "gen %d %s %s parse of %s (%d edits) in %s: %s rows, %d problems\n",
		snap.Generation, snap.Grammar, mode, humanize.Bytes(safeconv.MustIntToUint64(snap.Parse.Bytes)),
		edits, snap.Parse.Duration, humanize.Comma(int64(len(snap.Rows))), problems)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
