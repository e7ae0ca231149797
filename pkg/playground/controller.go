// Package playground wires a session, an outline model and a list behind a
// single event loop. Every exported Controller method posts work to the loop
// started by Run and waits for it, so the session, its tree and the rows are
// only ever touched by that loop.
package playground

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/session"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// Default debounce delays.
const (
	DefaultRenderDebounce = 50 * time.Millisecond
	DefaultCaretDebounce  = 150 * time.Millisecond
)

// Sentinel errors for controller operations.
var (
	// ErrSwitchInProgress indicates a grammar selection made while another
	// grammar is still loading.
	ErrSwitchInProgress = session.ErrSwitchInProgress
	// ErrNoRow indicates a click on a row index outside the outline.
	ErrNoRow = errors.New("playground: no such row")
	// ErrStopped indicates a call made after Run returned.
	ErrStopped = errors.New("playground: controller stopped")
	// ErrAlreadyRunning indicates a second call to Run.
	ErrAlreadyRunning = errors.New("playground: controller already running")
)

// Options configures a Controller.
type Options struct {
	// BatchSize is the number of nodes a render visits before the loop
	// handles pending events again.
	BatchSize      int
	RenderDebounce time.Duration
	CaretDebounce  time.Duration
	Margins        outline.Margins
	// InputUnits is the unit system of positions passed to and returned
	// from the controller.
	InputUnits      edit.Units
	TrailingNewline bool
	Logger          *slog.Logger
	Metrics         *observability.SessionMetrics
	Tracer          trace.Tracer
}

// DefaultOptions returns the playground defaults: UTF-16 input positions and
// a trailing newline on the parse input.
func DefaultOptions() Options {
	return Options{
		BatchSize:       outline.DefaultBatchSize,
		RenderDebounce:  DefaultRenderDebounce,
		CaretDebounce:   DefaultCaretDebounce,
		Margins:         outline.DefaultMargins(),
		InputUnits:      edit.UTF16,
		TrailingNewline: true,
	}
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Text           string             `json:"text"`
	Grammar        string             `json:"grammar"`
	Loading        string             `json:"loading,omitempty"`
	GrammarError   string             `json:"grammar_error,omitempty"`
	Generation     uint64             `json:"generation"`
	RowsGeneration uint64             `json:"rows_generation"`
	Rows           []outline.Row      `json:"rows"`
	Highlighted    int                `json:"highlighted"`
	Selection      document.Selection `json:"selection"`
	Parse          session.ParseStats `json:"parse"`
	Rendering      bool               `json:"rendering"`
	RenderPending  bool               `json:"render_pending"`
	CaretPending   bool               `json:"caret_pending"`
	Logging        bool               `json:"logging"`
}

// Settled reports whether the rows reflect the latest parse and no render,
// highlight or grammar load is outstanding.
func (s Snapshot) Settled() bool {
	return s.Loading == "" &&
		!s.Rendering &&
		!s.RenderPending &&
		!s.CaretPending &&
		s.RowsGeneration == s.Generation
}

// Controller is the event-dispatch boundary of the playground.
type Controller struct {
	sess   *session.Session
	model  *outline.Model
	list   outline.List
	opts   Options
	logger *slog.Logger

	ops     chan func()
	done    chan struct{}
	running atomic.Bool

	// Loop-owned state.
	pass          *outline.Pass
	passStarted   time.Time
	renderTimer   *time.Timer
	caretTimer    *time.Timer
	renderPending bool
	caretPending  bool
	loading       string
	grammarErr    error
}

// New creates a controller over parser and loader that displays rows in
// list. Zero batch size and margins take their defaults.
func New(parser syntax.Parser, loader syntax.GrammarLoader, list outline.List, opts Options) *Controller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = outline.DefaultBatchSize
	}

	if opts.Margins == (outline.Margins{}) {
		opts.Margins = outline.DefaultMargins()
	}

	renderTimer := time.NewTimer(time.Hour)
	renderTimer.Stop()

	caretTimer := time.NewTimer(time.Hour)
	caretTimer.Stop()

	return &Controller{
		sess: session.New(parser, loader, session.Options{
			TrailingNewline: opts.TrailingNewline,
			Logger:          opts.Logger,
			Metrics:         opts.Metrics,
			Tracer:          opts.Tracer,
		}),
		model:       outline.NewModel(opts.Margins),
		list:        list,
		opts:        opts,
		logger:      observability.Component(opts.Logger, "playground"),
		ops:         make(chan func()),
		done:        make(chan struct{}),
		renderTimer: renderTimer,
		caretTimer:  caretTimer,
	}
}

// Run processes events until ctx is done. Renders run in batches between
// events.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	defer close(c.done)
	defer c.abortRender(ctx, false)

	for {
		if c.pass != nil {
			select {
			case op := <-c.ops:
				op()
			case <-c.renderTimer.C:
				c.renderDue(ctx)
			case <-c.caretTimer.C:
				c.caretDue()
			case <-ctx.Done():
				return nil
			default:
				c.stepRender(ctx)
			}

			continue
		}

		select {
		case op := <-c.ops:
			op()
		case <-c.renderTimer.C:
			c.renderDue(ctx)
		case <-c.caretTimer.C:
			c.caretDue()
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the session. Call it after Run returns.
func (c *Controller) Close() {
	c.renderTimer.Stop()
	c.caretTimer.Stop()
	c.sess.Close()
}

// Open replaces the document with text and parses it. A non-empty grammar
// different from the active one is loaded as by SelectGrammar.
func (c *Controller) Open(ctx context.Context, text, grammar string) error {
	return c.call(ctx, func() error {
		c.abortRender(ctx, true)

		_, err := c.sess.Reset(ctx, text)
		c.scheduleRender(ctx)

		if err != nil {
			return fmt.Errorf("open: %w", err)
		}

		if grammar == "" || grammar == c.sess.GrammarName() {
			return nil
		}

		return c.selectGrammar(ctx, grammar)
	})
}

// Edit applies deltas from the editing surface, with positions in
// Options.InputUnits, and re-parses. The outline follows after the render
// debounce.
func (c *Controller) Edit(ctx context.Context, deltas ...edit.Delta) error {
	return c.call(ctx, func() error {
		c.abortRender(ctx, true)

		_, err := c.sess.EditFrom(ctx, c.opts.InputUnits, deltas...)

		if c.sess.Generation() != c.model.Generation() {
			c.scheduleRender(ctx)
		}

		return err
	})
}

// MoveCaret sets the document selection. The highlight follows after the
// caret debounce.
func (c *Controller) MoveCaret(ctx context.Context, anchor, head edit.Position) error {
	return c.call(ctx, func() error {
		doc := c.sess.Document()

		a, err := doc.ConvertPosition(anchor, c.opts.InputUnits)
		if err != nil {
			return fmt.Errorf("move caret: %w", err)
		}

		h, err := doc.ConvertPosition(head, c.opts.InputUnits)
		if err != nil {
			return fmt.Errorf("move caret: %w", err)
		}

		doc.SetSelection(document.Selection{Anchor: a, Head: h})
		c.scheduleCaret()

		return nil
	})
}

// SelectGrammar starts loading the grammar called name. Loading runs off the
// loop; the grammar becomes active, and the document is re-parsed, when it
// completes. A failed load keeps the previous grammar and is reported in
// Snapshot.GrammarError.
func (c *Controller) SelectGrammar(ctx context.Context, name string) error {
	return c.call(ctx, func() error {
		return c.selectGrammar(ctx, name)
	})
}

// SetLogging forwards parser diagnostics to the log.
func (c *Controller) SetLogging(ctx context.Context, on bool) error {
	return c.call(ctx, func() error {
		c.sess.SetLogging(on)

		return nil
	})
}

// Click selects the source range of row index and returns the selection in
// Options.InputUnits.
func (c *Controller) Click(ctx context.Context, index int) (document.Selection, error) {
	var sel document.Selection

	err := c.call(ctx, func() error {
		row, ok := c.model.Row(index)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoRow, index)
		}

		doc := c.sess.Document()
		doc.SetSelection(document.Selection{Anchor: row.Start, Head: row.End})

		// The selection is clamped to the document, which may be shorter
		// than the parse input.
		current := doc.Selection()

		anchor, err := doc.ExportPosition(current.Anchor, c.opts.InputUnits)
		if err != nil {
			return fmt.Errorf("click: %w", err)
		}

		head, err := doc.ExportPosition(current.Head, c.opts.InputUnits)
		if err != nil {
			return fmt.Errorf("click: %w", err)
		}

		sel = document.Selection{Anchor: anchor, Head: head}
		c.scheduleCaret()

		return nil
	})

	return sel, err
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	err := c.call(ctx, func() error {
		highlighted, _ := c.model.Highlighted()

		snap = Snapshot{
			Text:           c.sess.Document().Text(),
			Grammar:        c.sess.GrammarName(),
			Loading:        c.loading,
			Generation:     c.sess.Generation(),
			RowsGeneration: c.model.Generation(),
			Rows:           append([]outline.Row(nil), c.model.Rows()...),
			Highlighted:    highlighted,
			Selection:      c.sess.Document().Selection(),
			Parse:          c.sess.LastParse(),
			Rendering:      c.pass != nil,
			RenderPending:  c.renderPending,
			CaretPending:   c.caretPending,
			Logging:        c.sess.Logging(),
		}

		if c.grammarErr != nil {
			snap.GrammarError = c.grammarErr.Error()
		}

		return nil
	})

	return snap, err
}

// call runs fn on the loop and waits for its result. Once the loop has
// accepted fn it always runs it.
func (c *Controller) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)

	select {
	case c.ops <- func() { reply <- fn() }:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the loop without waiting; it is dropped once the loop
// has stopped.
func (c *Controller) post(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.done:
	}
}

func (c *Controller) selectGrammar(ctx context.Context, name string) error {
	if c.loading != "" {
		return fmt.Errorf("%w: %s is loading", ErrSwitchInProgress, c.loading)
	}

	c.loading = name
	c.grammarErr = nil

	// The load outlives the request; it stops with the loop.
	loadCtx := context.WithoutCancel(ctx)

	go func() {
		g, err := c.sess.LoadGrammar(loadCtx, name)
		c.post(func() { c.grammarLoaded(loadCtx, name, g, err) })
	}()

	return nil
}

func (c *Controller) grammarLoaded(ctx context.Context, name string, g syntax.Grammar, err error) {
	c.loading = ""

	if err != nil {
		c.grammarErr = err
		c.logger.WarnContext(ctx, "grammar selection reverted", "grammar", name, "active", c.sess.GrammarName(), "error", err)

		return
	}

	c.abortRender(ctx, true)

	_, err = c.sess.ActivateGrammar(ctx, name, g)
	if err != nil {
		c.grammarErr = err
		c.logger.WarnContext(ctx, "grammar activation failed", "grammar", name, "error", err)
	}

	c.scheduleRender(ctx)
}

func (c *Controller) scheduleRender(ctx context.Context) {
	if c.opts.RenderDebounce <= 0 {
		c.startRender(ctx)

		return
	}

	c.renderTimer.Reset(c.opts.RenderDebounce)
	c.renderPending = true
}

func (c *Controller) renderDue(ctx context.Context) {
	c.renderPending = false
	c.startRender(ctx)
}

func (c *Controller) scheduleCaret() {
	if c.opts.CaretDebounce <= 0 {
		c.syncHighlight()

		return
	}

	c.caretTimer.Reset(c.opts.CaretDebounce)
	c.caretPending = true
}

func (c *Controller) caretDue() {
	c.caretPending = false
	c.syncHighlight()
}

// startRender begins a pass over the current tree, replacing any pass in
// flight.
func (c *Controller) startRender(ctx context.Context) {
	c.abortRender(ctx, true)

	tree := c.sess.Tree()
	if tree == nil {
		c.model.SetRows(nil, c.sess.Generation())
		c.list.SetRows(nil)

		return
	}

	c.pass = outline.NewPass(tree, c.sess.Generation())
	c.passStarted = time.Now()
	c.model.BeginRender()
}

// stepRender advances the pass by one batch and installs its rows when it
// completes.
func (c *Controller) stepRender(ctx context.Context) {
	if c.pass.Generation() != c.sess.Generation() {
		c.abortRender(ctx, true)
		c.scheduleRender(ctx)

		return
	}

	if !c.pass.Step(c.opts.BatchSize) {
		return
	}

	rows, gen := c.pass.Rows(), c.pass.Generation()
	c.pass = nil

	c.model.SetRows(rows, gen)
	c.list.SetRows(rows)

	elapsed := time.Since(c.passStarted)
	c.opts.Metrics.RecordRender(ctx, len(rows), elapsed)
	c.logger.DebugContext(ctx, "rendered", "generation", gen, "rows", len(rows), "duration", elapsed)

	c.syncHighlight()
}

// abortRender closes the pass in flight. stale marks a pass superseded by a
// newer parse.
func (c *Controller) abortRender(ctx context.Context, stale bool) {
	if c.pass == nil {
		return
	}

	gen := c.pass.Generation()

	c.pass.Close()
	c.pass = nil
	c.model.AbortRender()

	if stale {
		c.opts.Metrics.RecordStaleRender(ctx)
		c.logger.DebugContext(ctx, "render abandoned", "generation", gen, "error", outline.ErrStaleRender)
	}
}

// syncHighlight moves the highlight to the selection. Rows older than the
// tree are left alone; the render that replaces them syncs again.
func (c *Controller) syncHighlight() {
	if c.model.Generation() != c.sess.Generation() {
		return
	}

	sel := c.sess.Document().Selection()
	previous, _ := c.model.Highlighted()

	target, scroll := c.model.Sync(c.sess.Tree(), sel.Anchor, sel.Head, c.list.Viewport())

	current, _ := c.model.Highlighted()
	if current != previous {
		if h, ok := c.list.(outline.Highlighter); ok {
			h.SetHighlight(current)
		} else {
			c.list.SetRows(c.model.Rows())
		}
	}

	if scroll {
		c.list.ScrollTo(target.ScrollTop)
	}
}
