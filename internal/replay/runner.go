package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/playground"
)

// DefaultPollInterval is how often the runner checks whether a step settled.
const DefaultPollInterval = 5 * time.Millisecond

// Frame records the controller state after one step settled.
type Frame struct {
	Index       int           `json:"index"`
	Label       string        `json:"label"`
	Op          string        `json:"op"`
	Grammar     string        `json:"grammar"`
	Generation  uint64        `json:"generation"`
	Rows        int           `json:"rows"`
	Highlighted string        `json:"highlighted,omitempty"`
	ParseTime   time.Duration `json:"parse_time"`
	Incremental bool          `json:"incremental"`
	Bytes       int           `json:"bytes"`
	Err         string        `json:"error,omitempty"`
}

// Report is the outcome of a replay.
type Report struct {
	Frames []Frame             `json:"frames"`
	Final  playground.Snapshot `json:"final"`
}

// Runner replays scripts against a running controller.
type Runner struct {
	c      *playground.Controller
	units  edit.Units
	poll   time.Duration
	logger *slog.Logger
}

// NewRunner creates a runner for c, whose input positions are measured in
// units.
func NewRunner(c *playground.Controller, units edit.Units, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{c: c, units: units, poll: DefaultPollInterval, logger: logger}
}

// Run opens the script text and applies every step, waiting for the outline
// to settle after each. Step failures are recorded in their frame and do not
// stop the replay.
func (r *Runner) Run(ctx context.Context, script *Script) (*Report, error) {
	report := &Report{}

	err := r.c.Open(ctx, script.Text, script.Grammar)

	snap, settleErr := Settle(ctx, r.c, r.poll)
	if settleErr != nil {
		return nil, settleErr
	}

	report.Frames = append(report.Frames, frame(0, "open", "open", snap, err))

	for i, step := range script.Steps {
		err = r.apply(ctx, step, snap.Text)

		snap, settleErr = Settle(ctx, r.c, r.poll)
		if settleErr != nil {
			return nil, settleErr
		}

		f := frame(i+1, step.Label(), step.Op(), snap, err)
		report.Frames = append(report.Frames, f)

		r.logger.DebugContext(ctx, "replay step",
			"index", f.Index, "op", f.Op, "generation", f.Generation, "rows", f.Rows)
	}

	report.Final = snap

	return report, nil
}

func (r *Runner) apply(ctx context.Context, step Step, text string) error {
	switch {
	case step.Edit != nil:
		to := step.Edit.From
		if step.Edit.To != nil {
			to = *step.Edit.To
		}

		delta, err := document.New(text, r.units).DeltaFor(step.Edit.From, to, step.Edit.Text)
		if err != nil {
			return err
		}

		return r.c.Edit(ctx, delta)
	case step.Caret != nil:
		head := step.Caret.Anchor
		if step.Caret.Head != nil {
			head = *step.Caret.Head
		}

		return r.c.MoveCaret(ctx, step.Caret.Anchor, head)
	case step.Grammar != "":
		return r.c.SelectGrammar(ctx, step.Grammar)
	case step.Click != nil:
		_, err := r.c.Click(ctx, *step.Click)

		return err
	case step.Logging != nil:
		return r.c.SetLogging(ctx, *step.Logging)
	default:
		return fmt.Errorf("%w: step without an action", ErrInvalidScript)
	}
}

// Settle polls c every poll until its outline reflects the latest parse and
// returns that snapshot.
func Settle(ctx context.Context, c *playground.Controller, poll time.Duration) (playground.Snapshot, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		snap, err := c.Snapshot(ctx)
		if err != nil {
			return playground.Snapshot{}, err
		}

		if snap.Settled() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return playground.Snapshot{}, fmt.Errorf("replay: waiting for outline: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func frame(index int, label, op string, snap playground.Snapshot, err error) Frame {
	f := Frame{
		Index:       index,
		Label:       label,
		Op:          op,
		Grammar:     snap.Grammar,
		Generation:  snap.Generation,
		Rows:        len(snap.Rows),
		ParseTime:   snap.Parse.Duration,
		Incremental: snap.Parse.Incremental,
		Bytes:       snap.Parse.Bytes,
	}

	if snap.Highlighted >= 0 && snap.Highlighted < len(snap.Rows) {
		row := snap.Rows[snap.Highlighted]
		f.Highlighted = fmt.Sprintf("%s %s-%s", row.Label, row.Start, row.End)
	}

	switch {
	case err != nil:
		f.Err = err.Error()
	case snap.GrammarError != "" && (op == "grammar" || op == "open"):
		f.Err = snap.GrammarError
	}

	return f
}
