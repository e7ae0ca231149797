// Package outline flattens syntax trees into display rows for a virtualized
// list and keeps a highlighted row in sync with the caret.
package outline

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// ErrStaleRender indicates a pass abandoned because a newer parse replaced
// the tree it was walking.
var ErrStaleRender = errors.New("outline: render superseded by a newer parse")

// DefaultBatchSize is the number of nodes a pass visits between yields.
const DefaultBatchSize = 10_000

// Row is one line of the outline: a named or missing node.
type Row struct {
	NodeID      syntax.NodeID `json:"node_id"`
	Label       string        `json:"label"`
	Depth       int           `json:"depth"`
	Start       edit.Position `json:"start"`
	End         edit.Position `json:"end"`
	Highlighted bool          `json:"highlighted,omitempty"`
}

// GenerationSource reports the current render generation.
type GenerationSource interface {
	Generation() uint64
}

// Pass is a resumable pre-order walk of one tree. Callers drive it with Step
// and check the generation between steps. A pass owns a cursor until it
// completes or is closed.
type Pass struct {
	cursor          syntax.Cursor
	generation      uint64
	rows            []Row
	depth           int
	visitedChildren bool
	done            bool
}

// NewPass starts a pass over tree for generation.
func NewPass(tree syntax.Tree, generation uint64) *Pass {
	return &Pass{
		cursor:     tree.Walk(),
		generation: generation,
	}
}

// Generation returns the generation the pass was started for.
func (p *Pass) Generation() uint64 {
	return p.generation
}

// Done reports whether the walk completed.
func (p *Pass) Done() bool {
	return p.done
}

// Rows returns the rows emitted so far.
func (p *Pass) Rows() []Row {
	return p.rows
}

// Step visits up to budget nodes and reports whether the walk completed.
// The cursor is released on completion.
func (p *Pass) Step(budget int) bool {
	if p.cursor == nil {
		return p.done
	}

	for visited := 0; visited < budget; {
		if p.visitedChildren {
			switch {
			case p.cursor.GotoNextSibling():
				p.visitedChildren = false
			case p.cursor.GotoParent():
				p.depth--
			default:
				p.done = true
				p.Close()

				return true
			}

			continue
		}

		visited++

		node := p.cursor.Node()
		if node.Visible() {
			p.rows = append(p.rows, Row{
				NodeID: node.ID,
				Label:  node.Label(),
				Depth:  p.depth,
				Start:  node.Start,
				End:    node.End,
			})
		}

		if p.cursor.GotoFirstChild() {
			p.depth++
		} else {
			p.visitedChildren = true
		}
	}

	return false
}

// Close releases the cursor. A closed pass that did not finish stays
// unfinished. Close is idempotent.
func (p *Pass) Close() {
	if p.cursor != nil {
		p.cursor.Close()
		p.cursor = nil
	}
}

// Options tunes Flatten.
type Options struct {
	// BatchSize is the number of nodes visited between yields; zero means
	// DefaultBatchSize.
	BatchSize int
	// Yield runs between batches, letting the caller service other work
	// before the generation is re-checked.
	Yield func()
}

// Flatten walks tree to completion, yielding every BatchSize nodes. It fails
// with ErrStaleRender when gens moves past the generation it started under,
// and with the context error when ctx is done.
func Flatten(ctx context.Context, tree syntax.Tree, gens GenerationSource, opts Options) ([]Row, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	pass := NewPass(tree, gens.Generation())
	defer pass.Close()

	for !pass.Step(batch) {
		if opts.Yield != nil {
			opts.Yield()
		}

		err := ctx.Err()
		if err != nil {
			return nil, err
		}

		if gens.Generation() != pass.Generation() {
			return nil, ErrStaleRender
		}
	}

	return pass.Rows(), nil
}
