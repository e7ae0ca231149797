// Package syntaxtest provides in-memory syntax trees and a toy parser for
// exercising code that consumes the syntax capabilities without cgo.
package syntaxtest

import (
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// Spec describes a node of a hand-built tree.
type Spec struct {
	Type     string
	Named    bool
	Missing  bool
	Start    edit.Position
	End      edit.Position
	Children []Spec
}

// Named returns a named node spec.
func Named(typ string, start, end edit.Position, children ...Spec) Spec {
	return Spec{Type: typ, Named: true, Start: start, End: end, Children: children}
}

// Anon returns an unnamed node spec.
func Anon(typ string, start, end edit.Position) Spec {
	return Spec{Type: typ, Start: start, End: end}
}

// Missing returns a zero-width missing node spec at p.
func Missing(typ string, p edit.Position) Spec {
	return Spec{Type: typ, Missing: true, Start: p, End: p}
}

var nextID atomic.Uint64

type node struct {
	syntax.Node

	parent   *node
	children []*node
}

// Tree is an in-memory syntax.Tree.
type Tree struct {
	root *node

	mu          sync.Mutex
	edits       []edit.Descriptor
	openCursors int
	closed      bool
}

// Build creates a tree from spec. Every node gets a fresh unique ID.
func Build(spec Spec) *Tree {
	return &Tree{root: build(spec, nil)}
}

func build(spec Spec, parent *node) *node {
	n := &node{
		Node: syntax.Node{
			ID:      syntax.NodeID(nextID.Add(1)),
			Type:    spec.Type,
			Named:   spec.Named,
			Missing: spec.Missing,
			Start:   spec.Start,
			End:     spec.End,
		},
		parent: parent,
	}

	for _, child := range spec.Children {
		n.children = append(n.children, build(child, n))
	}

	return n
}

// Edit records d.
func (t *Tree) Edit(d edit.Descriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.edits = append(t.edits, d)
}

// Edits returns the descriptors applied so far.
func (t *Tree) Edits() []edit.Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]edit.Descriptor, len(t.edits))
	copy(out, t.edits)

	return out
}

// RootNode returns the root snapshot.
func (t *Tree) RootNode() syntax.Node {
	return t.root.Node
}

// Walk returns a cursor at the root.
func (t *Tree) Walk() syntax.Cursor {
	t.mu.Lock()
	t.openCursors++
	t.mu.Unlock()

	return &Cursor{tree: t, current: t.root}
}

// OpenCursors reports cursors not yet closed.
func (t *Tree) OpenCursors() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.openCursors
}

// Close marks the tree closed.
func (t *Tree) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
}

// Closed reports whether Close was called.
func (t *Tree) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// NamedDescendantForRange follows the tree-sitter descent rules: step into
// the first child that reaches the end of the range and extends past its
// start, remembering the deepest named node seen.
func (t *Tree) NamedDescendantForRange(start, end edit.Position) (syntax.Node, bool) {
	if edit.Compare(t.root.Start, start) > 0 || edit.Compare(t.root.End, end) < 0 {
		return syntax.Node{}, false
	}

	current := t.root
	last := t.root

	for {
		var next *node

		for _, child := range current.children {
			if edit.Compare(child.End, end) < 0 {
				continue
			}

			if edit.Compare(child.End, start) <= 0 && edit.Compare(child.Start, child.End) < 0 {
				continue
			}

			if edit.Compare(start, child.Start) < 0 {
				break
			}

			next = child

			break
		}

		if next == nil {
			break
		}

		current = next
		if current.Named {
			last = current
		}
	}

	return last.Node, last.Named
}

// Find returns the first node of typ in pre-order.
func (t *Tree) Find(typ string) (syntax.Node, bool) {
	stack := []*node{t.root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type == typ {
			return n.Node, true
		}

		for i := len(n.children) - 1; i >= 0; i-- {
			stack = append(stack, n.children[i])
		}
	}

	return syntax.Node{}, false
}

// Cursor is a syntax.Cursor over a Tree.
type Cursor struct {
	tree    *Tree
	current *node
	closed  bool
}

// Node returns the current node.
func (c *Cursor) Node() syntax.Node {
	return c.current.Node
}

// GotoFirstChild moves to the first child.
func (c *Cursor) GotoFirstChild() bool {
	if len(c.current.children) == 0 {
		return false
	}

	c.current = c.current.children[0]

	return true
}

// GotoNextSibling moves to the next sibling.
func (c *Cursor) GotoNextSibling() bool {
	parent := c.current.parent
	if parent == nil {
		return false
	}

	for i, sibling := range parent.children {
		if sibling == c.current && i+1 < len(parent.children) {
			c.current = parent.children[i+1]

			return true
		}
	}

	return false
}

// GotoParent moves to the parent.
func (c *Cursor) GotoParent() bool {
	if c.current.parent == nil {
		return false
	}

	c.current = c.current.parent

	return true
}

// Close releases the cursor. Closing twice is a no-op.
func (c *Cursor) Close() {
	if c.closed {
		return
	}

	c.closed = true

	c.tree.mu.Lock()
	c.tree.openCursors--
	c.tree.mu.Unlock()
}
