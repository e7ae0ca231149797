package sitter

import (
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// tsNodeFull maps the TSNode struct including the id pointer.
// TSNode layout (64-bit):
//
//	Offset  0: context[4] (16 bytes)
//	Offset 16: id (8 bytes, pointer to Subtree union)
//	Offset 24: tree (8 bytes, pointer to TSTree)
//
// sitter.Node wraps this as struct { c C.TSNode }, so a *sitter.Node can be
// read as a *tsNodeFull.
type tsNodeFull struct {
	context [4]uint32
	id      unsafe.Pointer
	tree    unsafe.Pointer
}

// nodeID reads the TSNode id without a cgo call. The id is the address of
// the node's subtree, stable for the tree's lifetime.
func nodeID(n *sitter.Node) syntax.NodeID {
	full := (*tsNodeFull)(unsafe.Pointer(n))

	return syntax.NodeID(uintptr(full.id))
}

func convertNode(n sitter.Node) syntax.Node {
	return syntax.Node{
		ID:      nodeID(&n),
		Type:    n.Type(),
		Named:   n.IsNamed(),
		Missing: n.IsMissing(),
		Start:   position(n.StartPoint()),
		End:     position(n.EndPoint()),
	}
}

func position(p sitter.Point) edit.Position {
	return edit.Position{Row: uint32(p.Row), Column: uint32(p.Column)} //nolint:gosec // tree-sitter points are 32-bit
}

func point(p edit.Position) sitter.Point {
	return sitter.Point{Row: uint(p.Row), Column: uint(p.Column)}
}

// Tree wraps a tree-sitter tree.
type Tree struct {
	ts *sitter.Tree
}

// Edit adjusts the tree for a text change. Offsets and columns are bytes.
func (t *Tree) Edit(d edit.Descriptor) {
	t.ts.Edit(sitter.InputEdit{
		StartIndex:  uint(d.StartOffset),
		OldEndIndex: uint(d.OldEndOffset),
		NewEndIndex: uint(d.NewEndOffset),
		StartPoint:  point(d.StartPosition),
		OldEndPoint: point(d.OldEndPosition),
		NewEndPoint: point(d.NewEndPosition),
	})
}

// RootNode returns the root snapshot.
func (t *Tree) RootNode() syntax.Node {
	return convertNode(t.ts.RootNode())
}

// Walk returns a cursor at the root.
func (t *Tree) Walk() syntax.Cursor {
	return &Cursor{tc: sitter.NewTreeCursor(t.ts.RootNode())}
}

// NamedDescendantForRange returns the smallest named node spanning the range.
func (t *Tree) NamedDescendantForRange(start, end edit.Position) (syntax.Node, bool) {
	n := t.ts.RootNode().NamedDescendantForPointRange(point(start), point(end))
	if n.IsNull() {
		return syntax.Node{}, false
	}

	return convertNode(n), true
}

// Close releases the tree.
func (t *Tree) Close() {
	t.ts.Close()
}

// Cursor wraps a tree-sitter tree cursor. It must not be used after Close.
type Cursor struct {
	tc     *sitter.TreeCursor
	closed bool
}

// Node returns the current node.
func (c *Cursor) Node() syntax.Node {
	return convertNode(c.tc.CurrentNode())
}

// GotoFirstChild moves to the first child.
func (c *Cursor) GotoFirstChild() bool {
	return c.tc.GoToFirstChild()
}

// GotoNextSibling moves to the next sibling.
func (c *Cursor) GotoNextSibling() bool {
	return c.tc.GoToNextSibling()
}

// GotoParent moves to the parent.
func (c *Cursor) GotoParent() bool {
	return c.tc.GoToParent()
}

// Close drops the cursor. The binding frees the C cursor through a runtime
// cleanup once it is unreachable. Closing twice is a no-op.
func (c *Cursor) Close() {
	c.closed = true
	c.tc = nil
}

// Closed reports whether Close was called.
func (c *Cursor) Closed() bool {
	return c.closed
}
