// Package syntax defines the parser capabilities the outline playground
// consumes: a parser that re-parses incrementally against a previous tree,
// trees that accept edits in place, and cursors for iterative traversal.
//
// Implementations live in subpackages: sitter binds tree-sitter, and
// syntaxtest provides an in-memory parser for tests.
package syntax

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
)

// Sentinel errors shared by parser implementations.
var (
	// ErrNoGrammar indicates a parse attempted before any grammar was set.
	ErrNoGrammar = errors.New("syntax: no grammar set")
	// ErrUnknownGrammar indicates a grammar name the loader cannot resolve.
	ErrUnknownGrammar = errors.New("syntax: unknown grammar")
	// ErrForeignGrammar indicates a grammar built by a different implementation.
	ErrForeignGrammar = errors.New("syntax: grammar from another implementation")
	// ErrForeignTree indicates a previous tree built by a different implementation.
	ErrForeignTree = errors.New("syntax: tree from another implementation")
	// ErrParseFailed indicates the parser produced no tree at all.
	ErrParseFailed = errors.New("syntax: parse failed")
)

// MissingPrefix is prepended to the label of nodes inserted by error recovery.
const MissingPrefix = "MISSING "

// NodeID identifies a node within one tree. IDs are unique per tree; after an
// incremental re-parse, reused subtrees may keep their IDs.
type NodeID uint64

// Node is a value snapshot of a syntax node.
type Node struct {
	ID      NodeID        `json:"id"`
	Type    string        `json:"type"`
	Named   bool          `json:"named"`
	Missing bool          `json:"missing,omitempty"`
	Start   edit.Position `json:"start"`
	End     edit.Position `json:"end"`
}

// Label returns the display label of the node.
func (n Node) Label() string {
	if n.Missing {
		return MissingPrefix + n.Type
	}

	return n.Type
}

// Visible reports whether the node gets an outline row.
func (n Node) Visible() bool {
	return n.Named || n.Missing
}

// Cursor walks a tree iteratively. A cursor must be closed when done.
type Cursor interface {
	Node() Node
	GotoFirstChild() bool
	GotoNextSibling() bool
	GotoParent() bool
	Close()
}

// Tree is a parsed syntax tree. It is mutable in place through Edit and is
// not safe for concurrent use.
type Tree interface {
	// Edit adjusts the tree for a text change so the next parse can reuse
	// unchanged subtrees.
	Edit(d edit.Descriptor)
	// Walk returns a cursor positioned at the root.
	Walk() Cursor
	RootNode() Node
	// NamedDescendantForRange returns the smallest named node spanning
	// [start, end].
	NamedDescendantForRange(start, end edit.Position) (Node, bool)
	Close()
}

// Grammar is a loaded language grammar.
type Grammar interface {
	Name() string
}

// GrammarLoader resolves grammars by name. Implementations must be safe for
// concurrent use.
type GrammarLoader interface {
	Load(ctx context.Context, name string) (Grammar, error)
}

// GrammarLoaderFunc adapts a function to GrammarLoader.
type GrammarLoaderFunc func(ctx context.Context, name string) (Grammar, error)

// Load calls f.
func (f GrammarLoaderFunc) Load(ctx context.Context, name string) (Grammar, error) {
	return f(ctx, name)
}

// LogKind classifies parser diagnostic messages.
type LogKind int

// Parser diagnostic kinds.
const (
	LogParse LogKind = iota
	LogLex
)

func (k LogKind) String() string {
	if k == LogLex {
		return "lex"
	}

	return "parse"
}

// Logger receives parser diagnostics.
type Logger func(kind LogKind, message string)

// Parser turns text into trees. Parse may reuse previous when it was edited
// to match text.
type Parser interface {
	SetGrammar(g Grammar) error
	Parse(ctx context.Context, text []byte, previous Tree) (Tree, error)
	// SetLogger installs a diagnostic hook; nil disables it.
	SetLogger(l Logger)
	// Units reports how the parser measures columns and offsets.
	Units() edit.Units
	Close()
}
