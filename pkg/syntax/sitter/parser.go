package sitter

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// ErrParserClosed is returned by a Parser after Close.
var ErrParserClosed = errors.New("sitter: parser closed")

// Parser wraps a tree-sitter parser. It is not safe for concurrent use.
type Parser struct {
	ts      *sitter.Parser
	grammar *Grammar
	logger  syntax.Logger
}

// NewParser creates a parser with no grammar.
func NewParser() *Parser {
	return &Parser{ts: sitter.NewParser()}
}

// SetGrammar sets the language of subsequent parses.
func (p *Parser) SetGrammar(g syntax.Grammar) error {
	if p.ts == nil {
		return ErrParserClosed
	}

	tg, ok := g.(*Grammar)
	if !ok {
		return fmt.Errorf("%w: %T", syntax.ErrForeignGrammar, g)
	}

	p.ts.SetLanguage(tg.lang)
	p.grammar = tg

	return nil
}

// SetLogger installs the diagnostic hook. The binding only accepts a C
// logger, so the hook does not see tree-sitter's own lexer and parser
// output: it receives two messages per parse written here, one before
// parsing and one with the resulting root.
func (p *Parser) SetLogger(l syntax.Logger) {
	p.logger = l
}

// Units reports byte columns and offsets.
func (p *Parser) Units() edit.Units {
	return edit.Bytes
}

// Parse parses text, reusing previous when it was edited to match.
func (p *Parser) Parse(ctx context.Context, text []byte, previous syntax.Tree) (syntax.Tree, error) {
	if p.ts == nil {
		return nil, ErrParserClosed
	}

	if p.grammar == nil {
		return nil, syntax.ErrNoGrammar
	}

	var old *sitter.Tree

	if previous != nil {
		prev, ok := previous.(*Tree)
		if !ok {
			return nil, fmt.Errorf("%w: %T", syntax.ErrForeignTree, previous)
		}

		old = prev.ts
	}

	p.logf(syntax.LogParse, "new_parse language:%s, bytes:%d, incremental:%t", p.grammar.name, len(text), old != nil)

	tree, err := p.ts.ParseString(ctx, old, text)
	if err != nil {
		return nil, fmt.Errorf("sitter: parse %s: %w", p.grammar.name, err)
	}

	if tree == nil {
		return nil, fmt.Errorf("%w: %s", syntax.ErrParseFailed, p.grammar.name)
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()

		return nil, fmt.Errorf("%w: %s: no root node", syntax.ErrParseFailed, p.grammar.name)
	}

	p.logf(syntax.LogParse, "done root:%s, has_error:%t", root.Type(), root.HasError())

	return &Tree{ts: tree}, nil
}

// Close drops the parser. The binding frees the C parser through a runtime
// cleanup once it is unreachable. Trees already returned stay valid.
func (p *Parser) Close() {
	p.ts = nil
	p.grammar = nil
}

func (p *Parser) logf(kind syntax.LogKind, format string, args ...any) {
	if p.logger == nil {
		return
	}

	p.logger(kind, fmt.Sprintf(format, args...))
}
