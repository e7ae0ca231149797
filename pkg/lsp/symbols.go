package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
)

// buildSymbols nests outline rows into a document symbol tree by depth.
func buildSymbols(rows []outline.Row, toRange func(start, end edit.Position) protocol.Range) []protocol.DocumentSymbol {
	var roots []protocol.DocumentSymbol

	// stack holds the path of open symbols; children are attached on pop.
	type frame struct {
		depth  int
		symbol protocol.DocumentSymbol
	}

	var stack []frame

	pop := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(stack) == 0 {
			roots = append(roots, top.symbol)

			return
		}

		parent := &stack[len(stack)-1].symbol
		parent.Children = append(parent.Children, top.symbol)
	}

	for _, row := range rows {
		for len(stack) > 0 && stack[len(stack)-1].depth >= row.Depth {
			pop()
		}

		rng := toRange(row.Start, row.End)
		detail := row.Start.String() + " - " + row.End.String()

		stack = append(stack, frame{
			depth: row.Depth,
			symbol: protocol.DocumentSymbol{
				Name:           row.Label,
				Detail:         &detail,
				Kind:           symbolKind(row.Label),
				Range:          rng,
				SelectionRange: rng,
			},
		})
	}

	for len(stack) > 0 {
		pop()
	}

	return roots
}

func symbolKind(label string) protocol.SymbolKind {
	switch {
	case label == errorNodeType || strings.HasPrefix(label, syntax.MissingPrefix):
		return protocol.SymbolKindNull
	case label == "program" || label == "source_file" || label == "module":
		return protocol.SymbolKindNamespace
	case strings.Contains(label, "function") || strings.Contains(label, "method"):
		return protocol.SymbolKindFunction
	case strings.Contains(label, "class"):
		return protocol.SymbolKindClass
	case strings.Contains(label, "identifier"):
		return protocol.SymbolKindVariable
	case strings.Contains(label, "string"):
		return protocol.SymbolKindString
	case strings.Contains(label, "number") || strings.Contains(label, "integer") || strings.Contains(label, "float"):
		return protocol.SymbolKindNumber
	default:
		return protocol.SymbolKindObject
	}
}
