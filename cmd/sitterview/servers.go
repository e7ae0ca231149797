package main

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/pkg/lsp"
	"github.com/Sumatoshi-tech/sitterview/pkg/mcp"
	"github.com/Sumatoshi-tech/sitterview/pkg/observability"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax"
	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
)

func lspCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the language server (stdio)",
		Long: `Start a language server on stdio. It keeps one incrementally parsed document
and serves its outline as document symbols, missing and error nodes as
diagnostics, and the node under the cursor as hover text.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), flags, observability.ModeLSP)
			if err != nil {
				return err
			}
			defer e.close()

			srv := lsp.NewServer(sitter.NewParser(), sitter.NewLoader(), lsp.Options{
				DefaultGrammar:  e.cfg.Editor.Grammar,
				TrailingNewline: e.cfg.Editor.TrailingNewline,
				Detect:          sitter.DetectLanguage,
				Logger:          e.logger,
				Metrics:         e.session,
				RED:             e.red,
				Tracer:          e.providers.Tracer,
			})
			defer srv.Close()

			return srv.RunStdio()
		},
	}
}

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server (stdio)",
		Long: `Start a Model Context Protocol server on stdio transport. It exposes:
  - sitterview_outline: parse code and return its outline rows
  - sitterview_node_at: find the outline row of the node at a position
  - sitterview_edit: translate a text replacement into a tree edit
  - sitterview_languages: list the available grammars`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), flags, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer e.close()

			srv := mcp.NewServer(mcp.ServerDeps{
				NewParser:      func() syntax.Parser { return sitter.NewParser() },
				Loader:         sitter.NewLoader(),
				Languages:      sitter.Languages(),
				Logger:         e.logger,
				Metrics:        e.red,
				SessionMetrics: e.session,
				Tracer:         e.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}
}
