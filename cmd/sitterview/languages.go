package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/pkg/syntax/sitter"
)

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages [files...]",
		Short: "List grammars, or the grammar detected for each file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				writeLanguages(cmd.OutOrStdout(), sitter.Languages())

				return nil
			}

			return writeDetected(cmd.OutOrStdout(), args)
		},
	}
}

func writeLanguages(w io.Writer, names []string) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"Grammar"})

	for _, name := range names {
		tbl.AppendRow(table.Row{name})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d", len(names))})
	tbl.Render()
}

func writeDetected(w io.Writer, paths []string) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"File", "Grammar"})

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		name := sitter.DetectLanguage(path, data)
		if name == "" {
			name = "-"
		}

		tbl.AppendRow(table.Row{path, name})
	}

	tbl.Render()

	return nil
}
