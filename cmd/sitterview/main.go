// Package main provides the sitterview CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sitterview/pkg/version"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	quiet      bool
}

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "sitterview",
		Short: "Incremental syntax tree outline playground",
		Long: `sitterview parses text with tree-sitter grammars, keeps the tree up to date
as the text is edited and shows it as a flat, indented outline that follows
the caret.

Commands:
  parse      Print the outline of a file
  explore    Edit a file with a live outline in the terminal
  watch      Follow a file on disk and report every reparse
  replay     Run a scripted editing session and report each step
  lsp        Serve outlines and syntax diagnostics over LSP (stdio)
  mcp        Serve outline tools over MCP (stdio)
  languages  List the available grammars`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is .sitterview.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(parseCmd(flags))
	rootCmd.AddCommand(exploreCmd(flags))
	rootCmd.AddCommand(watchCmd(flags))
	rootCmd.AddCommand(replayCmd(flags))
	rootCmd.AddCommand(lspCmd(flags))
	rootCmd.AddCommand(mcpCmd(flags))
	rootCmd.AddCommand(languagesCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String("sitterview"))
		},
	}
}
