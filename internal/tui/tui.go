package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sumatoshi-tech/sitterview/pkg/outline"
)

// Run launches the explorer and blocks until the user quits or ctx is done.
// The controller must already be running and opened with text.
func Run(ctx context.Context, ctrl Controller, list *outline.Buffer, text string) error {
	program := tea.NewProgram(New(ctx, ctrl, list, text), tea.WithContext(ctx), tea.WithAltScreen())

	_, err := program.Run()
	if err != nil {
		return fmt.Errorf("running explorer: %w", err)
	}

	return nil
}
