package tui

import "github.com/charmbracelet/lipgloss"

const paneGap = 1

var (
	outlineStyle   = lipgloss.NewStyle()
	highlightStyle = lipgloss.NewStyle().Reverse(true).Bold(true)
	rangeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorRowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	matchStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("150")).Underline(true)
	grammarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("79"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true)
)
