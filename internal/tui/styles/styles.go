// Package styles defines shared lipgloss styles for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/etp/internal/statustree"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#5FAFAF") // Teal accent
	SecondaryColor = lipgloss.Color("#666666") // Gray for secondary text
	successColor   = lipgloss.Color("#87AF87") // Muted sage for success
	errorColor     = lipgloss.Color("#AF5F5F") // Muted terracotta for errors
	warningColor   = lipgloss.Color("#D7AF5F") // Ochre for undone nodes

	// TitleStyle for headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SubtleStyle for hints/help text
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	// SelectedStyle for selected items in lists
	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// StatusBarStyle for bottom status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	// BoxStyle for panel borders
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(SecondaryColor).
			Padding(0, 1)

	// FocusedBoxStyle for the panel receiving keys
	FocusedBoxStyle = BoxStyle.
			BorderForeground(PrimaryColor)

	// SuccessStyle for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// ErrorStyle for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// WarningStyle for undone nodes and warnings
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)
)

// Status renders the status label of n in its color.
func Status(n *statustree.Node) string {
	if n.Undone {
		return WarningStyle.Render("UNDONE")
	}
	label := n.Status.Label()
	switch {
	case n.Status.IsSuccess():
		return SuccessStyle.Render(label)
	case n.Status.IsFailure():
		return ErrorStyle.Render(label)
	default:
		return SelectedStyle.Render(label)
	}
}
