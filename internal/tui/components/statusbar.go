package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/etp/internal/tui/styles"
)

// StatusBar renders a bottom help bar showing contextual help items, with
// an optional status message aligned to the right.
type StatusBar struct{}

// NewStatusBar creates a new StatusBar instance.
func NewStatusBar() StatusBar {
	return StatusBar{}
}

// Render returns the status bar string for the given width and items.
// Items are joined with " • ". The right text is dropped when both do not
// fit on one line.
func (s StatusBar) Render(width int, items []string, right string) string {
	content := strings.Join(items, " • ")
	if right != "" {
		gap := width - lipgloss.Width(content) - lipgloss.Width(right)
		if gap >= 2 {
			content += strings.Repeat(" ", gap) + right
		}
	}
	return styles.StatusBarStyle.Width(width).MaxHeight(1).Render(content)
}
