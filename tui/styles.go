package tui

import "github.com/charmbracelet/lipgloss"

var (
	selectedColor = lipgloss.Color("205")
	infoColor     = lipgloss.Color("244")
	errorColor    = lipgloss.Color("196")

	titleStyle    = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Foreground(selectedColor).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(infoColor).MarginTop(1)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	busyStyle     = lipgloss.NewStyle().Foreground(infoColor).Italic(true)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(infoColor).Padding(0, 1)
)

func cursorLine(selected bool, text string) string {
	if selected {
		return selectedStyle.Render("> " + text)
	}
	return "  " + text
}
