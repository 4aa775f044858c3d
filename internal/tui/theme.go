package tui

import "github.com/charmbracelet/lipgloss"

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

var (
	colorAccent lipgloss.TerminalColor = ac("25", "75")
	colorMuted  lipgloss.TerminalColor = ac("240", "243")
	colorError  lipgloss.TerminalColor = ac("160", "203")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	modeStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	formStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1)
	focusStyle  = formStyle.BorderForeground(colorAccent)
	statusStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
	helpStyle   = lipgloss.NewStyle().Foreground(colorMuted).Faint(true)
)
