package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("62"))

	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))

	busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("221"))

	t1Style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("117"))

	t2Style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))

	todayRowStyle = lipgloss.NewStyle().Bold(true)
)
