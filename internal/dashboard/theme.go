package dashboard

import "github.com/charmbracelet/lipgloss"

// Theme — цвета и стили dashboard.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Danger  lipgloss.Color
	Info    lipgloss.Color
	Muted   lipgloss.Color

	TitleStyle    lipgloss.Style
	HeaderStyle   lipgloss.Style
	LogStyle      lipgloss.Style
	LabelStyle    lipgloss.Style
	CodeStyle     lipgloss.Style
	SuccessStyle  lipgloss.Style
	ErrorStyle    lipgloss.Style
	InfoStyle     lipgloss.Style
	NodeStyle     lipgloss.Style
	CurrentStyle  lipgloss.Style
	BannerStyle   lipgloss.Style
	HelpStyle     lipgloss.Style
	PanelStyle    lipgloss.Style
	RetryEdgeNote lipgloss.Style
}

// DefaultTheme возвращает тему по умолчанию.
func DefaultTheme() *Theme {
	t := &Theme{
		Primary: lipgloss.Color("#7D56F4"),
		Success: lipgloss.Color("#04B575"),
		Danger:  lipgloss.Color("#FF4672"),
		Info:    lipgloss.Color("#3C9EE7"),
		Muted:   lipgloss.Color("#767676"),
	}

	t.TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	t.HeaderStyle = lipgloss.NewStyle().Bold(true)
	t.LogStyle = lipgloss.NewStyle().Foreground(t.Muted)
	t.LabelStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	t.CodeStyle = lipgloss.NewStyle().PaddingLeft(4)
	t.SuccessStyle = lipgloss.NewStyle().Foreground(t.Success)
	t.ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Danger)
	t.InfoStyle = lipgloss.NewStyle().Foreground(t.Info)
	t.NodeStyle = lipgloss.NewStyle().Foreground(t.Muted)
	t.CurrentStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Reverse(true)
	t.BannerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Success).
		Border(lipgloss.DoubleBorder()).
		BorderForeground(t.Success).
		Padding(0, 2)
	t.HelpStyle = lipgloss.NewStyle().Foreground(t.Muted).Italic(true)
	t.PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(0, 1)
	t.RetryEdgeNote = lipgloss.NewStyle().Foreground(t.Danger).Italic(true)

	return t
}
