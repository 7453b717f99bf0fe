package cli

import "github.com/charmbracelet/lipgloss"

// Theme holds the lipgloss styles shared by the CLI commands.
type Theme struct {
	Title     lipgloss.Style
	Subtle    lipgloss.Style
	Highlight lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Box       lipgloss.Style
}

// DefaultTheme returns the dark terminal theme.
func DefaultTheme() *Theme {
	accent := lipgloss.Color("#7aa2f7")
	muted := lipgloss.Color("#565f89")
	return &Theme{
		Title:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		Subtle:    lipgloss.NewStyle().Foreground(muted),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5")).Bold(true),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
	}
}
