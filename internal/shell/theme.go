package shell

import "github.com/charmbracelet/lipgloss"

// Theme holds the shell's styles.
type Theme struct {
	Prompt lipgloss.Style
	Input  lipgloss.Style
	Error  lipgloss.Style
	Dim    lipgloss.Style
}

// NewDefaultTheme returns the default styles. r decides whether color is
// emitted; nil uses the default renderer.
func NewDefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Theme{
		Prompt: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		Input:  r.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		Error:  r.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		Dim:    r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}
