package report

import "github.com/charmbracelet/lipgloss"

const (
	colorRed      lipgloss.Color = "#f38ba8"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorBlue     lipgloss.Color = "#89b4fa"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

type styles struct {
	heading  lipgloss.Style
	label    lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
	number   lipgloss.Style
	negative lipgloss.Style
	positive lipgloss.Style
	muted    lipgloss.Style
	border   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading:  r.NewStyle().Bold(true).Foreground(colorBlue),
		label:    r.NewStyle().Width(25).Align(lipgloss.Right),
		header:   r.NewStyle().Bold(true).Padding(0, 1),
		cell:     r.NewStyle().Padding(0, 1),
		number:   r.NewStyle().Padding(0, 1).Align(lipgloss.Right),
		negative: r.NewStyle().Foreground(colorRed),
		positive: r.NewStyle().Foreground(colorGreen),
		muted:    r.NewStyle().Foreground(colorOverlay1),
		border:   r.NewStyle().Foreground(colorSurface1),
	}
}
