package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#2e7d4f")
	muted   = lipgloss.Color("#737373")
	danger  = lipgloss.Color("#ef4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fafafa")).
			Background(primary).
			Padding(0, 1)

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a3a3a3"))

	activeModeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fafafa"))

	labelBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(1, 4).
			MarginTop(1).
			Bold(true)

	unrecognizedStyle = lipgloss.NewStyle().Foreground(muted).Italic(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(danger).
			Bold(true).
			MarginTop(1)

	dimStyle = lipgloss.NewStyle().Foreground(muted)
)

// categoryColors tints the label by waste category.
var categoryColors = map[string]lipgloss.Color{
	"plastic":   lipgloss.Color("#f59e0b"),
	"glass":     lipgloss.Color("#10b981"),
	"metal":     lipgloss.Color("#9ca3af"),
	"paper":     lipgloss.Color("#3b82f6"),
	"cardboard": lipgloss.Color("#b45309"),
	"organic":   lipgloss.Color("#84cc16"),
	"battery":   lipgloss.Color("#ef4444"),
	"textile":   lipgloss.Color("#a78bfa"),
}

func labelColor(label string) lipgloss.Color {
	if c, ok := categoryColors[label]; ok {
		return c
	}
	return lipgloss.Color("#fafafa")
}
