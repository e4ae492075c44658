package report

import "github.com/charmbracelet/lipgloss"

// Design tokens for terminal reports.
var (
	Accent  = lipgloss.Color("#3B82F6")
	Success = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#22C55E"}
	Warning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}

	TextPrimary   = lipgloss.Color("#F8FAFC")
	TextSecondary = lipgloss.Color("#CBD5E1")
	TextMuted     = lipgloss.Color("#94A3B8")

	Border = lipgloss.Color("#3A3A3A")
)

var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(TextPrimary).
	Background(Accent).
	Padding(0, 1)

var Box = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(0, 1)

var (
	Label   = lipgloss.NewStyle().Foreground(TextMuted)
	Value   = lipgloss.NewStyle().Foreground(TextSecondary)
	Good    = lipgloss.NewStyle().Foreground(Success)
	Alert   = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	Divider = lipgloss.NewStyle().Foreground(Border)
)
