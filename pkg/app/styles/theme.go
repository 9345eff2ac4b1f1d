package styles

import "github.com/charmbracelet/lipgloss"

// Palette. Adaptive colors keep the views readable on light terminals.
var (
	Accent  = lipgloss.AdaptiveColor{Light: "#B4235A", Dark: "#F2709C"}
	Paper   = lipgloss.AdaptiveColor{Light: "#6B4E9B", Dark: "#C3A6F0"}
	Ink     = lipgloss.AdaptiveColor{Light: "#1E1E1E", Dark: "#ECECEC"}
	Faded   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#5C6B73"}
	Done    = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#A5D6A7"}
	Caution = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFCC80"}
	Fault   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF9A9A"}
	Working = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#90CAF9"}
)

// Text
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Paper).
			Italic(true)

	TextStyle  = lipgloss.NewStyle().Foreground(Ink)
	MutedStyle = lipgloss.NewStyle().Foreground(Faded)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Faded).
			Italic(true).
			MarginTop(1)
)

// Boxes
var (
	// SelectedStyle marks the highlighted row of a list.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Accent).
			Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Paper).
			Padding(0, 2).
			MarginBottom(1)

	ActiveCardStyle = CardStyle.
			Border(lipgloss.ThickBorder()).
			BorderForeground(Accent)
)

// Status and progress
var (
	StatusProcessing = lipgloss.NewStyle().Foreground(Working).Bold(true)
	StatusCompleted  = lipgloss.NewStyle().Foreground(Done).Bold(true)
	StatusWarning    = lipgloss.NewStyle().Foreground(Caution)
	StatusError      = lipgloss.NewStyle().Foreground(Fault).Bold(true)

	ProgressBarStyle   = lipgloss.NewStyle().Foreground(Accent)
	ProgressEmptyStyle = lipgloss.NewStyle().Foreground(Faded)
)

// StatusStyle picks the style of a run or comic status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "processing":
		return StatusProcessing
	case "completed":
		return StatusCompleted
	case "partial":
		return StatusWarning
	case "error", "failed":
		return StatusError
	default:
		return MutedStyle
	}
}
