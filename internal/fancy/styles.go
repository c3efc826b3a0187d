package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Common styles that can be used across the application
var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	ParticipantStyle = lipgloss.NewStyle().
				Foreground(ColorCyan)

	ClientStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	CommittedStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	AbortedStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// ParticipantText styles a participant name
func ParticipantText(text string) string {
	return ParticipantStyle.Render(text)
}

// ClientText styles a client identifier
func ClientText(text string) string {
	return ClientStyle.Render(text)
}

// PhaseText styles a transaction phase by its outcome color: green for
// committed, red for aborted and rolling back, yellow for anything still
// in flight.
func PhaseText(phase string) string {
	switch phase {
	case "committed":
		return CommittedStyle.Render(phase)
	case "aborted", "rolling_back":
		return AbortedStyle.Render(phase)
	default:
		return PendingStyle.Render(phase)
	}
}

// KeyText styles a store key
func KeyText(text string) string {
	return KeyStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// CountText styles count numbers (cyan)
func CountText(text string) string {
	return ParticipantStyle.Render(text)
}

// SummaryText styles summary information (dark gray)
func SummaryText(text string) string {
	return BranchStyle.Render(text)
}
