package clifmt

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#01cdfe"))
	keyStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb86c"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff71ce")).Bold(true)
)

func Headerf(format string, args ...any) string {
	return headerStyle.Render(fmt.Sprintf(format, args...))
}

func Key(s string) string     { return keyStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }
func Warn(s string) string    { return warnStyle.Render(s) }
func Success(s string) string { return successStyle.Render(s) }
func Error(s string) string   { return errorStyle.Render(s) }

// Status colors an agreement status for listings.
func Status(status string) string {
	switch status {
	case "accepted":
		return Success(status)
	case "pending":
		return Warn(status)
	case "canceled", "expired":
		return Dim(status)
	default:
		return status
	}
}
