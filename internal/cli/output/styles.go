package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the terminal styles used in text mode.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
}

// NewStyles builds the styles against a lipgloss renderer so color output
// follows the destination writer rather than stdout. Without color every
// style is plain.
func NewStyles(lr *lipgloss.Renderer, color bool) *Styles {
	if !color {
		plain := lr.NewStyle()
		return &Styles{plain, plain, plain, plain, plain, plain, plain}
	}
	return &Styles{
		Header:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("8")),
		Key:     lr.NewStyle().Bold(true),
		Value:   lr.NewStyle(),
	}
}

// statusSymbols maps a status to its text-mode marker.
var statusSymbols = map[string]string{
	"success":   "✓",
	"rendered":  "✓",
	"completed": "✓",
	"skipped":   "○",
	"warning":   "!",
	"failed":    "✗",
	"error":     "✗",
	"running":   "…",
}

func (s *Styles) forStatus(status string) lipgloss.Style {
	switch status {
	case "success", "rendered", "completed":
		return s.Success
	case "skipped", "warning":
		return s.Warning
	case "failed", "error":
		return s.Error
	default:
		return s.Muted
	}
}
