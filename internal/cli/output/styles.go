package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/classify"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
)

// Styles holds the lipgloss styles used by the CLI.
type Styles struct {
	Header   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Critical lipgloss.Style
	Muted    lipgloss.Style
	Info     lipgloss.Style
}

// NewStyles creates styles bound to a lipgloss renderer, which decides the color profile.
func NewStyles(re *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:   re.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success:  re.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  re.NewStyle().Foreground(lipgloss.Color("11")),
		Critical: re.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Muted:    re.NewStyle().Foreground(lipgloss.Color("8")),
		Info:     re.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

// Level returns the style for a danger level.
func (s *Styles) Level(l classify.Level) lipgloss.Style {
	switch l {
	case classify.LevelCritical:
		return s.Critical
	case classify.LevelWarning:
		return s.Warning
	default:
		return s.Success
	}
}

// Status returns the style for a row diff status.
func (s *Styles) Status(st diff.Status) lipgloss.Style {
	switch st {
	case diff.StatusDifferent:
		return s.Warning
	case diff.StatusSourceOnly:
		return s.Success
	case diff.StatusTargetOnly:
		return s.Critical
	default:
		return s.Muted
	}
}
