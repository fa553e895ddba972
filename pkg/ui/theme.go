package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/retro/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// AccentColor returns a column's accent, falling back to the board default.
func AccentColor(col model.Column) lipgloss.TerminalColor {
	if col.AccentColor == "" {
		return ThemeFg(model.DefaultAccentColor)
	}
	return ThemeFg(col.AccentColor)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Phases
	Collect lipgloss.AdaptiveColor
	Group   lipgloss.AdaptiveColor
	Vote    lipgloss.AdaptiveColor
	Act     lipgloss.AdaptiveColor

	// Styles
	Base      lipgloss.Style
	Header    lipgloss.Style
	Card      lipgloss.Style
	Focused   lipgloss.Style
	Marked    lipgloss.Style
	Child     lipgloss.Style
	MutedText lipgloss.Style
	Votes     lipgloss.Style
	Timer     lipgloss.Style
	TimerLive lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},

		Collect: lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		Group:   lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		Vote:    lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Act:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Card = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.Focused = t.Card.
		Border(lipgloss.ThickBorder()).
		BorderForeground(t.Primary)

	t.Marked = t.Card.
		Border(lipgloss.DoubleBorder()).
		BorderForeground(t.Vote)

	t.Child = r.NewStyle().Foreground(t.Subtext).PaddingLeft(2)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.Votes = r.NewStyle().Foreground(t.Vote).Bold(true)
	t.Timer = r.NewStyle().Foreground(t.Group)
	t.TimerLive = r.NewStyle().Foreground(t.Act).Bold(true)
	t.Status = r.NewStyle().Foreground(t.Subtext)
	t.Error = r.NewStyle().Foreground(t.Act).Bold(true)

	return t
}

// PhaseColor returns the badge color of a phase.
func (t Theme) PhaseColor(p model.Phase) lipgloss.AdaptiveColor {
	switch p {
	case model.PhaseGroup:
		return t.Group
	case model.PhaseVote:
		return t.Vote
	case model.PhaseAct:
		return t.Act
	default:
		return t.Collect
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
