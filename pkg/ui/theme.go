package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals use the
// terminal's own background instead of a down-converted approximation
// that may clash with palettes like Solarized.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Metric states
	Good lipgloss.AdaptiveColor
	Warn lipgloss.AdaptiveColor
	Bad  lipgloss.AdaptiveColor

	// Series colors for chart panels, in positional order
	Series []lipgloss.AdaptiveColor

	// UI elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base       lipgloss.Style
	Selected   lipgloss.Style
	PanelTitle lipgloss.Style
	Panel      lipgloss.Style
	Header     lipgloss.Style

	// Pre-computed styles, created once at startup instead of per-frame
	MutedText     lipgloss.Style // footers, timestamps
	SecondaryText lipgloss.Style // field labels
	PrimaryBold   lipgloss.Style // selection indicator, overlay titles
	ErrorText     lipgloss.Style // error states
	EmptyText     lipgloss.Style // empty states
	OverlayBox    lipgloss.Style // drill-down and filter modal chrome
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}, // Dim

		Good: lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}, // Green
		Warn: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}, // Orange
		Bad:  lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}, // Red

		Series: []lipgloss.AdaptiveColor{
			{Light: "#2684FF", Dark: "#4C9AFF"}, // Blue
			{Light: "#B06800", Dark: "#FFB86C"}, // Orange
			{Light: "#007700", Dark: "#50FA7B"}, // Green
			{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
			{Light: "#006080", Dark: "#8BE9FD"}, // Cyan
		},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.PanelTitle = r.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Padding(0, 1)

	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	// Modal chrome goes through the profile-aware helpers: low-color
	// terminals keep their own background instead of a down-converted
	// Dracula backdrop.
	t.OverlayBox = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Background(ThemeBg("#282A36")).
		Foreground(ThemeFg("#F8F8F2")).
		Padding(1, 2)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.SecondaryText = r.NewStyle().Foreground(t.Secondary)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.ErrorText = r.NewStyle().Foreground(t.Bad).Bold(true)
	t.EmptyText = r.NewStyle().Foreground(t.Muted).Italic(true)

	return t
}

// SeriesColor returns the chart color for a positional series index.
func (t Theme) SeriesColor(i int) lipgloss.AdaptiveColor {
	if len(t.Series) == 0 {
		return t.Primary
	}
	return t.Series[i%len(t.Series)]
}

// MetricColor buckets a value against a threshold pair: at or below good
// is Good, above bad is Bad, in between is Warn. Used for PUE-style
// metrics where lower is better.
func (t Theme) MetricColor(value, good, bad float64) lipgloss.AdaptiveColor {
	switch {
	case value <= good:
		return t.Good
	case value > bad:
		return t.Bad
	default:
		return t.Warn
	}
}

// TestTheme returns a theme suitable for use in tests (stdout renderer).
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
