// Package ui renders results on the terminal.
package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/bypassfuzzer/internal/analyzer"
)

// Color palette
var (
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorRed     = lipgloss.Color("#FF0055")
	ColorOrange  = lipgloss.Color("#FF8800")
	ColorBlue    = lipgloss.Color("#3B82F6")
	ColorPink    = lipgloss.Color("#FF69B4")

	ColorText       = lipgloss.Color("#E0E0E0")
	ColorDimText    = lipgloss.Color("#666666")
	ColorBrightText = lipgloss.Color("#FFFFFF")
)

// Style definitions
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMagenta)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDimText).
			Width(15)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorBrightText).
			Bold(true)

	AttackStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Width(18)

	PayloadStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDimText)

	SummaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMagenta).
			Padding(0, 2)
)

// StatusStyle colors a status code by class.
func StatusStyle(status int) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true).Width(4)
	switch {
	case status >= 200 && status < 300:
		return s.Foreground(ColorGreen)
	case status >= 300 && status < 400:
		return s.Foreground(ColorYellow)
	case status >= 400 && status < 500:
		return s.Foreground(ColorOrange)
	case status >= 500:
		return s.Foreground(ColorRed)
	}
	return s.Foreground(ColorDimText)
}

var highlightColors = map[analyzer.Color]lipgloss.Color{
	analyzer.Red:     ColorRed,
	analyzer.Orange:  ColorOrange,
	analyzer.Yellow:  ColorYellow,
	analyzer.Green:   ColorGreen,
	analyzer.Cyan:    ColorCyan,
	analyzer.Blue:    ColorBlue,
	analyzer.Pink:    ColorPink,
	analyzer.Magenta: ColorMagenta,
	analyzer.Gray:    ColorDimText,
}

// HighlightStyle returns the row style for a highlight color.
func HighlightStyle(c analyzer.Color) lipgloss.Style {
	if fg, ok := highlightColors[c]; ok {
		return lipgloss.NewStyle().Foreground(fg).Bold(true)
	}
	return lipgloss.NewStyle()
}

// RenderLabelValue renders a label-value pair
func RenderLabelValue(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}

// RenderStatus renders a status code
func RenderStatus(status int) string {
	return StatusStyle(status).Render(strconv.Itoa(status))
}

// Banner is printed when a run starts
const Banner = `┌─ bypassfuzzer ─────────────────────────────────────────────┐`

// BannerStyled returns the styled banner
func BannerStyled() string {
	return lipgloss.NewStyle().
		Foreground(ColorCyan).
		Bold(true).
		Render(Banner)
}
