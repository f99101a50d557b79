package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmurray2011/spindle/internal/rules"
)

// Color palette - using ANSI 256 colors for broad terminal support
var (
	ColorCyan    = lipgloss.Color("6")
	ColorYellow  = lipgloss.Color("3")
	ColorRed     = lipgloss.Color("1")
	ColorGreen   = lipgloss.Color("2")
	ColorBlue    = lipgloss.Color("4")
	ColorMagenta = lipgloss.Color("5")
	ColorGray    = lipgloss.Color("8")
	ColorWhite   = lipgloss.Color("15")
	ColorBlack   = lipgloss.Color("0")
)

// Text styles
var (
	// Timestamps in log output
	TimestampStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	// Record System (logger) names
	SystemStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// Provider names
	ProviderStyle = lipgloss.NewStyle().Foreground(ColorMagenta)

	// Status messages ("Tailing...", "Listening...")
	StatusStyle = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)

	// Error messages
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)

	// Warning messages
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// Success messages
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)

	// Muted/secondary text
	MutedStyle = lipgloss.NewStyle().Foreground(ColorGray)

	// Labels (field names, headers)
	LabelStyle = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)

	// Values (field values)
	ValueStyle = lipgloss.NewStyle().Foreground(ColorWhite)

	// Exception text under a record
	ExceptionStyle = lipgloss.NewStyle().Foreground(ColorRed)
)

// Box styles for sections
var (
	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan).
				MarginBottom(1)
)

// Styles for the record Type column when no highlighter applies.
var typeStyles = map[string]lipgloss.Style{
	"TRACE":   MutedStyle,
	"DEBUG":   MutedStyle,
	"INFO":    lipgloss.NewStyle().Foreground(ColorGreen),
	"WARN":    WarningStyle,
	"WARNING": WarningStyle,
	"ERROR":   ErrorStyle,
	"FATAL":   lipgloss.NewStyle().Foreground(ColorWhite).Background(ColorRed).Bold(true),
}

// TypeStyle returns the default style for a record Type such as "ERROR".
func TypeStyle(typ string) lipgloss.Style {
	if s, ok := typeStyles[strings.ToUpper(typ)]; ok {
		return s
	}
	return ValueStyle
}

// StyleFor converts a highlighter style into a lipgloss style.
func StyleFor(s rules.Style) lipgloss.Style {
	style := lipgloss.NewStyle()
	if s.Foreground != "" {
		style = style.Foreground(lipgloss.Color(s.Foreground))
	}
	if s.Background != "" {
		style = style.Background(lipgloss.Color(s.Background))
	}
	if s.Bold {
		style = style.Bold(true)
	}
	if s.Italic {
		style = style.Italic(true)
	}
	if s.Underline {
		style = style.Underline(true)
	}
	return style
}
