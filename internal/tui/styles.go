package tui

import "github.com/charmbracelet/lipgloss"

// ─── Styles (Catppuccin Mocha) ──────────────────────────────────────────────────

var (
	purple  = lipgloss.Color("#CBA6F7")
	blue    = lipgloss.Color("#89B4FA")
	sky     = lipgloss.Color("#89DCEB")
	green   = lipgloss.Color("#A6E3A1")
	red     = lipgloss.Color("#F38BA8")
	txtClr  = lipgloss.Color("#CDD6F4")
	subtext = lipgloss.Color("#A6ADC8")
	overlay = lipgloss.Color("#6C7086")

	// Transcript line styles.
	agentHeaderStyle = lipgloss.NewStyle().Foreground(purple).Bold(true)
	userPromptStyle  = lipgloss.NewStyle().Foreground(blue).Bold(true)
	thinkingStyle    = lipgloss.NewStyle().Foreground(purple).Italic(true)
	commandStyle     = lipgloss.NewStyle().Foreground(sky)
	countStyle       = lipgloss.NewStyle().Foreground(blue)
	dimStyle         = lipgloss.NewStyle().Foreground(overlay)
	italicStyle      = lipgloss.NewStyle().Italic(true)
	okStyle          = lipgloss.NewStyle().Foreground(green)
	failStyle        = lipgloss.NewStyle().Foreground(red)
	toolStyle        = lipgloss.NewStyle().Foreground(purple)

	// Chrome.
	textStyle        = lipgloss.NewStyle().Foreground(txtClr)
	statusLineStyle  = lipgloss.NewStyle().Foreground(subtext)
	overlayTitle     = lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	overlayFootStyle = lipgloss.NewStyle().Foreground(overlay)
)
