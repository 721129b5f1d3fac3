package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

// ptr helpers
func boolPtr(b bool) *bool    { return &b }
func uintPtr(u uint) *uint    { return &u }
func strPtr(s string) *string { return &s }

// transcriptStyle builds a glamour StyleConfig tuned for transcript output:
// zero document margins so rendered lines align with the other transcript
// lines, and headings in the palette used elsewhere in the TUI.
func transcriptStyle(base ansi.StyleConfig) ansi.StyleConfig {
	s := base

	s.Document.Margin = uintPtr(0)
	s.Document.Indent = uintPtr(0)
	s.Paragraph.Margin = uintPtr(0)
	s.Paragraph.Indent = uintPtr(0)

	s.H1.Bold = boolPtr(true)
	s.H1.Color = strPtr("#CBA6F7")
	s.H1.Prefix = ""
	s.H1.Margin = uintPtr(0)
	s.H2.Bold = boolPtr(true)
	s.H2.Color = strPtr("#89B4FA")
	s.H2.Prefix = ""
	s.H2.Margin = uintPtr(0)
	s.H3.Bold = boolPtr(true)
	s.H3.Color = strPtr("#89DCEB")
	s.H3.Prefix = ""
	s.H3.Margin = uintPtr(0)

	s.CodeBlock.Margin = uintPtr(0)

	return s
}

// MarkdownRenderer renders markdown for transcript lines.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdownRenderer creates a renderer wrapping at width.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(transcriptStyle(styles.DarkStyleConfig)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Fallback: plain word-wrap only.
		r, _ = glamour.NewTermRenderer(glamour.WithWordWrap(width))
	}
	return &MarkdownRenderer{renderer: r, width: width}
}

// SetWidth rebuilds the renderer at a new wrap width.
func (mr *MarkdownRenderer) SetWidth(width int) {
	if width == mr.width {
		return
	}
	*mr = *NewMarkdownRenderer(width)
}

// RenderLines renders markdown and splits the result into transcript lines,
// trimming the blank frame glamour adds around the document. On render
// failure the source text is returned line by line.
func (mr *MarkdownRenderer) RenderLines(markdown string) []string {
	var rendered string
	if mr.renderer != nil {
		if out, err := mr.renderer.Render(markdown); err == nil {
			rendered = out
		}
	}
	if rendered == "" {
		rendered = markdown
	}
	lines := strings.Split(strings.ReplaceAll(rendered, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
