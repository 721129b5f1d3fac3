package tui

import "strings"

// HistoryCell is an append-only block of transcript output. A cell renders
// twice: DisplayLines go to the live terminal scrollback and may be empty
// for cells that only exist in the full transcript; TranscriptLines feed the
// Ctrl-T transcript overlay.
type HistoryCell interface {
	DisplayLines() []string
	TranscriptLines() []string
}

// userPromptCell shows a submitted user prompt.
type userPromptCell struct {
	text string
}

// NewUserPromptCell builds the cell for a user message.
func NewUserPromptCell(text string) HistoryCell {
	return &userPromptCell{text: text}
}

func (c *userPromptCell) DisplayLines() []string {
	lines := []string{"", userPromptStyle.Render("user")}
	for _, l := range strings.Split(c.text, "\n") {
		lines = append(lines, textStyle.Render(l))
	}
	return lines
}

func (c *userPromptCell) TranscriptLines() []string { return c.DisplayLines() }

// agentMessageCell shows a completed assistant message, already rendered to
// styled lines by the markdown pipeline.
type agentMessageCell struct {
	lines []string
}

// NewAgentMessageCell builds the cell for an assistant message.
func NewAgentMessageCell(rendered []string) HistoryCell {
	return &agentMessageCell{lines: rendered}
}

func (c *agentMessageCell) DisplayLines() []string {
	out := []string{"", agentHeaderStyle.Render("codex")}
	return append(out, c.lines...)
}

func (c *agentMessageCell) TranscriptLines() []string { return c.DisplayLines() }

// noticeCell is a one-line styled notice that appears in scrollback but is
// kept out of the transcript overlay.
type noticeCell struct {
	line string
}

// NewNoticeCell builds a display-only notice.
func NewNoticeCell(line string) HistoryCell {
	return &noticeCell{line: line}
}

func (c *noticeCell) DisplayLines() []string    { return []string{"", c.line} }
func (c *noticeCell) TranscriptLines() []string { return nil }
