package tui

import (
	"fmt"
	"strings"

	"github.com/yourusername/codexterm/internal/config"
	"github.com/yourusername/codexterm/internal/rollout"
)

// maxResumeMessageLines caps how much of a single assistant message the
// restore view shows; the full text stays available in the Ctrl-T overlay.
const maxResumeMessageLines = 18

const resumeTruncationNote = "… truncated; press Ctrl-T for full transcript"

// statsTailBytes bounds how much of the rollout tail the session-stats scan
// reads.
const statsTailBytes = 512 * 1024

// RenderResumedHistory transforms a replayed conversation log into styled
// transcript lines. Pure except for reading rollout metadata when a resume
// path is given (recap header, session stats).
func RenderResumedHistory(entries []rollout.Item, md *MarkdownRenderer, resumePath string) []string {
	var out []string

	if resumePath != "" {
		out = append(out, renderRecapHeader(entries, resumePath)...)
	}

	// Index outputs by call id so calls can show their result inline.
	outputsByCall := make(map[string]*rollout.CallOutput)
	for _, it := range entries {
		if it.Type == rollout.ItemFunctionCallOutput && it.CallID != "" {
			outputsByCall[it.CallID] = it.Output
		}
	}

	for _, it := range entries {
		switch it.Type {
		case rollout.ItemMessage:
			text, keep := stripWrappers(messageText(it))
			if !keep || text == "" {
				continue
			}
			if it.Role == "user" {
				out = append(out, NewUserPromptCell(text).DisplayLines()...)
				continue
			}
			rendered := md.RenderLines(text)
			if len(rendered) > maxResumeMessageLines {
				rendered = rendered[:maxResumeMessageLines]
				rendered = append(rendered, dimStyle.Render(resumeTruncationNote))
			}
			out = append(out, NewAgentMessageCell(rendered).DisplayLines()...)

		case rollout.ItemFunctionCall:
			if _, ok := outputsByCall[it.CallID]; !ok {
				continue
			}
			server, tool := splitToolName(it.Name)
			mark := okStyle.Render("✓")
			if !outputsByCall[it.CallID].Succeeded() {
				mark = failStyle.Render("✗")
			}
			out = append(out, "", fmt.Sprintf("%s %s/%s %s", toolStyle.Render("tool"), server, tool, mark))

		case rollout.ItemReasoning:
			out = append(out, "", thinkingStyle.Render("thinking"))

		case rollout.ItemLocalShellCall:
			if !it.Action.IsExec() {
				continue
			}
			// An exec without a recorded output is assumed successful.
			mark := okStyle.Render("✓")
			if payload, ok := outputsByCall[it.CallID]; ok && !payload.Succeeded() {
				mark = failStyle.Render("✗")
			}
			cmd := strings.Join(it.Action.Command, " ")
			out = append(out, "", "  "+mark+" "+commandStyle.Render("⌨️ "+cmd))

		case rollout.ItemFunctionCallOutput:
			if it.Output == nil || it.Output.Content == "" {
				continue
			}
			out = append(out, NewAgentMessageCell(md.RenderLines(it.Output.Content)).DisplayLines()...)
		}
	}

	return out
}

// renderRecapHeader emits the "Restored" banner, up to six recent action
// highlights and a dim id/path footer.
func renderRecapHeader(entries []rollout.Item, resumePath string) []string {
	meta, _ := rollout.ReadMeta(resumePath)
	stats := rollout.ReadSessionStats(resumePath, statsTailBytes)
	n := len(entries)
	if stats.MessageCount != nil {
		n = *stats.MessageCount
	}

	out := []string{""}
	out = append(out, fmt.Sprintf("%s — %s %s",
		agentHeaderStyle.Render("Restored"),
		dimStyle.Render(meta.Timestamp),
		countStyle.Render(fmt.Sprintf("(%d)", n)),
	))

	// Up to six most recent exec/tool actions, shown oldest first.
	var highlights []string
	for i := len(entries) - 1; i >= 0 && len(highlights) < 6; i-- {
		switch it := entries[i]; it.Type {
		case rollout.ItemLocalShellCall:
			if it.Action.IsExec() {
				cmd := strings.Join(it.Action.Command, " ")
				highlights = append(highlights, dimStyle.Render("  • ")+"exec "+commandStyle.Render(cmd))
			}
		case rollout.ItemFunctionCall:
			server, tool := splitToolName(it.Name)
			highlights = append(highlights, dimStyle.Render("  • ")+"tool "+server+"/"+tool)
		}
	}
	for i := len(highlights) - 1; i >= 0; i-- {
		out = append(out, highlights[i])
	}

	if meta.ID != nil {
		out = append(out, dimStyle.Render("id: "+meta.ID.String()))
	}
	out = append(out, dimStyle.Render("path: "+config.RelativizeToHome(resumePath)))
	return out
}

// messageText concatenates a message's input/output text blocks.
func messageText(it rollout.Item) string {
	var text string
	for _, c := range it.Content {
		if c.Type != "input_text" && c.Type != "output_text" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += c.Text
	}
	return text
}

// splitToolName splits a qualified "<server>__<tool>" name. Names without
// the separator keep everything on the server side.
func splitToolName(name string) (server, tool string) {
	if s, t, ok := strings.Cut(name, "__"); ok {
		return s, t
	}
	return name, ""
}

// stripWrappers removes transport-level framing the user must not see on
// replay. Messages that are pure environment context are dropped entirely
// (keep == false).
func stripWrappers(s string) (text string, keep bool) {
	t := strings.TrimSpace(s)
	if strings.Contains(t, "<environment_context>") {
		return "", false
	}
	for _, tag := range []string{"user_instructions", "user_interactions"} {
		openTag, closeTag := "<"+tag+">", "</"+tag+">"
		start := strings.Index(t, openTag)
		end := strings.Index(t, closeTag)
		if start >= 0 && end >= 0 {
			t = strings.TrimSpace(t[start+len(openTag) : end])
		}
	}
	return t, true
}
