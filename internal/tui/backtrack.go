package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/yourusername/codexterm/internal/engine"
	"github.com/yourusername/codexterm/internal/rollout"
)

// backtrackState tracks the Esc-arm / Enter-confirm rewind gesture. primed
// becomes true on the first Esc with an empty composer; each further Esc
// steps one user message further back; Enter submits a history request and
// parks it in pending until the ConversationHistory response arrives.
type backtrackState struct {
	primed  bool
	count   int
	pending *backtrackRequest
}

type backtrackRequest struct {
	conversationID uuid.UUID
	count          int
}

// handleBacktrackEsc advances the backtrack gesture.
func (a *App) handleBacktrackEsc() tea.Cmd {
	if !a.backtrack.primed {
		a.backtrack.primed = true
		a.statusHint = "Esc again to step back · Enter to confirm"
		return nil
	}
	a.backtrack.count++
	a.statusHint = "backtrack " + strings.Repeat("‹", min(a.backtrack.count, 5)) + " Enter to confirm"
	return nil
}

// confirmBacktrack submits the pending rewind: the conversation is asked for
// its history and the response is handled by onConversationHistoryForBacktrack.
func (a *App) confirmBacktrack() tea.Cmd {
	a.backtrack.pending = &backtrackRequest{
		conversationID: a.chat.SessionID(),
		count:          a.backtrack.count,
	}
	a.backtrack.primed = false
	a.backtrack.count = 0
	a.statusHint = ""
	a.chat.SubmitOp(engine.OpGetHistory{})
	return nil
}

// resetBacktrackState disarms the gesture.
func (a *App) resetBacktrackState() {
	a.backtrack.primed = false
	a.backtrack.count = 0
	a.statusHint = ""
}

// onConversationHistoryForBacktrack finishes a confirmed rewind: the chat
// widget is replaced with a fresh one and the composer is prefilled with the
// user message being rewound to.
func (a *App) onConversationHistoryForBacktrack(h engine.HistoryResponse) tea.Cmd {
	req := a.backtrack.pending
	a.backtrack.pending = nil
	if req == nil || req.conversationID != h.ConversationID {
		return nil
	}
	prefill := nthLastUserText(h.Entries, req.count)
	a.trimTranscriptForBacktrack(req.count)

	a.chat = NewChatWidget(a.cfg.Clone(), a.manager, a.bus, "", nil)
	a.chat.SetSize(a.width)
	if prefill != "" {
		a.chat.PrefillComposer(prefill)
	}
	return a.insertHistoryCell(NewNoticeCell(dimStyle.Render("Jumped back — edit and resubmit")))
}

// trimTranscriptForBacktrack cuts the transcript buffer back to just before
// the n-th last user prompt, dropping the turns being rewound away.
func (a *App) trimTranscriptForBacktrack(n int) {
	if n < 1 {
		return
	}
	header := userPromptStyle.Render("user")
	seen := 0
	for i := len(a.transcriptLines) - 1; i >= 0; i-- {
		if a.transcriptLines[i] != header {
			continue
		}
		seen++
		if seen == n {
			cut := i
			if cut > 0 && a.transcriptLines[cut-1] == "" {
				cut--
			}
			a.transcriptLines = a.transcriptLines[:cut]
			return
		}
	}
}

// nthLastUserText returns the text of the n-th user message counting from
// the end (n >= 1). Empty when the log has fewer user messages.
func nthLastUserText(entries []rollout.Item, n int) string {
	if n < 1 {
		return ""
	}
	seen := 0
	for i := len(entries) - 1; i >= 0; i-- {
		it := entries[i]
		if it.Type != rollout.ItemMessage || it.Role != "user" {
			continue
		}
		seen++
		if seen == n {
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
	}
	return ""
}
