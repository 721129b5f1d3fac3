package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/yourusername/codexterm/internal/config"
	"github.com/yourusername/codexterm/internal/engine"
)

// pasteBurstWindow is how close together key events must arrive before the
// composer treats them as part of a paste rather than typing.
const pasteBurstWindow = 5 * time.Millisecond

// ChatWidget owns the composer and the in-flight turn display. It is owned
// exclusively by the controller and replaced wholesale on NewSession and
// ResumeSession; the engine manager it talks to is shared and survives.
type ChatWidget struct {
	cfg          *config.Config
	manager      *engine.Manager
	bus          *Bus
	conversation *engine.Conversation

	composer textarea.Model
	width    int

	// Streaming state for the current turn.
	streaming     bool
	partialLine   string
	pendingCommit []string
	turnDone      bool

	usage engine.TokenUsage

	repoName  string
	gitBranch string

	fileSearchQuery   string
	fileSearchMatches []string

	markdown *MarkdownRenderer

	lastKeyAt time.Time
}

// NewChatWidget builds a widget and its backing conversation. When the
// config carries a resume path the conversation binds to that rollout file
// and a history replay is requested immediately.
func NewChatWidget(cfg *config.Config, manager *engine.Manager, bus *Bus, initialPrompt string, initialImages []string) *ChatWidget {
	ta := textarea.New()
	ta.Placeholder = "Ask codex anything… (Enter to send)"
	ta.Prompt = "▍ "
	ta.CharLimit = 8000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	w := &ChatWidget{
		cfg:      cfg,
		manager:  manager,
		bus:      bus,
		composer: ta,
		markdown: NewMarkdownRenderer(76),
	}

	emit := func(e engine.Event) {
		if e.Type == engine.EventHistory && e.History != nil {
			bus.Send(ConversationHistoryMsg{History: *e.History})
			return
		}
		bus.Send(EngineEventMsg{Event: e})
	}
	if cfg.ExperimentalResume != "" {
		w.conversation = manager.ResumeConversation(cfg.ExperimentalResume, emit)
		w.conversation.Submit(engine.OpGetHistory{})
	} else {
		w.conversation = manager.NewConversation(emit)
	}

	if initialPrompt != "" {
		w.submitPrompt(initialPrompt, initialImages)
	}
	return w
}

// Init returns the widget's startup command.
func (w *ChatWidget) Init() tea.Cmd { return textarea.Blink }

// SessionID returns the backing conversation id.
func (w *ChatWidget) SessionID() uuid.UUID { return w.conversation.ID() }

// TokenUsage returns the running token tally for the session.
func (w *ChatWidget) TokenUsage() engine.TokenUsage { return w.usage }

// ComposerIsEmpty reports whether the composer holds no text.
func (w *ChatWidget) ComposerIsEmpty() bool {
	return strings.TrimSpace(w.composer.Value()) == ""
}

// IsNormalBacktrackMode reports whether Esc may arm backtracking: no turn
// streaming and no modal state in the composer.
func (w *ChatWidget) IsNormalBacktrackMode() bool { return !w.streaming }

// SetSize resizes the composer and markdown wrap width.
func (w *ChatWidget) SetSize(width int) {
	w.width = width
	w.composer.SetWidth(width - 4)
	if width > 8 {
		w.markdown.SetWidth(width - 4)
	}
}

// SetModel, SetReasoningEffort, SetApprovalPolicy and SetSandboxPolicy apply
// live configuration updates.
func (w *ChatWidget) SetModel(model string)            { w.cfg.Model = model }
func (w *ChatWidget) SetReasoningEffort(effort string) { w.cfg.ReasoningEffort = effort }
func (w *ChatWidget) SetApprovalPolicy(policy string)  { w.cfg.ApprovalPolicy = policy }
func (w *ChatWidget) SetSandboxPolicy(policy string)   { w.cfg.SandboxPolicy = policy }

// ApplyRepoInfo refreshes the repository badge.
func (w *ChatWidget) ApplyRepoInfo(repoName, gitBranch string) {
	w.repoName = repoName
	w.gitBranch = gitBranch
}

// ApplyFileSearchResult shows matches for the latest query; stale results
// are dropped.
func (w *ChatWidget) ApplyFileSearchResult(query string, matches []string) {
	if query != w.fileSearchQuery {
		return
	}
	w.fileSearchMatches = matches
}

// HandlePaste inserts pasted text into the composer.
func (w *ChatWidget) HandlePaste(text string) {
	w.composer.InsertString(text)
}

// AttachImage records an image attachment and shows a chip in the composer.
func (w *ChatWidget) AttachImage(path string, width, height int, formatLabel string) {
	w.composer.InsertString(fmt.Sprintf("[image %dx%d %s %s]", width, height, formatLabel, path))
}

// PrefillComposer replaces the composer content, used by the backtrack flow.
func (w *ChatWidget) PrefillComposer(text string) {
	w.composer.SetValue(text)
	w.composer.CursorEnd()
}

// SubmitOp forwards an outbound request to the conversation.
func (w *ChatWidget) SubmitOp(op engine.Op) { w.conversation.Submit(op) }

// HandleKey processes a key event aimed at the composer.
func (w *ChatWidget) HandleKey(msg tea.KeyMsg) tea.Cmd {
	now := time.Now()
	burst := msg.Paste || (!w.lastKeyAt.IsZero() && now.Sub(w.lastKeyAt) < pasteBurstWindow)
	w.lastKeyAt = now

	if msg.Type == tea.KeyEnter && !burst {
		text := strings.TrimSpace(w.composer.Value())
		if text == "" {
			return nil
		}
		w.composer.Reset()
		w.submitPrompt(text, nil)
		return nil
	}
	if q, ok := fileSearchTrigger(w.composer.Value(), msg); ok {
		w.fileSearchQuery = q
		w.bus.Send(StartFileSearchMsg{Query: q})
	} else if w.fileSearchQuery != "" {
		w.fileSearchQuery = ""
		w.fileSearchMatches = nil
	}

	var cmd tea.Cmd
	w.composer, cmd = w.composer.Update(msg)
	return cmd
}

// submitPrompt sends a user turn: history cell first, then the engine op.
func (w *ChatWidget) submitPrompt(text string, images []string) {
	w.bus.Send(InsertHistoryCellMsg{Cell: NewUserPromptCell(text)})
	w.streaming = true
	w.turnDone = false
	w.partialLine = ""
	w.conversation.Submit(engine.OpUserInput{Text: text, Images: images})
}

// HandleEngineEvent folds an engine event into the streaming state. Agent
// output is committed to scrollback one line per commit tick.
func (w *ChatWidget) HandleEngineEvent(e engine.Event) {
	switch e.Type {
	case engine.EventTaskStarted:
		w.streaming = true
		w.bus.Send(InsertHistoryLinesMsg{Lines: []string{"", agentHeaderStyle.Render("codex")}})
		w.bus.Send(StartCommitAnimationMsg{})
	case engine.EventAgentMessageDelta:
		w.partialLine += e.Delta
		for {
			i := strings.IndexByte(w.partialLine, '\n')
			if i < 0 {
				break
			}
			w.pendingCommit = append(w.pendingCommit, textStyle.Render(w.partialLine[:i]))
			w.partialLine = w.partialLine[i+1:]
		}
	case engine.EventAgentMessage:
		// End of turn text: flush whatever the deltas left behind.
		if w.partialLine != "" {
			w.pendingCommit = append(w.pendingCommit, textStyle.Render(w.partialLine))
			w.partialLine = ""
		}
	case engine.EventTokenCount:
		if e.Usage != nil {
			w.usage.Add(*e.Usage)
		}
	case engine.EventTaskComplete:
		w.turnDone = true
	case engine.EventError:
		w.streaming = false
		w.turnDone = true
		w.bus.Send(InsertHistoryLinesMsg{Lines: []string{"", failStyle.Render("error: " + e.Err)}})
		w.bus.Send(StopCommitAnimationMsg{})
	}
}

// OnCommitTick commits one pending line into scrollback. When the queue
// drains after the turn finished, the animation stops.
func (w *ChatWidget) OnCommitTick() {
	if len(w.pendingCommit) > 0 {
		line := w.pendingCommit[0]
		w.pendingCommit = w.pendingCommit[1:]
		w.bus.Send(InsertHistoryLinesMsg{Lines: []string{line}})
	}
	if len(w.pendingCommit) == 0 && w.turnDone {
		w.streaming = false
		w.bus.Send(StopCommitAnimationMsg{})
	}
}

// View renders the bottom pane: badges plus the composer.
func (w *ChatWidget) View() string {
	var b strings.Builder
	badge := w.cfg.DisplayName()
	if w.cfg.ReasoningEffort != "" && w.cfg.ReasoningEffort != config.EffortNone {
		badge += " " + w.cfg.ReasoningEffort
	}
	if w.repoName != "" {
		badge += "  " + w.repoName
		if w.gitBranch != "" {
			badge += "@" + w.gitBranch
		}
	}
	b.WriteString(dimStyle.Render(badge))
	b.WriteString("\n")
	if len(w.fileSearchMatches) > 0 {
		shown := w.fileSearchMatches
		if len(shown) > 5 {
			shown = shown[:5]
		}
		b.WriteString(dimStyle.Render("@ " + strings.Join(shown, "  ")))
		b.WriteString("\n")
	}
	b.WriteString(w.composer.View())
	return b.String()
}

// Update forwards messages the controller does not handle itself (cursor
// blink and similar component ticks).
func (w *ChatWidget) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	w.composer, cmd = w.composer.Update(msg)
	return cmd
}

// fileSearchTrigger detects an @token being typed and extracts the query.
func fileSearchTrigger(value string, msg tea.KeyMsg) (string, bool) {
	if msg.Type != tea.KeyRunes || msg.Paste {
		return "", false
	}
	at := strings.LastIndexByte(value, '@')
	if at < 0 {
		return "", false
	}
	token := value[at+1:] + string(msg.Runes)
	if token == "" || strings.ContainsAny(token, " \t\n") {
		return "", false
	}
	return token, true
}
