package tui

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yourusername/codexterm/internal/config"
	"github.com/yourusername/codexterm/internal/engine"
	"github.com/yourusername/codexterm/internal/filesearch"
	"github.com/yourusername/codexterm/internal/version"
)

// commitTickInterval paces the reveal of streamed lines into scrollback.
const commitTickInterval = 50 * time.Millisecond

// ─── Application Controller ─────────────────────────────────────────────────

// App is the root bubbletea model. It owns the chat widget, the transcript
// buffer, the optional pager overlay, the backtrack gesture and the commit
// animation, and it drains the event bus alongside terminal input.
type App struct {
	bus        *Bus
	cfg        *config.Config
	manager    *engine.Manager
	chat       *ChatWidget
	fileSearch *filesearch.Manager
	statusLine *StatusLineManager
	markdown   *MarkdownRenderer

	// transcriptLines mirrors everything ever committed to scrollback; it
	// backs the Ctrl-T overlay.
	transcriptLines []string
	// deferredHistory holds scrollback lines that arrived while an overlay
	// covered the screen; flushed in arrival order when it closes.
	deferredHistory []string
	overlay         *pagerOverlay

	backtrack         backtrackState
	commitAnimRunning atomic.Bool
	commitStop        chan struct{}

	width  int
	height int

	statusHint     string
	statusLineText *string
	finalUsage     engine.TokenUsage

	// printer commits lines to terminal scrollback; swapped in tests.
	printer func(lines []string) tea.Cmd
}

func NewApp(cfg *config.Config, manager *engine.Manager) *App {
	bus := NewBus()
	a := &App{
		bus:      bus,
		cfg:      cfg,
		manager:  manager,
		markdown: NewMarkdownRenderer(80),
		width:    80,
		printer: func(lines []string) tea.Cmd {
			return tea.Println(strings.Join(lines, "\n"))
		},
	}
	a.chat = NewChatWidget(cfg.Clone(), manager, bus, cfg.InitialPrompt, cfg.InitialImages)
	a.fileSearch = filesearch.NewManager(cfg.Cwd, func(res filesearch.Result) {
		bus.Send(FileSearchResultMsg{Query: res.Query, Matches: res.Matches})
	})
	if cfg.StatusLine != nil && len(cfg.StatusLine.Command) > 0 {
		a.statusLine = NewStatusLineManager(*cfg.StatusLine, bus, cfg.Cwd)
	}
	return a
}

func (a *App) Init() tea.Cmd {
	go probeRepoInfo(a.cfg.Cwd, a.bus)
	return tea.Batch(a.chat.Init(), a.bus.Await())
}

// TokenUsage reports the totals accumulated by the time the app quit.
func (a *App) TokenUsage() engine.TokenUsage { return a.finalUsage }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.chat.SetSize(msg.Width)
		a.markdown.SetWidth(msg.Width)
		if a.overlay != nil {
			a.overlay.SetSize(msg.Width, msg.Height)
		}
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	// Bus-delivered app events. Every branch re-arms the bus receiver.
	case NewSessionMsg:
		return a, tea.Batch(a.startNewSession(), a.bus.Await())
	case ResumeSessionMsg:
		a.cfg.ExperimentalResume = msg.Path
		a.transcriptLines = nil
		a.resetBacktrackState()
		a.chat = NewChatWidget(a.cfg.Clone(), a.manager, a.bus, "", nil)
		a.chat.SetSize(a.width)
		return a, a.bus.Await()
	case InsertHistoryLinesMsg:
		return a, tea.Batch(a.insertHistoryLines(msg.Lines), a.bus.Await())
	case InsertHistoryCellMsg:
		return a, tea.Batch(a.insertHistoryCell(msg.Cell), a.bus.Await())
	case StartCommitAnimationMsg:
		a.startCommitAnimation()
		return a, a.bus.Await()
	case StopCommitAnimationMsg:
		a.stopCommitAnimation()
		return a, a.bus.Await()
	case CommitTickMsg:
		a.chat.OnCommitTick()
		return a, a.bus.Await()
	case EngineEventMsg:
		a.chat.HandleEngineEvent(msg.Event)
		if msg.Event.Type == engine.EventTokenCount || msg.Event.Type == engine.EventTaskComplete {
			a.pushStatusLineUpdate()
		}
		return a, a.bus.Await()
	case ConversationHistoryMsg:
		return a, tea.Batch(a.onConversationHistory(msg.History), a.bus.Await())
	case UpdateRepoInfoMsg:
		a.chat.ApplyRepoInfo(msg.RepoName, msg.GitBranch)
		return a, a.bus.Await()
	case StartFileSearchMsg:
		a.fileSearch.Search(msg.Query)
		return a, a.bus.Await()
	case FileSearchResultMsg:
		a.chat.ApplyFileSearchResult(msg.Query, msg.Matches)
		return a, a.bus.Await()
	case EngineOpMsg:
		a.chat.SubmitOp(msg.Op)
		return a, a.bus.Await()
	case DiffResultMsg:
		return a, tea.Batch(a.openDiffOverlay(msg.Text), a.bus.Await())
	case UpdateModelMsg:
		a.cfg.Model = msg.Model
		a.chat.SetModel(msg.Model)
		a.pushStatusLineUpdate()
		return a, a.bus.Await()
	case UpdateReasoningEffortMsg:
		a.cfg.ReasoningEffort = msg.Effort
		a.chat.SetReasoningEffort(msg.Effort)
		a.pushStatusLineUpdate()
		return a, a.bus.Await()
	case UpdateApprovalPolicyMsg:
		a.chat.SetApprovalPolicy(msg.Policy)
		return a, a.bus.Await()
	case UpdateSandboxPolicyMsg:
		a.chat.SetSandboxPolicy(msg.Policy)
		return a, a.bus.Await()
	case UpdateStatusLineMsg:
		a.statusLineText = msg.Line
		return a, a.bus.Await()
	case ExitRequestMsg:
		return a, a.quit()
	}

	return a, a.chat.Update(msg)
}

func (a *App) View() string {
	if a.overlay != nil {
		return a.overlay.View()
	}
	var b strings.Builder
	b.WriteString(a.chat.View())
	if a.statusLineText != nil {
		b.WriteString("\n" + statusLineStyle.Render(*a.statusLineText))
	}
	if a.statusHint != "" {
		b.WriteString("\n" + dimStyle.Render(a.statusHint))
	}
	return b.String()
}

// ─── Key dispatch ───────────────────────────────────────────────────────────

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if a.overlay != nil {
		// Pager overlays ignore pasted text.
		if msg.Paste {
			return nil
		}
		if a.overlay.HandleKey(msg) {
			return a.closeOverlay()
		}
		return nil
	}

	if msg.Paste {
		text := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(msg.Runes))
		// Pasting a path to an image on disk attaches it instead of
		// inserting the path as text.
		if p := strings.TrimSpace(text); isImagePath(p) {
			if w, h, label, ok := imageMeta(p); ok {
				a.chat.AttachImage(p, w, h, label)
				return nil
			}
		}
		a.chat.HandlePaste(text)
		return nil
	}

	switch msg.String() {
	case "ctrl+t":
		return a.openTranscriptOverlay()
	case "ctrl+g":
		go collectDiff(a.cfg.Cwd, a.bus)
		return nil
	case "ctrl+n":
		return a.startNewSession()
	case "ctrl+c":
		return a.quit()
	case "esc":
		if a.chat.IsNormalBacktrackMode() && a.chat.ComposerIsEmpty() {
			return a.handleBacktrackEsc()
		}
	case "enter":
		if a.backtrack.primed && a.backtrack.count > 0 && a.chat.ComposerIsEmpty() {
			return a.confirmBacktrack()
		}
	}

	if a.backtrack.primed && msg.String() != "esc" {
		a.resetBacktrackState()
	}
	return a.chat.HandleKey(msg)
}

func (a *App) quit() tea.Cmd {
	a.finalUsage.Add(a.chat.TokenUsage())
	a.stopCommitAnimation()
	if a.statusLine != nil {
		a.statusLine.Close()
	}
	a.bus.Close()
	return tea.Quit
}

// ─── Scrollback and overlays ────────────────────────────────────────────────

// insertHistoryLines commits lines to the transcript buffer and, unless an
// overlay covers the screen, to terminal scrollback. While any overlay is
// open the scrollback write is deferred; a transcript overlay additionally
// mirrors the lines live.
func (a *App) insertHistoryLines(lines []string) tea.Cmd {
	if len(lines) == 0 {
		return nil
	}
	a.transcriptLines = append(a.transcriptLines, lines...)
	if a.overlay != nil {
		if a.overlay.transcript {
			a.overlay.InsertLines(lines)
		}
		a.deferredHistory = append(a.deferredHistory, lines...)
		return nil
	}
	return a.printer(lines)
}

// insertHistoryCell commits a cell through its two projections: the
// transcript buffer (and a live transcript overlay) gets TranscriptLines,
// scrollback (or the deferred buffer) gets DisplayLines. A notice cell has
// no transcript projection at all.
func (a *App) insertHistoryCell(cell HistoryCell) tea.Cmd {
	transcript := cell.TranscriptLines()
	a.transcriptLines = append(a.transcriptLines, transcript...)
	display := cell.DisplayLines()
	if a.overlay != nil {
		if a.overlay.transcript && len(transcript) > 0 {
			a.overlay.InsertLines(transcript)
		}
		a.deferredHistory = append(a.deferredHistory, display...)
		return nil
	}
	if len(display) == 0 {
		return nil
	}
	return a.printer(display)
}

func (a *App) openTranscriptOverlay() tea.Cmd {
	a.overlay = newTranscriptOverlay(a.transcriptLines)
	a.overlay.SetSize(a.width, a.height)
	return tea.EnterAltScreen
}

func (a *App) openDiffOverlay(diff string) tea.Cmd {
	lines := strings.Split(diff, "\n")
	if strings.TrimSpace(diff) == "" {
		lines = []string{italicStyle.Render("No changes detected.")}
	}
	a.overlay = newStaticOverlay("D I F F", lines)
	a.overlay.SetSize(a.width, a.height)
	return tea.EnterAltScreen
}

func (a *App) closeOverlay() tea.Cmd {
	a.overlay = nil
	flush := a.deferredHistory
	a.deferredHistory = nil
	if len(flush) == 0 {
		return tea.ExitAltScreen
	}
	return tea.Sequence(tea.ExitAltScreen, a.printer(flush))
}

// ─── Commit animation ───────────────────────────────────────────────────────

func (a *App) startCommitAnimation() {
	if !a.commitAnimRunning.CompareAndSwap(false, true) {
		return
	}
	stop := make(chan struct{})
	a.commitStop = stop
	go func() {
		ticker := time.NewTicker(commitTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.bus.Send(CommitTickMsg{})
			}
		}
	}()
}

func (a *App) stopCommitAnimation() {
	if !a.commitAnimRunning.CompareAndSwap(true, false) {
		return
	}
	close(a.commitStop)
	a.commitStop = nil
}

// startNewSession replaces the chat widget with a fresh conversation. The
// finished session's tokens still count toward the final tally.
func (a *App) startNewSession() tea.Cmd {
	a.finalUsage.Add(a.chat.TokenUsage())
	a.resetBacktrackState()
	a.transcriptLines = nil
	a.chat = NewChatWidget(a.cfg.Clone(), a.manager, a.bus, "", nil)
	a.chat.SetSize(a.width)
	return a.insertHistoryCell(NewNoticeCell(dimStyle.Render("Started a new session")))
}

// ─── History responses ──────────────────────────────────────────────────────

// onConversationHistory routes a history response: a pending backtrack
// consumes it, otherwise it is a resume replay to be rendered into
// scrollback.
func (a *App) onConversationHistory(h engine.HistoryResponse) tea.Cmd {
	if a.backtrack.pending != nil {
		return a.onConversationHistoryForBacktrack(h)
	}
	// Only a pending resume renders a replay; the path is cleared below so
	// a later history response cannot re-render it.
	if a.cfg.ExperimentalResume == "" {
		return nil
	}
	if h.ConversationID != a.chat.SessionID() {
		return nil
	}

	// The replay itself lives in the transcript buffer behind Ctrl-T;
	// scrollback only gets the one-line notice.
	lines := RenderResumedHistory(h.Entries, a.markdown, a.cfg.ExperimentalResume)
	a.cfg.ExperimentalResume = ""
	a.transcriptLines = append(a.transcriptLines, lines...)
	notice := fmt.Sprintf("%s — %s %s",
		agentHeaderStyle.Render("Restored session"),
		countStyle.Render(fmt.Sprintf("%d messages", len(h.Entries))),
		dimStyle.Render("• Press Ctrl-T to view transcript"),
	)
	return a.insertHistoryCell(NewNoticeCell(notice))
}

// ─── Status line ────────────────────────────────────────────────────────────

func (a *App) pushStatusLineUpdate() {
	if a.statusLine == nil {
		return
	}
	sid := a.chat.SessionID().String()
	usage := a.chat.TokenUsage()
	var win *StatusLineContextWindow
	if usage.TotalTokens > 0 {
		win = &StatusLineContextWindow{
			CurrentUsage: &StatusLineContextUsage{
				InputTokens:          usage.InputTokens,
				CacheReadInputTokens: usage.CachedInputTokens,
				OutputTokens:         usage.OutputTokens,
				TotalTokens:          usage.TotalTokens,
			},
		}
	}
	a.statusLine.Update(NewStatusLineInput(StatusLineInputArgs{
		SessionID:        &sid,
		Cwd:              a.cfg.Cwd,
		ProjectDir:       a.cfg.Cwd,
		ModelID:          a.cfg.Model,
		ModelDisplayName: a.cfg.DisplayName(),
		ReasoningEffort:  a.cfg.ReasoningEffort,
		Version:          version.Version,
		ContextWindow:    win,
	}))
}

// isImagePath reports whether a pasted line names an image file by
// extension.
func isImagePath(s string) bool {
	if s == "" || strings.ContainsRune(s, '\n') {
		return false
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	}
	return false
}

// imageMeta decodes just the image header for the attachment chip.
func imageMeta(path string) (width, height int, label string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", false
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", false
	}
	return cfg.Width, cfg.Height, format, true
}

// Run drives the program to completion and reports final token usage.
func Run(cfg *config.Config, manager *engine.Manager, opts ...tea.ProgramOption) (engine.TokenUsage, error) {
	app := NewApp(cfg, manager)
	p := tea.NewProgram(app, opts...)
	m, err := p.Run()
	if err != nil {
		return engine.TokenUsage{}, err
	}
	if final, ok := m.(*App); ok {
		return final.TokenUsage(), nil
	}
	return app.TokenUsage(), nil
}
