package tui

import (
	"github.com/yourusername/codexterm/internal/engine"
)

// ─── App events ─────────────────────────────────────────────────────────────────
//
// Internally produced events travel over the Bus and arrive in the update
// loop as the typed messages below. Terminal input arrives separately as
// bubbletea key/paste messages; per-source FIFO order is preserved.

// NewSessionMsg discards the current chat widget and starts a fresh session.
type NewSessionMsg struct{}

// ResumeSessionMsg is like NewSessionMsg but records the rollout path so the
// first ConversationHistoryMsg triggers a transcript replay.
type ResumeSessionMsg struct {
	Path string
}

// UpdateRepoInfoMsg refreshes the repository badge in the chat widget.
type UpdateRepoInfoMsg struct {
	RepoName  string
	GitBranch string
}

// InsertHistoryLinesMsg appends styled lines to the transcript and to the
// terminal scrollback (or the deferred buffer while an overlay is open).
type InsertHistoryLinesMsg struct {
	Lines []string
}

// InsertHistoryCellMsg appends a history cell; its transcript and display
// projections may differ.
type InsertHistoryCellMsg struct {
	Cell HistoryCell
}

// StartCommitAnimationMsg starts the 50 ms commit ticker.
type StartCommitAnimationMsg struct{}

// StopCommitAnimationMsg stops the commit ticker.
type StopCommitAnimationMsg struct{}

// CommitTickMsg is one tick of the commit animation.
type CommitTickMsg struct{}

// EngineEventMsg forwards an engine event to the chat widget.
type EngineEventMsg struct {
	Event engine.Event
}

// ConversationHistoryMsg carries a replayed conversation log: either a
// resume replay or a backtrack response.
type ConversationHistoryMsg struct {
	History engine.HistoryResponse
}

// ExitRequestMsg terminates the main loop.
type ExitRequestMsg struct{}

// EngineOpMsg forwards an outbound request to the chat widget's
// conversation.
type EngineOpMsg struct {
	Op engine.Op
}

// DiffResultMsg opens a static pager overlay with the given diff text.
type DiffResultMsg struct {
	Text string
}

// StartFileSearchMsg kicks off a workspace file search.
type StartFileSearchMsg struct {
	Query string
}

// FileSearchResultMsg delivers a completed file search.
type FileSearchResultMsg struct {
	Query   string
	Matches []string
}

// UpdateReasoningEffortMsg propagates a reasoning effort change.
type UpdateReasoningEffortMsg struct {
	Effort string
}

// UpdateModelMsg propagates a model change.
type UpdateModelMsg struct {
	Model string
}

// UpdateApprovalPolicyMsg propagates an approval policy change.
type UpdateApprovalPolicyMsg struct {
	Policy string
}

// UpdateSandboxPolicyMsg propagates a sandbox policy change.
type UpdateSandboxPolicyMsg struct {
	Policy string
}

// UpdateStatusLineMsg carries the latest rendered status line; nil means no
// status line is shown.
type UpdateStatusLineMsg struct {
	Line *string
}
