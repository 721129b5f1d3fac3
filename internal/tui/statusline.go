package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/codexterm/internal/config"
	"github.com/yourusername/codexterm/internal/logger"
)

// statusLineMinInterval is the minimum spacing between two command runs.
// Snapshots that arrive faster than this collapse into the newest one.
const statusLineMinInterval = 300 * time.Millisecond

const statusLineHookEvent = "Status"

const defaultStatusLinePadding = 2

// StatusLineInput is the JSON snapshot piped to the configured command.
type StatusLineInput struct {
	HookEventName  string                   `json:"hook_event_name"`
	SessionID      *string                  `json:"session_id"`
	TranscriptPath *string                  `json:"transcript_path"`
	Cwd            string                   `json:"cwd"`
	Workspace      StatusLineWorkspace      `json:"workspace"`
	Model          StatusLineModel          `json:"model"`
	Version        string                   `json:"version"`
	OutputStyle    StatusLineOutputStyle    `json:"output_style"`
	Cost           StatusLineCost           `json:"cost"`
	ContextWindow  *StatusLineContextWindow `json:"context_window"`
}

type StatusLineWorkspace struct {
	CurrentDir string `json:"current_dir"`
	ProjectDir string `json:"project_dir"`
}

type StatusLineModel struct {
	ID                    string  `json:"id"`
	DisplayName           string  `json:"display_name"`
	DisplayNameWithEffort string  `json:"display_name_with_effort"`
	ReasoningEffort       *string `json:"reasoning_effort"`
}

type StatusLineOutputStyle struct {
	Name string `json:"name"`
}

type StatusLineCost struct {
	TotalCostUSD       *float64 `json:"total_cost_usd"`
	TotalDurationMs    *uint64  `json:"total_duration_ms"`
	TotalAPIDurationMs *uint64  `json:"total_api_duration_ms"`
	TotalLinesAdded    *int64   `json:"total_lines_added"`
	TotalLinesRemoved  *int64   `json:"total_lines_removed"`
}

type StatusLineContextWindow struct {
	ContextWindowSize *int64                  `json:"context_window_size"`
	CurrentUsage      *StatusLineContextUsage `json:"current_usage"`
	PercentRemaining  *int64                  `json:"percent_remaining"`
}

type StatusLineContextUsage struct {
	InputTokens          int64 `json:"input_tokens"`
	CacheCreationTokens  int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens int64 `json:"cache_read_input_tokens"`
	OutputTokens         int64 `json:"output_tokens"`
	ReasoningTokens      int64 `json:"reasoning_output_tokens"`
	TotalTokens          int64 `json:"total_tokens"`
}

// StatusLineInputArgs carries the raw fields a snapshot is built from.
type StatusLineInputArgs struct {
	SessionID        *string
	TranscriptPath   *string
	Cwd              string
	ProjectDir       string
	ModelID          string
	ModelDisplayName string
	ReasoningEffort  string
	Version          string
	ContextWindow    *StatusLineContextWindow
}

// NewStatusLineInput assembles a snapshot; the effort-qualified display name
// only differs from the plain one when a reasoning effort is set.
func NewStatusLineInput(args StatusLineInputArgs) StatusLineInput {
	withEffort := args.ModelDisplayName
	var effort *string
	if args.ReasoningEffort != "" && args.ReasoningEffort != config.EffortNone {
		e := args.ReasoningEffort
		effort = &e
		withEffort = fmt.Sprintf("%s %s", args.ModelDisplayName, e)
	}
	return StatusLineInput{
		HookEventName:  statusLineHookEvent,
		SessionID:      args.SessionID,
		TranscriptPath: args.TranscriptPath,
		Cwd:            args.Cwd,
		Workspace: StatusLineWorkspace{
			CurrentDir: args.Cwd,
			ProjectDir: args.ProjectDir,
		},
		Model: StatusLineModel{
			ID:                    args.ModelID,
			DisplayName:           args.ModelDisplayName,
			DisplayNameWithEffort: withEffort,
			ReasoningEffort:       effort,
		},
		Version:       args.Version,
		OutputStyle:   StatusLineOutputStyle{Name: "default"},
		ContextWindow: args.ContextWindow,
	}
}

// StatusLineManager debounces snapshot updates and runs the user-configured
// command at most once per statusLineMinInterval, always with the newest
// snapshot. Results are published to the bus as UpdateStatusLineMsg.
type StatusLineManager struct {
	command []string
	cwd     string
	padding int
	bus     *Bus

	mu      sync.Mutex
	pending *StatusLineInput
	wake    chan struct{}
	done    chan struct{}
}

func NewStatusLineManager(settings config.StatusLineConfig, bus *Bus, cwd string) *StatusLineManager {
	padding := defaultStatusLinePadding
	if settings.Padding != nil {
		padding = *settings.Padding
	}
	m := &StatusLineManager{
		command: settings.Command,
		cwd:     cwd,
		padding: padding,
		bus:     bus,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go m.loop()
	return m
}

// Update replaces any not-yet-run snapshot with this one.
func (m *StatusLineManager) Update(input StatusLineInput) {
	m.mu.Lock()
	m.pending = &input
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *StatusLineManager) Close() {
	close(m.done)
}

func (m *StatusLineManager) loop() {
	lastRun := time.Now().Add(-statusLineMinInterval)
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}

		for {
			if wait := time.Until(lastRun.Add(statusLineMinInterval)); wait > 0 {
				select {
				case <-m.done:
					return
				case <-time.After(wait):
				}
			}

			m.mu.Lock()
			input := m.pending
			m.pending = nil
			m.mu.Unlock()
			if input == nil {
				break
			}

			line := m.run(*input)
			m.bus.Send(UpdateStatusLineMsg{Line: line})
			lastRun = time.Now()
		}
	}
}

// run executes the command with the snapshot on stdin and returns the first
// non-empty stdout line, padded. Any failure yields nil, which clears the
// on-screen status line.
func (m *StatusLineManager) run(input StatusLineInput) *string {
	if len(m.command) == 0 {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil
	}

	cmd := exec.Command(m.command[0], m.command[1:]...)
	cmd.Dir = m.cwd
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			logger.Debug("status line command failed", "stderr", msg)
		} else {
			logger.Debug("status line command failed", "error", err)
		}
		return nil
	}

	for _, raw := range strings.Split(stdout.String(), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := strings.Repeat(" ", m.padding) + strings.TrimRight(raw, "\r")
		return &line
	}
	return nil
}
