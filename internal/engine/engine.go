// Package engine drives conversations with the model backend and answers
// history requests from the persisted rollout log. The TUI submits Ops and
// consumes Events; it never talks to the backend directly.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/yourusername/codexterm/internal/config"
	"github.com/yourusername/codexterm/internal/rollout"
)

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// EventType discriminates engine events.
type EventType string

const (
	EventAgentMessageDelta EventType = "agent_message_delta"
	EventAgentMessage      EventType = "agent_message"
	EventTaskStarted       EventType = "task_started"
	EventTaskComplete      EventType = "task_complete"
	EventTokenCount        EventType = "token_count"
	EventError             EventType = "error"
	EventHistory           EventType = "conversation_history"
)

// Event is a single notification from a conversation. Exactly the fields
// relevant to Type are populated.
type Event struct {
	Type    EventType
	Delta   string
	Message string
	Usage   *TokenUsage
	History *HistoryResponse
	Err     string
}

// TokenUsage is the running token tally for a conversation.
type TokenUsage struct {
	InputTokens       int64
	CachedInputTokens int64
	OutputTokens      int64
	TotalTokens       int64
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.CachedInputTokens += o.CachedInputTokens
	u.OutputTokens += o.OutputTokens
	u.TotalTokens += o.TotalTokens
}

// HistoryResponse carries the replayed conversation log.
type HistoryResponse struct {
	ConversationID uuid.UUID
	Entries        []rollout.Item
}

// ---------------------------------------------------------------------------
// Ops
// ---------------------------------------------------------------------------

// Op is a request submitted to a conversation.
type Op interface{ isOp() }

// OpUserInput submits a user turn.
type OpUserInput struct {
	Text   string
	Images []string
}

// OpGetHistory asks for the persisted conversation log to be replayed as an
// EventHistory event.
type OpGetHistory struct{}

// OpInterrupt cancels the in-flight turn, if any.
type OpInterrupt struct{}

func (OpUserInput) isOp()  {}
func (OpGetHistory) isOp() {}
func (OpInterrupt) isOp()  {}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager creates conversations against a shared backend client. It is
// shared by the controller and the chat widget and survives widget
// replacement.
type Manager struct {
	client *openai.Client
	cfg    *config.Config
}

// NewManager builds a conversation manager from config.
func NewManager(cfg *config.Config) *Manager {
	cc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		cc.BaseURL = cfg.OpenAIBaseURL
	}
	return &Manager{
		client: openai.NewClientWithConfig(cc),
		cfg:    cfg,
	}
}

// NewConversation starts a fresh conversation. onEvent is invoked from a
// background goroutine for every engine event.
func (m *Manager) NewConversation(onEvent func(Event)) *Conversation {
	return m.newConversation(uuid.New(), "", onEvent)
}

// ResumeConversation starts a conversation bound to an existing rollout
// file. The conversation id is taken from the rollout metadata when present
// so replayed history can be matched to the session.
func (m *Manager) ResumeConversation(rolloutPath string, onEvent func(Event)) *Conversation {
	id := uuid.New()
	if meta, ok := rollout.ReadMeta(rolloutPath); ok && meta.ID != nil {
		id = *meta.ID
	}
	return m.newConversation(id, rolloutPath, onEvent)
}

func (m *Manager) newConversation(id uuid.UUID, rolloutPath string, onEvent func(Event)) *Conversation {
	c := &Conversation{
		id:          id,
		manager:     m,
		rolloutPath: rolloutPath,
		onEvent:     onEvent,
	}
	if rolloutPath != "" {
		// Seed the model context from the persisted log so the resumed
		// conversation continues where it left off.
		c.history = messagesFromRollout(rollout.LoadEntries(rolloutPath))
	}
	return c
}

// ---------------------------------------------------------------------------
// Conversation
// ---------------------------------------------------------------------------

// Conversation is a single chat session. Submit never blocks; turns run on
// a background goroutine.
type Conversation struct {
	id          uuid.UUID
	manager     *Manager
	rolloutPath string
	onEvent     func(Event)

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
	cancel  context.CancelFunc
}

// ID returns the conversation id.
func (c *Conversation) ID() uuid.UUID { return c.id }

// RolloutPath returns the persisted log path backing this conversation, if
// it was resumed from one.
func (c *Conversation) RolloutPath() string { return c.rolloutPath }

// Submit dispatches an op. Unknown ops are ignored.
func (c *Conversation) Submit(op Op) {
	switch op := op.(type) {
	case OpUserInput:
		go c.runTurn(op)
	case OpGetHistory:
		go c.replayHistory()
	case OpInterrupt:
		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Unlock()
	}
}

func (c *Conversation) replayHistory() {
	var entries []rollout.Item
	if c.rolloutPath != "" {
		entries = rollout.LoadEntries(c.rolloutPath)
	}
	c.onEvent(Event{
		Type:    EventHistory,
		History: &HistoryResponse{ConversationID: c.id, Entries: entries},
	})
}

func (c *Conversation) runTurn(op OpUserInput) {
	cfg := c.manager.cfg

	c.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.history = append(c.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: op.Text,
	})
	messages := make([]openai.ChatCompletionMessage, len(c.history))
	copy(messages, c.history)
	c.mu.Unlock()
	defer cancel()

	c.onEvent(Event{Type: EventTaskStarted})

	req := openai.ChatCompletionRequest{
		Model:    cfg.Model,
		Messages: messages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	if cfg.Temperature != 0 {
		req.Temperature = float32(cfg.Temperature)
	}

	stream, err := c.manager.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		c.onEvent(Event{Type: EventError, Err: fmt.Sprintf("stream error: %v", err)})
		return
	}
	defer stream.Close()

	var full string
	for {
		response, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.onEvent(Event{Type: EventError, Err: fmt.Sprintf("stream receive error: %v", err)})
			return
		}
		if response.Usage != nil {
			usage := TokenUsage{
				InputTokens:  int64(response.Usage.PromptTokens),
				OutputTokens: int64(response.Usage.CompletionTokens),
				TotalTokens:  int64(response.Usage.TotalTokens),
			}
			if d := response.Usage.PromptTokensDetails; d != nil {
				usage.CachedInputTokens = int64(d.CachedTokens)
			}
			c.onEvent(Event{Type: EventTokenCount, Usage: &usage})
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta != "" {
			full += delta
			c.onEvent(Event{Type: EventAgentMessageDelta, Delta: delta})
		}
		// No break on the finish reason: the usage totals arrive in a
		// trailing choices-empty chunk after the stop chunk.
	}

	c.mu.Lock()
	c.history = append(c.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: full,
	})
	c.cancel = nil
	c.mu.Unlock()

	c.onEvent(Event{Type: EventAgentMessage, Message: full})
	c.onEvent(Event{Type: EventTaskComplete})
}

// messagesFromRollout projects persisted log items onto chat messages,
// keeping only user and assistant text.
func messagesFromRollout(items []rollout.Item) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, it := range items {
		if it.Type != rollout.ItemMessage {
			continue
		}
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
		if text == "" {
			continue
		}
		role := openai.ChatMessageRoleAssistant
		if it.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	return out
}
