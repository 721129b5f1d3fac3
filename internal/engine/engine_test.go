package engine

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourusername/codexterm/internal/config"
)

func writeRollout(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollout.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write rollout: %v", err)
	}
	return path
}

func TestResumeConversationTakesIDFromMeta(t *testing.T) {
	path := writeRollout(t,
		`{"id":"11111111-2222-3333-4444-555555555555","timestamp":"2025-09-01T12:00:00.000Z"}`+"\n")

	m := NewManager(&config.Config{Model: "gpt-5"})
	c := m.ResumeConversation(path, func(Event) {})
	if c.ID().String() != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("conversation id: got %s", c.ID())
	}
	if c.RolloutPath() != path {
		t.Errorf("rollout path: got %q", c.RolloutPath())
	}
}

func TestGetHistoryReplaysEntries(t *testing.T) {
	path := writeRollout(t,
		`{"id":"11111111-2222-3333-4444-555555555555","timestamp":"2025-09-01T12:00:00.000Z"}`+"\n"+
			`{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}`+"\n"+
			`{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hello"}]}`+"\n")

	events := make(chan Event, 4)
	m := NewManager(&config.Config{Model: "gpt-5"})
	c := m.ResumeConversation(path, func(e Event) { events <- e })

	c.Submit(OpGetHistory{})
	ev := <-events
	if ev.Type != EventHistory {
		t.Fatalf("event type: want %s, got %s", EventHistory, ev.Type)
	}
	if ev.History.ConversationID != c.ID() {
		t.Errorf("history conversation id mismatch")
	}
	if len(ev.History.Entries) != 2 {
		t.Fatalf("entries: want 2, got %d", len(ev.History.Entries))
	}
}

func TestRunTurnEmitsUsageFromTrailingChunk(t *testing.T) {
	// The backend sends the usage totals in a choices-empty chunk after the
	// stop chunk; the turn must keep reading until the stream ends.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-5","choices":[{"index":0,"delta":{"content":"hello"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-5","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-5","choices":[],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	events := make(chan Event, 16)
	m := NewManager(&config.Config{Model: "gpt-5", OpenAIAPIKey: "test", OpenAIBaseURL: srv.URL + "/v1"})
	c := m.NewConversation(func(e Event) { events <- e })

	c.Submit(OpUserInput{Text: "hi"})

	var usage *TokenUsage
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case e := <-events:
			switch e.Type {
			case EventTokenCount:
				usage = e.Usage
			case EventTaskComplete:
				done = true
			case EventError:
				t.Fatalf("turn failed: %s", e.Err)
			}
		case <-deadline:
			t.Fatal("turn did not complete")
		}
	}

	if usage == nil {
		t.Fatal("no token count event for the trailing usage chunk")
	}
	if usage.InputTokens != 7 || usage.OutputTokens != 3 || usage.TotalTokens != 10 {
		t.Errorf("usage = %+v", *usage)
	}
}

func TestSeededHistoryFromRollout(t *testing.T) {
	path := writeRollout(t,
		`{"timestamp":"2025-09-01T12:00:00.000Z"}`+"\n"+
			`{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}`+"\n"+
			`{"type":"reasoning"}`+"\n"+
			`{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hello"}]}`+"\n")

	m := NewManager(&config.Config{Model: "gpt-5"})
	c := m.ResumeConversation(path, func(Event) {})
	if len(c.history) != 2 {
		t.Fatalf("seeded history: want 2 messages, got %d", len(c.history))
	}
	if c.history[0].Role != "user" || c.history[1].Role != "assistant" {
		t.Errorf("roles: got %s, %s", c.history[0].Role, c.history[1].Role)
	}
}
