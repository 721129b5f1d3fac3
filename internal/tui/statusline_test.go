package tui

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/codexterm/internal/config"
)

func intp(n int) *int { return &n }

func snapshotFor(session string) StatusLineInput {
	sid := session
	return NewStatusLineInput(StatusLineInputArgs{
		SessionID:        &sid,
		Cwd:              "/tmp",
		ProjectDir:       "/tmp",
		ModelID:          "gpt-5",
		ModelDisplayName: "gpt-5",
		Version:          "0.0.0-test",
	})
}

// collectStatusLines drains bus publications until the pipeline has been
// quiet for longer than a debounce window.
func collectStatusLines(t *testing.T, bus *Bus) []*string {
	t.Helper()
	var got []*string
	deadline := time.After(3 * time.Second)
	for {
		ch := make(chan interface{}, 1)
		go func() { ch <- bus.Recv() }()
		select {
		case msg := <-ch:
			upd, ok := msg.(UpdateStatusLineMsg)
			if !ok {
				t.Fatalf("unexpected bus message %T", msg)
			}
			got = append(got, upd.Line)
		case <-time.After(600 * time.Millisecond):
			return got
		case <-deadline:
			t.Fatalf("status line pipeline did not go quiet")
		}
	}
}

func TestStatusLineDebounceCoalesces(t *testing.T) {
	bus := NewBus()
	settings := config.StatusLineConfig{
		// Echo the session_id field back so the test can tell which
		// snapshot each invocation saw.
		Command: []string{"sh", "-c", `sed -n 's/.*"session_id":"\([^"]*\)".*/\1/p'`},
		Padding: intp(2),
	}
	m := NewStatusLineManager(settings, bus, t.TempDir())
	defer m.Close()

	m.Update(snapshotFor("a"))
	time.Sleep(100 * time.Millisecond)
	m.Update(snapshotFor("b"))
	m.Update(snapshotFor("c"))

	got := collectStatusLines(t, bus)
	if len(got) != 2 {
		t.Fatalf("got %d publications, want 2", len(got))
	}
	if got[0] == nil || *got[0] != "  a" {
		t.Errorf("first publication = %v, want %q", got[0], "  a")
	}
	if got[1] == nil || *got[1] != "  c" {
		t.Errorf("second publication = %v, want %q (last writer wins)", got[1], "  c")
	}
}

func TestStatusLineFailurePublishesNil(t *testing.T) {
	bus := NewBus()
	m := NewStatusLineManager(config.StatusLineConfig{Command: []string{"false"}}, bus, t.TempDir())
	defer m.Close()

	m.Update(snapshotFor("a"))

	got := collectStatusLines(t, bus)
	if len(got) != 1 {
		t.Fatalf("got %d publications, want 1", len(got))
	}
	if got[0] != nil {
		t.Errorf("failed command should publish nil, got %q", *got[0])
	}
}

func TestStatusLineEmptyStdoutPublishesNil(t *testing.T) {
	bus := NewBus()
	m := NewStatusLineManager(config.StatusLineConfig{Command: []string{"true"}}, bus, t.TempDir())
	defer m.Close()

	m.Update(snapshotFor("a"))

	got := collectStatusLines(t, bus)
	if len(got) != 1 || got[0] != nil {
		t.Fatalf("empty stdout should publish one nil, got %v", got)
	}
}

func TestStatusLineSkipsBlankStdoutLines(t *testing.T) {
	bus := NewBus()
	settings := config.StatusLineConfig{
		Command: []string{"sh", "-c", `printf '\n\nready\n'`},
		Padding: intp(0),
	}
	m := NewStatusLineManager(settings, bus, t.TempDir())
	defer m.Close()

	m.Update(snapshotFor("a"))

	got := collectStatusLines(t, bus)
	if len(got) != 1 || got[0] == nil || *got[0] != "ready" {
		t.Fatalf("want first non-empty stdout line %q, got %v", "ready", got)
	}
}

func TestStatusLineInputJSONShape(t *testing.T) {
	data, err := json.Marshal(snapshotFor("sess"))
	if err != nil {
		t.Fatal(err)
	}
	blob := string(data)

	for _, want := range []string{
		`"hook_event_name":"Status"`,
		`"session_id":"sess"`,
		`"transcript_path":null`,
		`"cwd":"/tmp"`,
		`"workspace":{"current_dir":"/tmp","project_dir":"/tmp"}`,
		`"display_name_with_effort":"gpt-5"`,
		`"reasoning_effort":null`,
		`"output_style":{"name":"default"}`,
		`"total_cost_usd":null`,
		`"context_window":null`,
	} {
		if !strings.Contains(blob, want) {
			t.Errorf("payload missing %s:\n%s", want, blob)
		}
	}
}

func TestStatusLineDisplayNameWithEffort(t *testing.T) {
	in := NewStatusLineInput(StatusLineInputArgs{
		ModelDisplayName: "gpt-5",
		ReasoningEffort:  config.EffortHigh,
	})
	if in.Model.DisplayNameWithEffort != "gpt-5 high" {
		t.Errorf("got %q", in.Model.DisplayNameWithEffort)
	}

	in = NewStatusLineInput(StatusLineInputArgs{
		ModelDisplayName: "gpt-5",
		ReasoningEffort:  config.EffortNone,
	})
	if in.Model.DisplayNameWithEffort != "gpt-5" {
		t.Errorf("effort none should not qualify the name, got %q", in.Model.DisplayNameWithEffort)
	}
	if in.Model.ReasoningEffort != nil {
		t.Errorf("effort none should serialize as null")
	}
}
