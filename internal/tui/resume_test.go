package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/yourusername/codexterm/internal/rollout"
)

func boolp(b bool) *bool { return &b }

func userMsg(text string) rollout.Item {
	return rollout.Item{
		Type:    rollout.ItemMessage,
		Role:    "user",
		Content: []rollout.ContentItem{{Type: "input_text", Text: text}},
	}
}

func assistantMsg(text string) rollout.Item {
	return rollout.Item{
		Type:    rollout.ItemMessage,
		Role:    "assistant",
		Content: []rollout.ContentItem{{Type: "output_text", Text: text}},
	}
}

func TestRenderResumedHistoryToolReplay(t *testing.T) {
	entries := []rollout.Item{
		{Type: rollout.ItemFunctionCall, Name: "server__echo", CallID: "c1"},
		{
			Type:   rollout.ItemFunctionCallOutput,
			CallID: "c1",
			Output: &rollout.CallOutput{
				Content: `{"content":[{"type":"text","text":"hello from tool"}],"is_error":false}`,
				Success: boolp(true),
			},
		},
	}

	// Strip styling before substring checks: the markdown renderer
	// interleaves escape sequences mid-line.
	blob := ansi.Strip(strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), ""), "\n"))

	for _, want := range []string{"tool", "server/echo", "✓", "hello from tool"} {
		if !strings.Contains(blob, want) {
			t.Errorf("rendered output missing %q:\n%s", want, blob)
		}
	}
}

func TestRenderResumedHistoryMixedReplay(t *testing.T) {
	entries := []rollout.Item{
		userMsg("Hello"),
		assistantMsg("Hi there"),
		{Type: rollout.ItemReasoning},
		{
			Type:   rollout.ItemLocalShellCall,
			CallID: "e1",
			Action: &rollout.ShellAction{Type: "exec", Command: []string{"bash", "-lc", "echo hi"}},
		},
		{Type: rollout.ItemFunctionCallOutput, CallID: "e1", Output: &rollout.CallOutput{Success: boolp(true)}},
		{Type: rollout.ItemFunctionCall, Name: "server__echo", CallID: "c1"},
		{Type: rollout.ItemFunctionCallOutput, CallID: "c1", Output: &rollout.CallOutput{Success: boolp(true)}},
	}

	blob := ansi.Strip(strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), ""), "\n"))

	wantOrder := []string{"Hello", "codex", "Hi there", "thinking", "⌨️", "echo hi", "tool", "server/echo"}
	pos := 0
	for _, want := range wantOrder {
		idx := strings.Index(blob[pos:], want)
		if idx < 0 {
			t.Fatalf("rendered output missing %q after offset %d:\n%s", want, pos, blob)
		}
		pos += idx
	}
}

func TestRenderResumedHistoryFailedCallsUseCross(t *testing.T) {
	entries := []rollout.Item{
		{
			Type:   rollout.ItemLocalShellCall,
			CallID: "e1",
			Action: &rollout.ShellAction{Type: "exec", Command: []string{"false"}},
		},
		{Type: rollout.ItemFunctionCallOutput, CallID: "e1", Output: &rollout.CallOutput{Success: boolp(false)}},
	}

	blob := strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), ""), "\n")
	if !strings.Contains(blob, "✗") {
		t.Errorf("failed exec should render ✗:\n%s", blob)
	}
	if strings.Contains(blob, "✓") {
		t.Errorf("failed exec should not render ✓:\n%s", blob)
	}
}

func TestRenderResumedHistoryExecWithoutOutputAssumesSuccess(t *testing.T) {
	entries := []rollout.Item{
		{
			Type:   rollout.ItemLocalShellCall,
			CallID: "e1",
			Action: &rollout.ShellAction{Type: "exec", Command: []string{"ls"}},
		},
	}

	blob := strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), ""), "\n")
	if !strings.Contains(blob, "✓") {
		t.Errorf("exec without recorded output should render ✓:\n%s", blob)
	}
}

func TestRenderResumedHistoryUnpairedCallOmitted(t *testing.T) {
	entries := []rollout.Item{
		{Type: rollout.ItemFunctionCall, Name: "server__echo", CallID: "orphan"},
	}

	blob := strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), ""), "\n")
	if strings.Contains(blob, "server/echo") {
		t.Errorf("call without output should not render a tool line:\n%s", blob)
	}
}

func TestRenderResumedHistoryTruncatesLongMessages(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "paragraph %d\n\n", i)
	}
	entries := []rollout.Item{assistantMsg(b.String())}

	lines := RenderResumedHistory(entries, NewMarkdownRenderer(80), "")

	// blank + header + capped body + truncation note
	if got, want := len(lines), 2+maxResumeMessageLines+1; got != want {
		t.Fatalf("got %d lines, want %d", got, want)
	}
	if !strings.Contains(lines[len(lines)-1], "… truncated; press Ctrl-T for full transcript") {
		t.Errorf("missing truncation note, got %q", lines[len(lines)-1])
	}
}

func TestRenderResumedHistoryRecapHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollout.jsonl")
	meta := `{"id":"11111111-2222-3333-4444-555555555555","timestamp":"2025-09-01T12:00:00.000Z"}` + "\n"
	if err := os.WriteFile(path, []byte(meta), 0o644); err != nil {
		t.Fatalf("write rollout: %v", err)
	}
	// The sidecar count wins over the entry count.
	if err := os.WriteFile(path+".meta.json", []byte(`{"message_count":42}`), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	entries := []rollout.Item{
		userMsg("Hello"),
		{
			Type:   rollout.ItemLocalShellCall,
			CallID: "e1",
			Action: &rollout.ShellAction{Type: "exec", Command: []string{"ls", "-la"}},
		},
		{Type: rollout.ItemFunctionCall, Name: "server__echo", CallID: "c1"},
		{Type: rollout.ItemFunctionCallOutput, CallID: "c1", Output: &rollout.CallOutput{Success: boolp(true)}},
	}

	blob := ansi.Strip(strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), path), "\n"))

	for _, want := range []string{
		"Restored",
		"2025-09-01 12:00:00.000",
		"(42)",
		"• exec ls -la",
		"• tool server/echo",
		"id: 11111111-2222-3333-4444-555555555555",
		"path: ",
	} {
		if !strings.Contains(blob, want) {
			t.Errorf("recap header missing %q:\n%s", want, blob)
		}
	}
	// The header comes before the replayed conversation.
	if strings.Index(blob, "Restored") > strings.Index(blob, "Hello") {
		t.Error("recap header should precede the replay")
	}
}

func TestRecapHighlightsCapAtSixMostRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollout.jsonl")
	if err := os.WriteFile(path, []byte(`{"timestamp":"2025-09-01T12:00:00.000Z"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write rollout: %v", err)
	}

	var entries []rollout.Item
	for i := 0; i < 9; i++ {
		entries = append(entries, rollout.Item{
			Type:   rollout.ItemLocalShellCall,
			CallID: fmt.Sprintf("e%d", i),
			Action: &rollout.ShellAction{Type: "exec", Command: []string{"cmd", fmt.Sprint(i)}},
		})
	}

	blob := ansi.Strip(strings.Join(RenderResumedHistory(entries, NewMarkdownRenderer(80), path), "\n"))

	if strings.Contains(blob, "exec cmd 2") {
		t.Errorf("older actions should fall out of the highlight window:\n%s", blob)
	}
	// The six newest, oldest first.
	pos := 0
	for i := 3; i <= 8; i++ {
		want := fmt.Sprintf("exec cmd %d", i)
		idx := strings.Index(blob[pos:], want)
		if idx < 0 {
			t.Fatalf("highlights missing %q in order:\n%s", want, blob)
		}
		pos += idx
	}
}

func TestStripWrappers(t *testing.T) {
	tests := []struct {
		in   string
		want string
		keep bool
	}{
		{"plain text", "plain text", true},
		{"<environment_context>cwd=/tmp</environment_context>", "", false},
		{"<user_instructions>X</user_instructions>", "X", true},
		{"<user_instructions>  padded  </user_instructions>", "padded", true},
		{"<user_interactions>Y</user_interactions>", "Y", true},
		{"<user_instructions>unclosed", "<user_instructions>unclosed", true},
	}
	for _, tt := range tests {
		got, keep := stripWrappers(tt.in)
		if keep != tt.keep || got != tt.want {
			t.Errorf("stripWrappers(%q) = (%q, %v), want (%q, %v)", tt.in, got, keep, tt.want, tt.keep)
		}
	}
}

func TestSplitToolName(t *testing.T) {
	if s, tl := splitToolName("server__echo"); s != "server" || tl != "echo" {
		t.Errorf("got (%q, %q)", s, tl)
	}
	if s, tl := splitToolName("a__b__c"); s != "a" || tl != "b__c" {
		t.Errorf("split on first separator only, got (%q, %q)", s, tl)
	}
	if s, tl := splitToolName("bare"); s != "bare" || tl != "" {
		t.Errorf("got (%q, %q)", s, tl)
	}
}

func TestNthLastUserText(t *testing.T) {
	entries := []rollout.Item{
		userMsg("first"),
		assistantMsg("reply"),
		userMsg("second"),
		userMsg("third"),
	}
	if got := nthLastUserText(entries, 1); got != "third" {
		t.Errorf("n=1: got %q", got)
	}
	if got := nthLastUserText(entries, 3); got != "first" {
		t.Errorf("n=3: got %q", got)
	}
	if got := nthLastUserText(entries, 4); got != "" {
		t.Errorf("out of range: got %q", got)
	}
	if got := nthLastUserText(entries, 0); got != "" {
		t.Errorf("n=0: got %q", got)
	}
}
