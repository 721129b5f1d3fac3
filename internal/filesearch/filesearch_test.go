package filesearch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSearchFindsMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"main.go", "main_test.go", "readme.md", ".hidden.go"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".git", "main.go"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	results := make(chan Result, 1)
	m := NewManager(dir, func(r Result) { results <- r })
	m.Search("main")

	select {
	case r := <-results:
		if r.Query != "main" {
			t.Errorf("query: got %q", r.Query)
		}
		if len(r.Matches) != 2 {
			t.Fatalf("matches: want 2, got %d (%v)", len(r.Matches), r.Matches)
		}
		if r.Matches[0] != "main.go" {
			t.Errorf("first match: want main.go, got %q", r.Matches[0])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}

func TestSearchIgnoresEmptyQuery(t *testing.T) {
	called := make(chan struct{}, 1)
	m := NewManager(t.TempDir(), func(Result) { called <- struct{}{} })
	m.Search("")
	select {
	case <-called:
		t.Fatal("empty query must not produce a result")
	case <-time.After(50 * time.Millisecond):
	}
}
