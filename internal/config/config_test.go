package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeEffort(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"LOW":    EffortLow,
		" high ": EffortHigh,
		"medium": EffortMedium,
		"none":   EffortNone,
		"turbo":  "",
	}
	for in, want := range cases {
		if got := normalizeEffort(in); got != want {
			t.Errorf("normalizeEffort(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestDisplayNameFallback(t *testing.T) {
	c := &Config{Model: "gpt-5"}
	if got := c.DisplayName(); got != "gpt-5" {
		t.Errorf("DisplayName: want gpt-5, got %q", got)
	}
	c.ModelDisplayName = "GPT-5"
	if got := c.DisplayName(); got != "GPT-5" {
		t.Errorf("DisplayName: want GPT-5, got %q", got)
	}
}

func TestRelativizeToHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	in := filepath.Join(home, "work", "log.jsonl")
	want := filepath.Join("~", "work", "log.jsonl")
	if got := RelativizeToHome(in); got != want {
		t.Errorf("RelativizeToHome(%q): want %q, got %q", in, want, got)
	}
	if got := RelativizeToHome("/etc/passwd"); got != "/etc/passwd" {
		t.Errorf("RelativizeToHome outside home: got %q", got)
	}
}
