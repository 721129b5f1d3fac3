// Package rollout reads the persisted conversation log ("rollout" file): a
// newline-delimited JSON file whose first line is a metadata record and whose
// remaining lines are state records or conversation items.
package rollout

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Item variants
// ---------------------------------------------------------------------------

// ItemType discriminates the tagged "type" field of a log item.
type ItemType string

const (
	ItemMessage            ItemType = "message"
	ItemReasoning          ItemType = "reasoning"
	ItemLocalShellCall     ItemType = "local_shell_call"
	ItemFunctionCall       ItemType = "function_call"
	ItemFunctionCallOutput ItemType = "function_call_output"
)

// Item is a single record from the rollout file. Exactly one variant's
// fields are populated, selected by Type.
type Item struct {
	Type ItemType `json:"type"`

	// message
	Role    string        `json:"role,omitempty"`
	Content []ContentItem `json:"content,omitempty"`

	// function_call
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// function_call / local_shell_call / function_call_output
	CallID string `json:"call_id,omitempty"`

	// local_shell_call
	Action *ShellAction `json:"action,omitempty"`

	// function_call_output
	Output *CallOutput `json:"output,omitempty"`
}

// ContentItem is one block of message content. Types other than input_text
// and output_text are ignored by consumers.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ShellAction describes a local shell call. Only the "exec" kind carries a
// command vector.
type ShellAction struct {
	Type    string   `json:"type"`
	Command []string `json:"command,omitempty"`
}

// IsExec reports whether the action is an exec with a command.
func (a *ShellAction) IsExec() bool {
	return a != nil && a.Type == "exec"
}

// CallOutput is the payload of a function_call_output record. A nil Success
// means the caller should assume the call succeeded.
type CallOutput struct {
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// Succeeded resolves the optional success flag, defaulting to true.
func (o *CallOutput) Succeeded() bool {
	return o == nil || o.Success == nil || *o.Success
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseItem parses a single log line as an Item. The second return value is
// false when the line is not a recognizable item (metadata line, state
// record, unknown type, or malformed JSON).
func ParseItem(line []byte) (Item, bool) {
	var it Item
	if err := json.Unmarshal(line, &it); err != nil {
		return Item{}, false
	}
	if !it.valid() {
		return Item{}, false
	}
	return it, true
}

// valid checks that the discriminator is known and the variant's required
// fields are present, mirroring what a strict decoder would enforce.
func (it Item) valid() bool {
	switch it.Type {
	case ItemMessage:
		return it.Role != ""
	case ItemReasoning:
		return true
	case ItemLocalShellCall:
		return it.Action != nil
	case ItemFunctionCall:
		return it.Name != "" && it.CallID != ""
	case ItemFunctionCallOutput:
		return it.CallID != "" && it.Output != nil
	default:
		return false
	}
}

// LoadEntries reads every parseable item from a rollout file in order.
// Metadata and state lines are skipped; a missing or unreadable file yields
// an empty slice.
func LoadEntries(path string) []Item {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var items []Item
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if it, ok := ParseItem([]byte(line)); ok {
			items = append(items, it)
		}
	}
	return items
}

// ---------------------------------------------------------------------------
// Metadata line
// ---------------------------------------------------------------------------

// Meta holds the fields of the first line of a rollout file.
type Meta struct {
	// Timestamp is the creation time with the RFC3339 "T" replaced by a
	// space and any trailing "Z" removed, ready for display.
	Timestamp string
	// ID is the conversation UUID, when present and well formed.
	ID *uuid.UUID
}

// ReadMeta parses the first line of the rollout file. It returns false when
// the file cannot be read or the first line is not JSON.
func ReadMeta(path string) (Meta, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !sc.Scan() {
		return Meta{}, false
	}
	var raw struct {
		Timestamp string `json:"timestamp"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(sc.Text())), &raw); err != nil {
		return Meta{}, false
	}
	meta := Meta{
		Timestamp: strings.TrimSuffix(strings.ReplaceAll(raw.Timestamp, "T", " "), "Z"),
	}
	if raw.ID != "" {
		if id, err := uuid.Parse(raw.ID); err == nil {
			meta.ID = &id
		}
	}
	return meta, true
}
