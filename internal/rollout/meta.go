package rollout

import (
	"encoding/json"
	"os"
	"strings"
	"unicode/utf8"
)

// SessionStats carries statistics derived from a rollout file.
type SessionStats struct {
	// MessageCount is nil when the file could not be read at all.
	MessageCount *int
}

// ReadSessionStats derives session statistics for a rollout file without
// parsing it fully.
//
// Precedence: a parseable "<log>.meta.json" sidecar wins; otherwise the last
// maxBytes of the log are scanned for state records carrying message_count
// (latest wins), falling back to counting parseable items. The function never
// fails; an unreadable log yields a nil MessageCount.
func ReadSessionStats(path string, maxBytes int) SessionStats {
	if sidecar, err := os.ReadFile(sidecarPath(path)); err == nil {
		var v struct {
			MessageCount *int `json:"message_count"`
		}
		if json.Unmarshal(sidecar, &v) == nil {
			return SessionStats{MessageCount: v.MessageCount}
		}
	}

	var stats SessionStats
	raw, err := os.ReadFile(path)
	if err != nil {
		return stats
	}
	if len(raw) > maxBytes {
		raw = raw[len(raw)-maxBytes:]
	}
	if !utf8.Valid(raw) {
		return stats
	}

	derived := 0
	for _, line := range strings.Split(string(raw), "\n") {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		var v map[string]json.RawMessage
		if err := json.Unmarshal([]byte(l), &v); err == nil {
			if isStateRecord(v) {
				if n, ok := stateMessageCount(v); ok {
					stats.MessageCount = &n
				}
				continue
			}
			if _, ok := ParseItem([]byte(l)); ok {
				derived++
			}
		} else if strings.Contains(l, `"record_type":"state"`) {
			// The tail read can truncate a state line mid-JSON; recover
			// message_count with a permissive digit scan.
			if stats.MessageCount == nil {
				if n, ok := extractMessageCount(l); ok {
					stats.MessageCount = &n
				}
			}
		}
		// Partial JSON at the head of the tail window is dropped silently.
	}
	if stats.MessageCount == nil {
		stats.MessageCount = &derived
	}
	return stats
}

func sidecarPath(path string) string {
	return path + ".meta.json"
}

func isStateRecord(v map[string]json.RawMessage) bool {
	raw, ok := v["record_type"]
	if !ok {
		return false
	}
	var s string
	return json.Unmarshal(raw, &s) == nil && s == "state"
}

func stateMessageCount(v map[string]json.RawMessage) (int, bool) {
	raw, ok := v["message_count"]
	if !ok {
		return 0, false
	}
	var n uint64
	if json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	return int(n), true
}

// extractMessageCount pulls the digits following "message_count": out of a
// possibly truncated state line.
func extractMessageCount(l string) (int, bool) {
	const key = `"message_count":`
	i := strings.Index(l, key)
	if i < 0 {
		return 0, false
	}
	rest := l[i+len(key):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n := 0
	for _, c := range rest[:end] {
		n = n*10 + int(c-'0')
	}
	return n, true
}
