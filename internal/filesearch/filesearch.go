// Package filesearch runs background workspace file searches for the
// composer's @-mention popup. Queries supersede each other: only the result
// of the most recent query is reported.
package filesearch

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MaxMatches bounds a single result set.
const MaxMatches = 16

// Result is the outcome of one completed query.
type Result struct {
	Query   string
	Matches []string
}

// Manager serializes file searches over a workspace root.
type Manager struct {
	root     string
	onResult func(Result)

	mu     sync.Mutex
	latest string
}

// NewManager builds a manager rooted at dir. onResult is invoked from a
// background goroutine, once per non-superseded query.
func NewManager(dir string, onResult func(Result)) *Manager {
	return &Manager{root: dir, onResult: onResult}
}

// Search starts a query. Empty queries are ignored.
func (m *Manager) Search(query string) {
	if query == "" {
		return
	}
	m.mu.Lock()
	m.latest = query
	m.mu.Unlock()

	go func() {
		matches := m.scan(query)
		m.mu.Lock()
		superseded := m.latest != query
		m.mu.Unlock()
		if superseded {
			return
		}
		m.onResult(Result{Query: query, Matches: matches})
	}()
}

// scan walks the workspace collecting paths whose base name contains the
// query, case-insensitively. Hidden directories are skipped.
func (m *Manager) scan(query string) []string {
	q := strings.ToLower(query)
	var matches []string
	_ = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != m.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if strings.Contains(strings.ToLower(name), q) {
			rel, err := filepath.Rel(m.root, path)
			if err != nil {
				rel = path
			}
			matches = append(matches, rel)
		}
		return nil
	})

	// Shorter paths first, then lexicographic; prefix matches on the base
	// name win over substring matches.
	sort.Slice(matches, func(i, j int) bool {
		pi := strings.HasPrefix(strings.ToLower(filepath.Base(matches[i])), q)
		pj := strings.HasPrefix(strings.ToLower(filepath.Base(matches[j])), q)
		if pi != pj {
			return pi
		}
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}
