package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pagerOverlay is a full-screen pager shown in the terminal's alternate
// screen. At most one overlay exists at a time. The transcript variant
// mirrors live history inserts; static overlays (diff output) are frozen.
type pagerOverlay struct {
	title      string
	transcript bool
	lines      []string
	viewport   viewport.Model
	follow     bool
}

// newTranscriptOverlay snapshots the transcript buffer into a live pager.
func newTranscriptOverlay(lines []string) *pagerOverlay {
	o := &pagerOverlay{
		title:      "T R A N S C R I P T",
		transcript: true,
		lines:      append([]string(nil), lines...),
		viewport:   viewport.New(80, 24),
		follow:     true,
	}
	o.refresh()
	o.viewport.GotoBottom()
	return o
}

// newStaticOverlay builds a frozen pager with a title.
func newStaticOverlay(title string, lines []string) *pagerOverlay {
	o := &pagerOverlay{
		title:    title,
		lines:    append([]string(nil), lines...),
		viewport: viewport.New(80, 24),
	}
	o.refresh()
	return o
}

// InsertLines mirrors freshly inserted history into a transcript overlay.
func (o *pagerOverlay) InsertLines(lines []string) {
	if !o.transcript {
		return
	}
	o.lines = append(o.lines, lines...)
	o.refresh()
	if o.follow {
		o.viewport.GotoBottom()
	}
}

// SetSize fits the pager to the terminal.
func (o *pagerOverlay) SetSize(width, height int) {
	o.viewport.Width = width
	// One row each for the title and the key hint footer.
	if height > 2 {
		o.viewport.Height = height - 2
	}
	o.refresh()
}

func (o *pagerOverlay) refresh() {
	o.viewport.SetContent(strings.Join(o.lines, "\n"))
}

// HandleKey scrolls the pager. It returns true when the overlay should
// close.
func (o *pagerOverlay) HandleKey(msg tea.KeyMsg) (closed bool) {
	switch msg.String() {
	case "q", "esc", "ctrl+t":
		return true
	case "up", "k":
		o.follow = false
		o.viewport.LineUp(1)
	case "down", "j":
		o.viewport.LineDown(1)
		o.follow = o.viewport.AtBottom()
	case "pgup", "b":
		o.follow = false
		o.viewport.ViewUp()
	case "pgdown", "f", " ":
		o.viewport.ViewDown()
		o.follow = o.viewport.AtBottom()
	case "g", "home":
		o.follow = false
		o.viewport.GotoTop()
	case "G", "end":
		o.viewport.GotoBottom()
		o.follow = true
	}
	return false
}

// View renders the pager with title and footer chrome.
func (o *pagerOverlay) View() string {
	title := overlayTitle.Render(o.title)
	footer := overlayFootStyle.Render("  ↑/↓ scroll · q or Esc to close")
	return lipgloss.JoinVertical(lipgloss.Left, title, o.viewport.View(), footer)
}
