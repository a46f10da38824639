package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"virtualfit/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Send"
}

// StatusBarModel renders a bottom status bar with keybinding hints and
// connection info.
type StatusBarModel struct {
	Hints     []KeyHint
	Connected bool
	SessionID string
	UserName  string
	Notice    string // transient text, e.g. "Analyzing image..."
	width     int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var parts []string
	if m.Notice != "" {
		parts = append(parts, theme.TextInfo.Render(m.Notice))
	}
	if m.UserName != "" {
		parts = append(parts, theme.TextMuted.Render(m.UserName))
	}
	if m.Connected {
		conn := theme.TextSuccess.Render(theme.SymbolInfo) + " " + theme.TextMuted.Render("connected")
		if m.SessionID != "" {
			conn += theme.TextMuted.Render(" " + shortID(m.SessionID))
		}
		parts = append(parts, conn)
	} else {
		parts = append(parts, theme.TextError.Render(theme.SymbolInfo)+" "+theme.TextMuted.Render("offline"))
	}
	right := strings.Join(parts, " "+theme.SymbolBullet+" ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
