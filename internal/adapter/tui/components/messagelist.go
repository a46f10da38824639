package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"virtualfit/internal/adapter/tui/theme"
	"virtualfit/internal/domain"
)

// ThinkingLabel is shown next to the spinner of a thinking placeholder.
const ThinkingLabel = "Thinking"

// NoReplyLabel replaces the spinner of a placeholder whose turn ended
// without content.
const NoReplyLabel = "No reply"

type cachedRender struct {
	text string
	out  string
}

// MessageListModel renders the reconciled chat list. Messages arrive newest
// first and are drawn oldest at the top.
type MessageListModel struct {
	messages   []domain.Message
	openTurn   string // id of the message still being answered
	width      int
	spinner    string
	now        func() time.Time
	mdRenderer *glamour.TermRenderer
	cache      map[string]cachedRender // bot markdown by message id
}

// NewMessageList creates an empty message list.
func NewMessageList() MessageListModel {
	return MessageListModel{
		now:   time.Now,
		cache: make(map[string]cachedRender),
	}
}

// SetWidth updates the rendering width and clears cached renders.
func (m *MessageListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.mdRenderer = nil
	m.cache = make(map[string]cachedRender)
}

// SetMessages replaces the list. msgs must be newest first.
func (m *MessageListModel) SetMessages(msgs []domain.Message) {
	m.messages = msgs
	if m.cache == nil {
		m.cache = make(map[string]cachedRender)
	}
	live := make(map[string]bool, len(msgs))
	for _, msg := range msgs {
		live[msg.ID] = true
	}
	for id := range m.cache {
		if !live[id] {
			delete(m.cache, id)
		}
	}
}

// SetOpenTurn marks the message of the reply in progress. Thinking
// placeholders of other turns are drawn as settled.
func (m *MessageListModel) SetOpenTurn(id string) {
	m.openTurn = id
}

// SetSpinner sets the frame drawn for thinking placeholders.
func (m *MessageListModel) SetSpinner(frame string) {
	m.spinner = frame
}

// Len returns the number of messages.
func (m *MessageListModel) Len() int { return len(m.messages) }

// HasThinking reports whether the open turn is still a thinking placeholder.
func (m *MessageListModel) HasThinking() bool {
	for _, msg := range m.messages {
		if m.pending(msg) {
			return true
		}
	}
	return false
}

// View renders all messages as a single string.
func (m *MessageListModel) View() string {
	if len(m.messages) == 0 {
		return theme.TextMuted.Render("  No messages yet. Ask about workouts or meals, or send /image <path>.")
	}

	width := ContentWidth(m.width)
	var sb strings.Builder
	for i := len(m.messages) - 1; i >= 0; i-- {
		if i < len(m.messages)-1 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(m.messages[i], width))
	}
	return sb.String()
}

func (m *MessageListModel) renderMessage(msg domain.Message, width int) string {
	header := m.label(msg) + " " + theme.Timestamp.Render(m.relativeTime(msg.CreatedAt))

	var body string
	switch {
	case msg.Sender == domain.SenderUser:
		body = "  " + wrapText(msg.Text, width-2)
		if msg.ImageRef != "" {
			body += "\n  " + theme.TextMuted.Render(theme.SymbolImage+" "+TruncatePath(msg.ImageRef, width-6))
		}
	case msg.IsThinking() && !m.pending(msg):
		body = "  " + theme.TextMuted.Render(NoReplyLabel)
	case msg.IsThinking():
		frame := m.spinner
		if frame == "" {
			frame = theme.SymbolEllipsis
		}
		body = "  " + theme.Thinking.Render(strings.TrimSpace(frame)+" "+ThinkingLabel+theme.SymbolEllipsis)
	case msg.State == domain.StateError:
		body = "  " + theme.TextError.Render(wrapText(msg.Text, width-2))
	case msg.State == domain.StateAnalysis:
		body = theme.AnalysisBody.Width(width - 2).Render(msg.Text)
	default:
		body = strings.TrimRight(m.renderMarkdown(msg.ID, msg.Text, width), "\n")
	}
	return header + "\n" + body
}

func (m *MessageListModel) pending(msg domain.Message) bool {
	return msg.IsThinking() && msg.ID != "" && msg.ID == m.openTurn
}

func (m *MessageListModel) label(msg domain.Message) string {
	if msg.Sender == domain.SenderUser {
		return theme.UserLabel.Render(theme.SymbolUser)
	}
	switch msg.State {
	case domain.StateError:
		return theme.ErrorLabel.Render(theme.SymbolError + " " + theme.SymbolBot)
	case domain.StateAnalysis:
		return theme.AnalysisLabel.Render(theme.SymbolNutrition + " Nutrition")
	default:
		return theme.BotLabel.Render(theme.SymbolBot)
	}
}

// renderMarkdown renders bot text with glamour, caching by message id until
// the text changes.
func (m *MessageListModel) renderMarkdown(id, content string, width int) string {
	if c, ok := m.cache[id]; ok && c.text == content {
		return c.out
	}
	out := "  " + wrapText(content, width-2)
	if m.mdRenderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			m.mdRenderer = r
		}
	}
	if m.mdRenderer != nil {
		if rendered, err := m.mdRenderer.Render(content); err == nil {
			out = rendered
		}
	}
	if m.cache == nil {
		m.cache = make(map[string]cachedRender)
	}
	m.cache[id] = cachedRender{text: content, out: out}
	return out
}

func (m *MessageListModel) relativeTime(t time.Time) string {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	return RelativeTime(t, now())
}

// RelativeTime returns a human-readable age of t as seen at now.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps text to the given width with a 2-space indent on
// continuation lines. Rune based so multibyte text is never split.
func wrapText(s string, width int) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		out = append(out, wrapLine(line, width))
	}
	return strings.Join(out, "\n  ")
}

func wrapLine(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	var lines []string
	for len(runes) > width {
		idx := -1
		for i := width - 1; i > 0; i-- {
			if runes[i] == ' ' {
				idx = i
				break
			}
		}
		if idx <= 0 {
			idx = width
		}
		lines = append(lines, string(runes[:idx]))
		runes = runes[idx:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n  ")
}

// TruncatePath shortens a file path with an ellipsis in the middle,
// e.g. "/home/user/very/deep/nested/meal.jpg" -> "/home/…/nested/meal.jpg".
func TruncatePath(path string, maxLen int) string {
	if len([]rune(path)) <= maxLen || maxLen < 10 {
		return path
	}

	parts := strings.Split(path, "/")
	if len(parts) > 3 {
		result := parts[0] + "/" + theme.SymbolEllipsis + "/" + strings.Join(parts[len(parts)-2:], "/")
		if len([]rune(result)) <= maxLen {
			return result
		}
	}
	runes := []rune(path)
	return theme.SymbolEllipsis + string(runes[len(runes)-maxLen+1:])
}

// ContentWidth calculates the content width respecting MaxContentWidth.
func ContentWidth(termWidth int) int {
	return theme.Clamp(termWidth-4, 40, theme.MaxContentWidth)
}

// Divider renders a horizontal line at the given width.
func Divider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat("─", max(width, 0)))
}
