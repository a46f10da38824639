package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"virtualfit/internal/adapter/tui/theme"
)

// ModalClosedMsg is emitted when the user dismisses the modal.
type ModalClosedMsg struct {
	Alert bool
}

// ModalModel is a full-screen overlay used for alerts and long content
// such as the stored profile.
type ModalModel struct {
	Viewport viewport.Model
	Title    string
	Visible  bool
	Alert    bool // red border, dismissed with Enter
	width    int
	height   int
}

// NewModal creates a hidden modal.
func NewModal() ModalModel {
	return ModalModel{}
}

// Open shows the modal with the given content.
func (m *ModalModel) Open(title, content string) {
	m.open(title, content, false)
}

// OpenAlert shows a blocking alert the user must dismiss.
func (m *ModalModel) OpenAlert(title, content string) {
	m.open(title, content, true)
}

func (m *ModalModel) open(title, content string, alert bool) {
	m.Title = title
	m.Visible = true
	m.Alert = alert
	w, h := 80, 24
	if m.width > 0 {
		w, h = m.width-4, m.height-4
	}
	m.Viewport = viewport.New(max(w, 10), max(h, 3))
	m.Viewport.MouseWheelEnabled = true
	m.Viewport.SetContent(content)
}

// Close hides the modal.
func (m *ModalModel) Close() {
	m.Visible = false
}

// SetSize updates the modal dimensions.
func (m *ModalModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.Visible {
		m.Viewport.Width = max(w-4, 10)
		m.Viewport.Height = max(h-4, 3)
	}
}

// Update handles modal keys: Esc, q and Enter close; j/k scroll.
func (m ModalModel) Update(msg tea.Msg) (ModalModel, tea.Cmd) {
	if !m.Visible {
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc", "q", "enter":
			m.Close()
			alert := m.Alert
			return m, func() tea.Msg { return ModalClosedMsg{Alert: alert} }
		case "j", "down":
			m.Viewport.LineDown(3)
			return m, nil
		case "k", "up":
			m.Viewport.LineUp(3)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the modal overlay.
func (m ModalModel) View() string {
	if !m.Visible {
		return ""
	}

	titleStyle := theme.Bold
	border := theme.ColorBorderActive
	footer := "  Esc/q: close  j/k: scroll"
	if m.Alert {
		titleStyle = theme.TextError
		border = theme.ColorBorderAlert
		footer = "  Enter: dismiss"
	}

	titleBar := titleStyle.Render("  " + m.Title)
	scrollInfo := theme.TextMuted.Render(fmt.Sprintf(" %.0f%%", m.Viewport.ScrollPercent()*100))
	inner := lipgloss.JoinVertical(lipgloss.Left, titleBar, m.Viewport.View(), theme.Dim.Render(footer)+"  "+scrollInfo)

	style := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Padding(0, 1)
	if m.width > 0 {
		style = style.Width(m.width - 2).Height(m.height - 2)
	}
	return style.Render(inner)
}
