package chat

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"virtualfit/internal/adapter/tui/components"
	"virtualfit/internal/adapter/tui/theme"
	"virtualfit/internal/adapter/tui/uxerror"
	"virtualfit/internal/domain"
	"virtualfit/internal/usecase"
)

const defaultSendTimeout = 10 * time.Second

const helpText = `Commands:
  /image <path>  - Analyze a food photo
  /profile       - Show the stored profile
  /help          - Show this help
  /quit          - Exit virtualfit

Keybindings:
  Enter          - Send message
  PgUp/PgDn      - Scroll chat
  Ctrl+C         - Quit`

// ChatModelDeps are dependencies injected into the chat model.
type ChatModelDeps struct {
	Session     *usecase.ChatSession // nil when the connection could not be opened
	Alert       error                // shown as an alert on start
	Logger      *slog.Logger
	SendTimeout time.Duration
	Now         func() time.Time
}

// ChatModel is the root Bubble Tea model of the chat client. Every call
// into the session's reconciler happens inside Update, so the message list
// has a single writer.
type ChatModel struct {
	deps   ChatModelDeps
	logger *slog.Logger

	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	spinner   spinner.Model
	modal     components.ModalModel

	analyzing     int  // image analyses in flight
	quitOnDismiss bool // the next dismissed alert exits the program
	width         int
	height        int
	quitting      bool
}

// NewChatModel creates the root chat model.
func NewChatModel(deps ChatModelDeps) ChatModel {
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = defaultSendTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	sb := components.NewStatusBar()
	sb.Hints = defaultHints()
	sb.Connected = deps.Session != nil

	m := ChatModel{
		deps:      deps,
		logger:    logger.With("component", "tui"),
		chatView:  components.NewChatView(),
		input:     components.NewInputArea(),
		statusBar: sb,
		spinner:   s,
		modal:     components.NewModal(),
	}
	if deps.Session != nil {
		if p := deps.Session.Profile(); p != nil {
			m.statusBar.UserName = p.Name
		}
		m.chatView.SetMessages(deps.Session.Messages(), deps.Session.Reconciler().OpenTurnID())
	}
	if deps.Alert != nil {
		fe := uxerror.Humanize(deps.Alert)
		m.modal.OpenAlert(fe.Title, fe.Render())
		m.input.SetEnabled(false)
		m.quitOnDismiss = deps.Session == nil
	}
	return m
}

// Init starts the spinner.
func (m ChatModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.modal.SetSize(m.width, m.height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case components.ModalClosedMsg:
		m.input.SetEnabled(true)
		if msg.Alert && m.quitOnDismiss {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case ServerEventMsg:
		return m.handleServerEvent(msg.Event)

	case DisconnectedMsg:
		m.statusBar.Connected = false
		if msg.Err != nil {
			m.logger.Warn("chat connection lost", "error", msg.Err)
			m.statusBar.Notice = theme.SymbolWarning + " Connection lost"
		}
		return m, nil

	case AnalysisDoneMsg:
		return m.handleAnalysisDone(msg)

	case SendDoneMsg:
		if msg.Err != nil && m.deps.Session != nil {
			m.deps.Session.FinishText(msg.Err)
			m.refresh()
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.chatView.SetSpinner(m.spinner.View())
		cmds = append(cmds, cmd)
	}

	if !m.modal.Visible {
		if _, isMouse := msg.(tea.MouseMsg); !isMouse {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the entire chat UI.
func (m ChatModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.modal.Visible {
		return m.modal.View()
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.chatView.View(),
		components.Divider(m.width),
		m.input.View(),
		m.statusBar.View(),
	)
}

// layout recalculates sizes for all sub-models.
func (m *ChatModel) layout() {
	const inputH, statusH, dividerH = 3, 1, 1
	contentH := max(m.height-inputH-statusH-dividerH, 5)

	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
}

func (m *ChatModel) refresh() {
	if m.deps.Session == nil {
		return
	}
	m.chatView.SetMessages(m.deps.Session.Messages(), m.deps.Session.Reconciler().OpenTurnID())
}

// isMouseEscapeLeak detects mouse escape sequences that leaked through as
// key input instead of tea.MouseMsg. Covers SGR, X11 basic and URXVT
// formats seen during fast trackpad scrolling.
func isMouseEscapeLeak(s string) bool {
	if len(s) >= 5 && s[0] == '<' && (s[len(s)-1] == 'M' || s[len(s)-1] == 'm') && digitsAndSemicolons(s[1:len(s)-1]) {
		return true
	}
	if len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm') {
		return true
	}
	return len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M' && digitsAndSemicolons(s[1:len(s)-1])
}

func digitsAndSemicolons(s string) bool {
	for _, r := range s {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// handleKey processes keyboard input.
func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	if m.modal.Visible {
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit processes user input submission.
func (m ChatModel) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if m.analyzing == 0 {
		m.statusBar.Notice = ""
	}
	if cmd, rest, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd, rest)
	}
	if m.deps.Session == nil {
		m.showError(domain.ErrNotConnected)
		return m, nil
	}

	frame, ok, err := m.deps.Session.BeginText(value)
	if err != nil {
		m.showError(err)
		return m, nil
	}
	m.refresh()
	if !ok {
		return m, nil
	}
	return m, sendCmd(m.deps.Session, frame, m.deps.SendTimeout)
}

func (m ChatModel) handleSlashCommand(cmd, rest string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.modal.Open("Help", helpText)
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/image":
		return m.startImage(strings.Trim(rest, `"'`))

	case "/profile":
		if m.deps.Session == nil || m.deps.Session.Profile() == nil {
			m.showError(domain.NewDomainError("chat.profile", domain.ErrProfileRequired, "no profile stored"))
			return m, nil
		}
		m.modal.Open("Profile", profileText(m.deps.Session.Profile(), m.deps.Now()))
		return m, nil

	default:
		m.statusBar.Notice = fmt.Sprintf("Unknown command %s, type /help", cmd)
		return m, nil
	}
}

func (m ChatModel) startImage(ref string) (tea.Model, tea.Cmd) {
	if m.deps.Session == nil {
		m.showError(domain.ErrNotConnected)
		return m, nil
	}
	if err := m.deps.Session.BeginImage(ref); err != nil {
		m.showError(err)
		return m, nil
	}
	m.analyzing++
	m.statusBar.Notice = "Analyzing image" + theme.SymbolEllipsis
	m.refresh()
	return m, analyzeCmd(m.deps.Session, ref)
}

func (m ChatModel) handleAnalysisDone(msg AnalysisDoneMsg) (tea.Model, tea.Cmd) {
	m.analyzing = max(m.analyzing-1, 0)
	if m.analyzing == 0 {
		m.statusBar.Notice = ""
	}
	if m.deps.Session != nil {
		m.deps.Session.FinishImage(msg.Ref, msg.Result, msg.Err)
		m.refresh()
	}
	return m, nil
}

func (m ChatModel) handleServerEvent(ev domain.ServerEvent) (tea.Model, tea.Cmd) {
	if m.deps.Session == nil {
		return m, nil
	}
	if m.deps.Session.Apply(ev) {
		m.refresh()
	}
	if ev.Type == domain.EventConnectionEstablished {
		m.statusBar.SessionID = m.deps.Session.Reconciler().SessionID()
	}
	return m, nil
}

// showError raises a blocking alert or a status notice depending on the
// error kind.
func (m *ChatModel) showError(err error) {
	fe := uxerror.Humanize(err)
	m.logger.Warn("chat action failed", "error", err, "code", domain.ErrorCodeOf(err))
	if fe.Blocking {
		m.modal.SetSize(m.width, m.height)
		m.modal.OpenAlert(fe.Title, fe.Render())
		m.input.SetEnabled(false)
		return
	}
	notice := theme.SymbolWarning + " " + fe.Title
	if fe.Message != "" {
		notice += ": " + fe.Message
	}
	m.statusBar.Notice = notice
}

func profileText(p *domain.UserProfile, now time.Time) string {
	var sb strings.Builder
	for _, line := range p.Snapshot(now).ProfileLines() {
		sb.WriteString(theme.SymbolBullet + " " + line + "\n")
	}
	sb.WriteString("\nUpdate with: virtualfit profile set <file>")
	return sb.String()
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "/image", Desc: "Analyze food"},
		{Key: "/help", Desc: "Help"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}
