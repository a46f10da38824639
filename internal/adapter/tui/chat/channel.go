package chat

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"virtualfit/internal/domain"
	"virtualfit/internal/usecase"
)

// DialFunc opens the chat channel.
type DialFunc func(ctx context.Context) (domain.Conn, error)

// Options configures a TUIChannel.
type Options struct {
	Dial        DialFunc
	Profiles    domain.ProfileStore
	Analyzer    domain.ImageAnalyzer
	UserID      string
	SendTimeout time.Duration
	Logger      *slog.Logger
	// ProgramOptions replace the default alt-screen and mouse options.
	ProgramOptions []tea.ProgramOption
}

// TUIChannel runs the chat client as a full-screen Bubble Tea program.
type TUIChannel struct {
	opts    Options
	logger  *slog.Logger
	program *tea.Program
}

// NewTUIChannel creates a TUI chat client.
func NewTUIChannel(opts Options) *TUIChannel {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TUIChannel{opts: opts, logger: logger}
}

// Start connects, creates the Bubble Tea program and blocks until it exits.
// A failed connection is shown as an alert rather than returned.
func (c *TUIChannel) Start(ctx context.Context) error {
	session, alert := c.open(ctx)
	if alert != nil {
		c.logger.Warn("chat start", "error", alert, "code", domain.ErrorCodeOf(alert))
	}

	model := NewChatModel(ChatModelDeps{
		Session:     session,
		Alert:       alert,
		Logger:      c.logger,
		SendTimeout: c.opts.SendTimeout,
	})

	popts := c.opts.ProgramOptions
	if popts == nil {
		popts = []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	}
	c.program = tea.NewProgram(model, popts...)

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if session != nil {
		defer session.Close()
		go c.listen(listenCtx, session)
	}

	go func() {
		<-listenCtx.Done()
		c.program.Send(QuitMsg{})
	}()

	_, err := c.program.Run()
	return err
}

// Stop signals the Bubble Tea program to quit.
func (c *TUIChannel) Stop(_ context.Context) error {
	if c.program != nil {
		c.program.Send(QuitMsg{})
	}
	return nil
}

// open dials and loads the profile. The returned error is meant for an
// alert; the session is nil only when the connection failed.
func (c *TUIChannel) open(ctx context.Context) (*usecase.ChatSession, error) {
	if c.opts.Dial == nil {
		return nil, domain.NewDomainError("chat.Start", domain.ErrConnect, "no chat server configured")
	}
	conn, err := c.opts.Dial(ctx)
	if err != nil {
		return nil, err
	}
	session := usecase.NewChatSession(usecase.ChatSessionDeps{
		Conn:     conn,
		Profiles: c.opts.Profiles,
		Analyzer: c.opts.Analyzer,
		Logger:   c.logger,
		UserID:   c.opts.UserID,
	})
	if err := session.Open(ctx); err != nil {
		return session, err
	}
	if session.Profile() == nil {
		return session, domain.NewDomainError("chat.Start", domain.ErrProfileRequired, "no profile stored")
	}
	return session, nil
}

// listen forwards inbound events into the update loop, where the session
// applies them.
func (c *TUIChannel) listen(ctx context.Context, session *usecase.ChatSession) {
	err := session.Listen(ctx, func(ev domain.ServerEvent) {
		c.program.Send(ServerEventMsg{Event: ev})
	})
	c.program.Send(DisconnectedMsg{Err: err})
}
