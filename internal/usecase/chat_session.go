package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/tracer"
)

// NotConnectedText is shown when a message could not be sent.
const NotConnectedText = "Not connected to the assistant. Please try again later."

// ChatSessionDeps holds the collaborators of a ChatSession.
type ChatSessionDeps struct {
	Conn     domain.Conn          // required, owned by the session after Open
	Profiles domain.ProfileStore  // optional, nil means no profile
	Analyzer domain.ImageAnalyzer // optional, nil disables image analysis
	Logger   *slog.Logger
	Now      func() time.Time
	UserID   string // overrides the profile's user id when set
}

// ChatSession drives one chat connection. The reconciler-facing methods
// (SendText, BeginText, FinishText, BeginImage, FinishImage, Apply) must be
// called from a single event loop. Transmit, AnalyzeImage and Listen block
// and are meant to run outside it; Close may be called from anywhere.
type ChatSession struct {
	conn     domain.Conn
	profiles domain.ProfileStore
	analyzer domain.ImageAnalyzer
	logger   *slog.Logger
	now      func() time.Time
	userID   string

	rec     *Reconciler
	profile *domain.UserProfile

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewChatSession creates a session around an already dialed connection.
func NewChatSession(deps ChatSessionDeps) *ChatSession {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatSession{
		conn:     deps.Conn,
		profiles: deps.Profiles,
		analyzer: deps.Analyzer,
		logger:   logger.With("component", "chat_session"),
		now:      now,
		userID:   deps.UserID,
		rec:      NewReconciler(logger, now),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open loads the user profile. A missing profile is not an error; sending
// will fail with ErrProfileRequired until one is saved.
func (s *ChatSession) Open(ctx context.Context) error {
	return s.ReloadProfile(ctx)
}

// ReloadProfile re-reads the profile from the store.
func (s *ChatSession) ReloadProfile(ctx context.Context) error {
	if s.profiles == nil {
		return nil
	}
	p, err := s.profiles.LoadProfile(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.profile = nil
			s.logger.Info("no user profile stored")
			return nil
		}
		return domain.WrapOp("ChatSession.Open", err)
	}
	s.profile = p
	return nil
}

// Profile returns the loaded profile, or nil.
func (s *ChatSession) Profile() *domain.UserProfile { return s.profile }

// SetProfile replaces the in-memory profile.
func (s *ChatSession) SetProfile(p *domain.UserProfile) { s.profile = p }

// Reconciler exposes the message list for rendering.
func (s *ChatSession) Reconciler() *Reconciler { return s.rec }

// Messages returns the current list, newest first.
func (s *ChatSession) Messages() []domain.Message { return s.rec.Messages() }

// Closed reports whether Close has been called.
func (s *ChatSession) Closed() bool { return s.closed.Load() }

func (s *ChatSession) effectiveUserID() string {
	if s.userID != "" {
		return s.userID
	}
	return s.profile.EffectiveUserID()
}

// SendText records the user's message and transmits it. Whitespace-only text
// is ignored. A transport failure becomes a local error bubble and is not
// returned. SendText blocks on the write; an event loop that must stay
// responsive uses BeginText, Transmit and FinishText instead.
func (s *ChatSession) SendText(ctx context.Context, text string) error {
	frame, ok, err := s.BeginText(text)
	if err != nil || !ok {
		return err
	}
	s.FinishText(s.Transmit(ctx, frame))
	return nil
}

// BeginText validates text, records the user's message and builds the
// outbound frame. ok is false when there is nothing to transmit: the text was
// blank, or the session has no connection and an error bubble was recorded.
func (s *ChatSession) BeginText(text string) (frame domain.OutboundFrame, ok bool, err error) {
	if s.closed.Load() {
		return frame, false, domain.ErrSessionClosed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return frame, false, nil
	}
	if s.profile == nil {
		return frame, false, domain.NewDomainError("ChatSession.SendText", domain.ErrProfileRequired,
			"complete your profile before chatting")
	}

	s.rec.AddUserText(text)

	if s.conn == nil {
		s.rec.AddLocalError(NotConnectedText)
		return frame, false, nil
	}
	return domain.OutboundFrame{
		MessageType: domain.MessageTypeText,
		Text:        text,
		UserID:      s.effectiveUserID(),
		UserData:    s.profile.Snapshot(s.now()),
	}, true, nil
}

// Transmit writes frame to the connection. It does not touch the message
// list, so it may run off the event loop. It is cancelled when either ctx or
// the session closes.
func (s *ChatSession) Transmit(ctx context.Context, frame domain.OutboundFrame) error {
	if s.conn == nil {
		return domain.ErrNotConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	ctx, span := tracer.StartSpan(ctx, "chat.send_text",
		tracer.IntAttr("text.length", len(frame.Text)),
		tracer.StringAttr("user.id", frame.UserID))
	defer span.End()

	if err := s.conn.Send(ctx, frame); err != nil {
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	return nil
}

// FinishText records the outcome of Transmit. A failed write becomes a local
// error bubble; results arriving after Close are dropped.
func (s *ChatSession) FinishText(err error) {
	if err == nil {
		return
	}
	if s.closed.Load() {
		s.logger.Debug("dropping send result after close", "error", err)
		return
	}
	s.logger.Warn("send failed", "error", err)
	s.rec.AddLocalError(NotConnectedText)
}

// BeginImage validates an image request and records the user's image
// message. The analysis itself runs via AnalyzeImage.
func (s *ChatSession) BeginImage(ref string) error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	if strings.TrimSpace(ref) == "" {
		return domain.ErrNoImage
	}
	if s.profile == nil {
		return domain.NewDomainError("ChatSession.BeginImage", domain.ErrProfileRequired,
			"complete your profile before analyzing food")
	}
	if s.analyzer == nil {
		return domain.NewDomainError("ChatSession.BeginImage", domain.ErrAnalysisFailed,
			"image analysis is not available")
	}
	s.rec.AddUserImage(domain.AnalyzeCaption, ref)
	return nil
}

// AnalyzeImage calls the analyzer. It is safe to call off the event loop and
// is cancelled when either ctx or the session closes.
func (s *ChatSession) AnalyzeImage(ctx context.Context, ref string) (*domain.FoodAnalysis, error) {
	if s.analyzer == nil {
		return nil, domain.NewDomainError("ChatSession.AnalyzeImage", domain.ErrAnalysisFailed,
			"image analysis is not available")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	ctx, span := tracer.StartSpan(ctx, "chat.analyze_image", tracer.StringAttr("image.ref", ref))
	defer span.End()

	result, err := s.analyzer.Analyze(ctx, ref)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return result, nil
}

// FinishImage records the outcome of AnalyzeImage. Results arriving after
// Close are dropped.
func (s *ChatSession) FinishImage(ref string, result *domain.FoodAnalysis, err error) {
	if s.closed.Load() {
		s.logger.Debug("dropping analysis result after close", "ref", ref)
		return
	}
	if err != nil {
		s.logger.Warn("image analysis failed", "ref", ref, "error", err)
		s.rec.AddLocalError(analysisErrorText(err))
		return
	}
	s.rec.AddAnalysis(domain.FormatAnalysis(result))
}

func analysisErrorText(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Image analysis was cancelled."
	case errors.Is(err, domain.ErrCircuitOpen):
		return "Image analysis is temporarily unavailable. Please try again shortly."
	case errors.Is(err, domain.ErrRateLimit):
		return "Too many image requests. Please wait a moment."
	}
	return fmt.Sprintf("Image analysis failed: %s", domain.DetailOf(err))
}

// Apply folds one server event into the list. Events after Close are dropped.
func (s *ChatSession) Apply(ev domain.ServerEvent) bool {
	if s.closed.Load() {
		return false
	}
	return s.rec.Apply(ev)
}

// Listen pumps inbound events into sink until the connection closes, ctx is
// cancelled or the session is closed. A normal shutdown returns nil.
func (s *ChatSession) Listen(ctx context.Context, sink func(domain.ServerEvent)) error {
	if s.conn == nil {
		return domain.ErrNotConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	for {
		ev, err := s.conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || s.closed.Load() {
				return nil
			}
			return err
		}
		sink(ev)
	}
}

// Close cancels in-flight work and closes the connection. It is idempotent.
func (s *ChatSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
