package usecase

import (
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"virtualfit/internal/domain"
)

// ReconcilerStats counts what the reconciler has seen.
type ReconcilerStats struct {
	Events     int // server events applied
	Ignored    int // unknown event types
	Violations int // thinking received while a turn was still open
}

// Reconciler folds server events and local actions into a newest-first
// message list. Within a turn the newest bot message is updated in place;
// every other message is immutable once created.
//
// A Reconciler is not safe for concurrent use. Callers serialize all calls
// through one event loop.
type Reconciler struct {
	logger  *slog.Logger
	now     func() time.Time
	entropy io.Reader

	msgs      []*domain.Message // oldest first
	turn      *domain.Message   // bot message of the open turn, nil when idle
	sessionID string
	stats     ReconcilerStats
}

// NewReconciler creates an empty reconciler. A nil clock uses time.Now.
func NewReconciler(logger *slog.Logger, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{
		logger:  logger,
		now:     now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (r *Reconciler) newID() string {
	return ulid.MustNew(ulid.Timestamp(r.now()), r.entropy).String()
}

func (r *Reconciler) prepend(sender domain.Sender, text string, state domain.DisplayState, imageRef string) *domain.Message {
	m := &domain.Message{
		ID:        r.newID(),
		Text:      text,
		Sender:    sender,
		State:     state,
		ImageRef:  imageRef,
		CreatedAt: r.now(),
	}
	r.msgs = append(r.msgs, m)
	return m
}

// Apply folds one server event into the list. It reports whether the list
// changed.
func (r *Reconciler) Apply(ev domain.ServerEvent) bool {
	r.stats.Events++

	switch ev.Type {
	case domain.EventConnectionEstablished:
		r.sessionID = ev.SessionID
		r.logger.Debug("chat session established", "session_id", ev.SessionID)
		return false

	case domain.EventThinking:
		if r.turn != nil {
			r.stats.Violations++
			r.logger.Warn("thinking received while a turn is open, abandoning previous turn",
				"turn_id", r.turn.ID, "violations", r.stats.Violations)
		}
		r.turn = r.prepend(domain.SenderBot, domain.ThinkingText, domain.StateThinking, "")
		return true

	case domain.EventStream:
		switch {
		case r.turn == nil:
			r.turn = r.prepend(domain.SenderBot, ev.Chunk, domain.StateNormal, "")
		case r.turn.State == domain.StateThinking:
			r.turn.Text = ev.Chunk
			r.turn.State = domain.StateNormal
		default:
			r.turn.Text += ev.Chunk
		}
		return true

	case domain.EventTextResponse:
		if r.turn == nil {
			// Only the open turn is ever rewritten; a final text with no
			// turn, even a duplicate, is a new message.
			r.prepend(domain.SenderBot, ev.Text, domain.StateNormal, "")
			return true
		}
		r.turn.Text = ev.Text
		r.turn.State = domain.StateNormal
		r.turn.ID = r.newID()
		r.turn = nil
		return true

	case domain.EventError:
		r.endTurn()
		r.prepend(domain.SenderBot, ev.Message, domain.StateError, "")
		return true

	case domain.EventInfo:
		r.prepend(domain.SenderBot, ev.Message, domain.StateNormal, "")
		return true

	default:
		r.stats.Ignored++
		r.logger.Debug("ignoring unknown server event", "type", ev.Type)
		return false
	}
}

// endTurn closes the open turn without touching its message.
func (r *Reconciler) endTurn() {
	r.turn = nil
}

// AddUserText records a message typed by the user.
func (r *Reconciler) AddUserText(text string) domain.Message {
	return *r.prepend(domain.SenderUser, text, domain.StateNormal, "")
}

// AddUserImage records a user message carrying an image.
func (r *Reconciler) AddUserImage(caption, ref string) domain.Message {
	return *r.prepend(domain.SenderUser, caption, domain.StateNormal, ref)
}

// AddAnalysis records a structured image analysis result.
func (r *Reconciler) AddAnalysis(text string) domain.Message {
	return *r.prepend(domain.SenderBot, text, domain.StateAnalysis, "")
}

// AddLocalError records an error bubble that did not come from the server.
func (r *Reconciler) AddLocalError(text string) domain.Message {
	return *r.prepend(domain.SenderBot, text, domain.StateError, "")
}

// Messages returns a copy of the list, newest first.
func (r *Reconciler) Messages() []domain.Message {
	out := make([]domain.Message, len(r.msgs))
	for i, m := range r.msgs {
		out[len(r.msgs)-1-i] = *m
	}
	return out
}

// Head returns the newest message.
func (r *Reconciler) Head() (domain.Message, bool) {
	if len(r.msgs) == 0 {
		return domain.Message{}, false
	}
	return *r.msgs[len(r.msgs)-1], true
}

// Len returns the number of messages.
func (r *Reconciler) Len() int { return len(r.msgs) }

// TurnOpen reports whether a bot reply is in progress.
func (r *Reconciler) TurnOpen() bool { return r.turn != nil }

// OpenTurnID returns the id of the open turn's message, or "" when idle.
func (r *Reconciler) OpenTurnID() string {
	if r.turn == nil {
		return ""
	}
	return r.turn.ID
}

// SessionID returns the id from connection_established, or "".
func (r *Reconciler) SessionID() string { return r.sessionID }

// Stats returns event counters.
func (r *Reconciler) Stats() ReconcilerStats { return r.stats }
