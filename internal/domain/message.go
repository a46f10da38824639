package domain

import "time"

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// DisplayState is a mutually exclusive rendering hint for a message.
type DisplayState string

const (
	StateNormal   DisplayState = "normal"
	StateThinking DisplayState = "thinking"
	StateError    DisplayState = "error"
	StateAnalysis DisplayState = "analysis"
)

// ThinkingText is the placeholder text of a thinking message.
const ThinkingText = "…"

// Message is one chat bubble.
type Message struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Sender    Sender       `json:"sender"`
	State     DisplayState `json:"display_state"`
	ImageRef  string       `json:"image_ref,omitempty"` // user messages only
	CreatedAt time.Time    `json:"created_at"`
}

// IsBot reports whether the message was authored by the assistant.
func (m Message) IsBot() bool { return m.Sender == SenderBot }

// IsThinking reports whether the message is a thinking placeholder.
func (m Message) IsThinking() bool { return m.State == StateThinking }
