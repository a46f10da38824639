package domain

import "context"

// Conn is one open chat channel. Receive returns frames in arrival order.
type Conn interface {
	// Send writes one outbound frame.
	Send(ctx context.Context, frame OutboundFrame) error
	// Receive blocks until the next inbound frame, ctx is cancelled or the
	// connection closes (ErrNotConnected).
	Receive(ctx context.Context) (ServerEvent, error)
	Close() error
}

// ProfileStore persists the single local user profile.
type ProfileStore interface {
	// LoadProfile returns ErrNotFound when no profile has been saved.
	LoadProfile(ctx context.Context) (*UserProfile, error)
	SaveProfile(ctx context.Context, p *UserProfile) error
	DeleteProfile(ctx context.Context) error
}

// ImageAnalyzer runs the one-shot food image analysis.
type ImageAnalyzer interface {
	// Analyze uploads the image at ref (a local file path) and returns the
	// analysis. Failures wrap ErrAnalysisFailed and carry the server detail.
	Analyze(ctx context.Context, ref string) (*FoodAnalysis, error)
}

// ReplyRequest is one user turn handed to an assistant backend.
type ReplyRequest struct {
	Text     string    `json:"text"`
	UserID   string    `json:"user_id"`
	UserData *UserData `json:"user_data,omitempty"`
}

// StreamDelta is a single incremental chunk of an assistant reply.
type StreamDelta struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Err     error  `json:"-"` // set on the final delta when the stream failed
}

// Responder is any assistant backend that streams a reply.
type Responder interface {
	// Respond starts a reply. The channel is closed after a Done delta, on
	// error, or when ctx is cancelled.
	Respond(ctx context.Context, req ReplyRequest) (<-chan StreamDelta, error)
	// Name returns the backend identifier (e.g., "ollama", "echo").
	Name() string
}
