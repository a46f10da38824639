package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"virtualfit/internal/domain"
)

// EchoResponder answers without a model. It streams a canned reply word by
// word, which is enough to exercise the chat protocol offline.
type EchoResponder struct {
	delay time.Duration
}

// NewEchoResponder creates an echo responder that pauses delay between chunks.
func NewEchoResponder(delay time.Duration) *EchoResponder {
	return &EchoResponder{delay: delay}
}

// EchoReply is the full text EchoResponder streams for req.
func EchoReply(req domain.ReplyRequest) string {
	name := "there"
	if req.UserData != nil && req.UserData.Name != "" {
		name = req.UserData.Name
	}
	return fmt.Sprintf("Hi %s! You asked: %s", name, ClampInput(req.Text))
}

// Respond implements domain.Responder.
func (e *EchoResponder) Respond(ctx context.Context, req domain.ReplyRequest) (<-chan domain.StreamDelta, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}
	chunks := strings.SplitAfter(EchoReply(req), " ")

	ch := make(chan domain.StreamDelta)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if e.delay > 0 {
				t := time.NewTimer(e.delay)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					return
				}
			}
			select {
			case ch <- domain.StreamDelta{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- domain.StreamDelta{Done: true}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Name implements domain.Responder.
func (e *EchoResponder) Name() string { return "echo" }

var _ domain.Responder = (*EchoResponder)(nil)
