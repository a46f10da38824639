package llm

import (
	"context"
	"io"
	"log/slog"

	"virtualfit/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockResponder is a scripted domain.Responder.
type mockResponder struct {
	name      string
	calls     int
	respondFn func(ctx context.Context, req domain.ReplyRequest) (<-chan domain.StreamDelta, error)
}

func (m *mockResponder) Respond(ctx context.Context, req domain.ReplyRequest) (<-chan domain.StreamDelta, error) {
	m.calls++
	return m.respondFn(ctx, req)
}

func (m *mockResponder) Name() string { return m.name }

func closedStream(deltas ...domain.StreamDelta) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, len(deltas))
	for _, d := range deltas {
		ch <- d
	}
	close(ch)
	return ch
}

func testUserData() *domain.UserData {
	return &domain.UserData{
		Name:                "Sam",
		Age:                 30,
		Goals:               []string{"Lose weight", "Build muscle"},
		CurrentFitnessLevel: "Beginner",
		DaysPerWeek:         3,
	}
}
