package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"virtualfit/internal/domain"
	"virtualfit/internal/usecase"
)

// sendCmd writes frame off the update loop, bounded by timeout. A failure is
// folded back into the session when SendDoneMsg arrives.
func sendCmd(session *usecase.ChatSession, frame domain.OutboundFrame, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return SendDoneMsg{Err: session.Transmit(ctx, frame)}
	}
}

// analyzeCmd runs the image analysis off the update loop. The result is
// folded back into the session by the model when AnalysisDoneMsg arrives.
func analyzeCmd(session *usecase.ChatSession, ref string) tea.Cmd {
	return func() tea.Msg {
		result, err := session.AnalyzeImage(context.Background(), ref)
		return AnalysisDoneMsg{Ref: ref, Result: result, Err: err}
	}
}
