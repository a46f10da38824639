package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

// --- test doubles ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedResponder replies with fixed chunks, an optional setup error, or
// an optional mid-stream error.
type scriptedResponder struct {
	chunks    []string
	err       error
	streamErr error

	mu       sync.Mutex
	requests []domain.ReplyRequest
	active   atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (r *scriptedResponder) Respond(ctx context.Context, req domain.ReplyRequest) (<-chan domain.StreamDelta, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	n := r.active.Add(1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	ch := make(chan domain.StreamDelta)
	go func() {
		defer close(ch)
		defer r.active.Add(-1)
		for _, c := range r.chunks {
			if r.delay > 0 {
				time.Sleep(r.delay)
			}
			select {
			case ch <- domain.StreamDelta{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		final := domain.StreamDelta{Done: true, Err: r.streamErr}
		select {
		case ch <- final:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (r *scriptedResponder) Name() string { return "scripted" }

func (r *scriptedResponder) Requests() []domain.ReplyRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ReplyRequest(nil), r.requests...)
}

type fakeAnalyzer struct {
	result *domain.FoodAnalysis
	err    error
	got    []byte
	name   string
}

func (f *fakeAnalyzer) AnalyzeBytes(_ context.Context, filename string, data []byte) (*domain.FoodAnalysis, error) {
	f.name = filename
	f.got = data
	return f.result, f.err
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{Addr: "127.0.0.1:0"}
}

func newHTTPServer(t *testing.T, cfg config.GatewayConfig, deps Deps) (*Server, *httptest.Server) {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = newTestLogger()
	}
	srv := NewServer(cfg, deps)
	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return srv, ts
}

func dialChat(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat" + query
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) domain.ServerEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var ev domain.ServerEvent
	require.NoError(t, wsjson.Read(ctx, ws, &ev))
	return ev
}

func writeRaw(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, ws.Write(ctx, websocket.MessageText, []byte(raw)))
}

func writeFrame(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	writeRaw(t, ws, string(b))
}

// connect dials and consumes connection_established.
func connect(t *testing.T, ts *httptest.Server) (*websocket.Conn, domain.ServerEvent) {
	t.Helper()
	ws := dialChat(t, ts, "")
	ev := readEvent(t, ws)
	require.Equal(t, domain.EventConnectionEstablished, ev.Type)
	return ws, ev
}

var errBoom = errors.New("boom")
