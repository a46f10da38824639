// Package gateway serves the assistant side of the chat protocol: a
// WebSocket /chat endpoint that streams replies, plus the REST routes of the
// VirtualFit API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
	"virtualfit/internal/infra/middleware"
	"virtualfit/internal/infra/tracer"
)

const (
	sendQueueSize = 64
	readLimit     = 1 << 20
	writeTimeout  = 5 * time.Second
)

var defaultOrigins = []string{
	"localhost",
	"localhost:*",
	"127.0.0.1",
	"127.0.0.1:*",
	"[::1]",
	"[::1]:*",
}

// clientConn tracks a single chat connection.
type clientConn struct {
	sessionID string
	info      *ClientInfo
	ws        *websocket.Conn
	sendCh    chan domain.ServerEvent // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// send queues ev for the write loop. It blocks while the queue is full so
// stream chunks are never dropped, and gives up once the connection is done.
func (cc *clientConn) send(ev domain.ServerEvent) bool {
	select {
	case cc.sendCh <- ev:
		return true
	case <-cc.done:
		return false
	}
}

// Deps holds the collaborators of a Server.
type Deps struct {
	Responder domain.Responder
	Analyzer  ImageAnalyzer // optional, nil answers /analyze-food with 501
	Auth      Authenticator // optional, nil admits everyone
	Logger    *slog.Logger
}

// Server is the chat gateway.
type Server struct {
	cfg       config.GatewayConfig
	responder domain.Responder
	analyzer  ImageAnalyzer
	auth      Authenticator
	logger    *slog.Logger
	metrics   Metrics
	started   time.Time

	clients sync.Map // connID (uint64) -> *clientConn
	nextID  atomic.Uint64

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a gateway server.
func NewServer(cfg config.GatewayConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := deps.Auth
	if auth == nil {
		auth = OpenAuth{}
	}
	return &Server{
		cfg:       cfg,
		responder: deps.Responder,
		analyzer:  deps.Analyzer,
		auth:      auth,
		logger:    logger.With("component", "gateway"),
		started:   time.Now(),
	}
}

// Metrics exposes the live counters.
func (s *Server) Metrics() *Metrics { return &s.metrics }

// Handler builds the HTTP routes. ctx bounds background work such as the
// rate limiter's cleanup goroutine.
func (s *Server) Handler(ctx context.Context) http.Handler {
	limit := middleware.RateLimit(ctx, middleware.RateLimitConfig{
		RequestsPerMin: s.cfg.RequestsPerMinute,
		BurstSize:      s.cfg.Burst,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", bannerHandler)
	mux.HandleFunc("GET /status", s.statusHandler)
	mux.HandleFunc("GET /chat", s.handleChat)
	mux.Handle("POST /analyze-food", limit(http.HandlerFunc(s.handleAnalyze)))

	return middleware.RequestLog(s.logger)(securityHeaders(mux))
}

// securityHeaders skips WebSocket upgrades, whose handshake response must
// not carry a restrictive CSP.
func securityHeaders(next http.Handler) http.Handler {
	secured := middleware.SecurityHeaders(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		secured.ServeHTTP(w, r)
	})
}

// Start begins accepting connections. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", listener.Addr().String(), "assistant", s.responder.Name())

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop closes every chat connection and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to, or "" before Start.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	info, err := s.auth.Authenticate(requestToken(r))
	if err != nil {
		s.logger.Warn("chat auth failed", "remote", middleware.ClientIP(r, nil))
		middleware.WriteDetail(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	origins := s.cfg.Origins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	ws.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connID := s.nextID.Add(1)
	cc := &clientConn{
		sessionID: uuid.NewString(),
		info:      info,
		ws:        ws,
		sendCh:    make(chan domain.ServerEvent, sendQueueSize),
		done:      make(chan struct{}),
		limiter:   middleware.NewLimiter(s.cfg.RequestsPerMinute, s.cfg.Burst),
	}
	s.clients.Store(connID, cc)
	s.metrics.SessionsActive.Add(1)
	s.metrics.SessionsTotal.Add(1)

	logger := s.logger.With("session_id", cc.sessionID, "client", info.Name)
	logger.Info("chat client connected", "conn_id", connID)

	go s.writeLoop(cc, cancel, logger)

	cc.send(domain.ConnectionEstablished(cc.sessionID, msgConnected))
	s.readLoop(ctx, cc, logger)

	cc.close()
	s.clients.Delete(connID)
	s.metrics.SessionsActive.Add(-1)
	ws.Close(websocket.StatusNormalClosure, "")
	logger.Info("chat client disconnected", "conn_id", connID)
}

// readLoop handles frames one at a time, so a connection never has more
// than one reply in flight.
func (s *Server) readLoop(ctx context.Context, cc *clientConn, logger *slog.Logger) {
	for {
		_, data, err := cc.ws.Read(ctx)
		if err != nil {
			return // connection closed or error
		}
		s.metrics.MessagesRecv.Add(1)

		if !cc.limiter.Allow() {
			cc.send(domain.ErrorEvent(msgRateLimited))
			continue
		}
		s.handleFrame(ctx, cc, data, logger)

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, cc *clientConn, data []byte, logger *slog.Logger) {
	frame, userData, err := decodeClientFrame(data)
	if err != nil {
		logger.Warn("bad chat frame", "error", err, "bytes", len(data))
		cc.send(domain.ErrorEvent(err.Error()))
		return
	}

	switch frame.MessageType {
	case domain.MessageTypeText:
		if strings.TrimSpace(frame.Text) == "" {
			cc.send(domain.ErrorEvent(msgEmptyMessage))
			return
		}
		s.runTurn(ctx, cc, domain.ReplyRequest{
			Text:     frame.Text,
			UserID:   frame.UserID,
			UserData: userData,
		}, logger)
	case domain.MessageTypeImage:
		cc.send(domain.InfoEvent(msgImageRedirect))
	default:
		logger.Debug("ignoring chat frame", "message_type", frame.MessageType)
	}
}

// runTurn streams one reply: thinking, zero or more stream chunks, then the
// full text_response. A responder failure ends the turn with an error event.
func (s *Server) runTurn(ctx context.Context, cc *clientConn, req domain.ReplyRequest, logger *slog.Logger) {
	ctx, span := tracer.StartSpan(ctx, "gateway.turn",
		tracer.StringAttr("session.id", cc.sessionID),
		tracer.StringAttr("user.id", req.UserID),
		tracer.IntAttr("text.length", len(req.Text)),
	)
	defer span.End()
	s.metrics.TurnsTotal.Add(1)

	fail := func(err error) {
		s.metrics.TurnErrors.Add(1)
		tracer.RecordError(span, err)
		logger.Error("reply failed", "error", err, "code", domain.ErrorCodeOf(err))
		cc.send(domain.ErrorEvent(processingError(err)))
	}

	cc.send(domain.Thinking())

	stream, err := s.responder.Respond(ctx, req)
	if err != nil {
		fail(err)
		return
	}

	var full strings.Builder
	chunks := 0
	for d := range stream {
		if d.Content != "" {
			full.WriteString(d.Content)
			chunks++
			if !cc.send(domain.Stream(d.Content)) {
				return
			}
		}
		if d.Err != nil {
			fail(d.Err)
			return
		}
		if d.Done {
			break
		}
	}
	if ctx.Err() != nil {
		return
	}

	cc.send(domain.TextResponse(full.String()))
	span.SetAttributes(tracer.IntAttr("reply.chunks", chunks))
	tracer.SetOK(span)
	logger.Info("reply sent", "chunks", chunks, "length", full.Len())
}

func (s *Server) writeLoop(cc *clientConn, cancel context.CancelFunc, logger *slog.Logger) {
	for {
		select {
		case <-cc.done:
			return
		case ev := <-cc.sendCh:
			ctx, done := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, cc.ws, ev)
			done()
			if err != nil {
				logger.Debug("chat write failed", "error", err)
				cc.close()
				cancel()
				return
			}
			s.metrics.MessagesSent.Add(1)
		}
	}
}
