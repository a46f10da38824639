// Package wsclient is the chat channel transport: one WebSocket connection to
// the assistant's /chat endpoint carrying JSON frames.
package wsclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"virtualfit/internal/domain"
)

const defaultReadLimit = 1 << 20

// Options configures Dial.
type Options struct {
	URL         string // ws:// or wss:// chat endpoint
	Token       string // optional gateway token, sent as ?token=
	DialTimeout time.Duration
	ReadLimit   int64
	Logger      *slog.Logger
}

// Conn implements domain.Conn over a nhooyr WebSocket.
type Conn struct {
	ws        *websocket.Conn
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

var _ domain.Conn = (*Conn)(nil)

// Dial opens the chat channel. Failures wrap domain.ErrConnect.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	target, err := dialURL(opts.URL, opts.Token)
	if err != nil {
		return nil, domain.NewDomainError("wsclient.Dial", domain.ErrConnect, err.Error())
	}

	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	ws, resp, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		detail := err.Error()
		if resp != nil {
			detail = fmt.Sprintf("%s (HTTP %d)", detail, resp.StatusCode)
		}
		return nil, domain.NewDomainError("wsclient.Dial", domain.ErrConnect, detail)
	}

	limit := opts.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	ws.SetReadLimit(limit)

	logger.Info("chat channel connected", "url", opts.URL)
	return &Conn{
		ws:     ws,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

func dialURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse chat url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("chat url %q must use ws or wss", raw)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send writes one frame. Writes after Close or on a broken connection wrap
// domain.ErrNotConnected.
func (c *Conn) Send(ctx context.Context, frame domain.OutboundFrame) error {
	if c.isClosed() {
		return domain.ErrNotConnected
	}
	if err := wsjson.Write(ctx, c.ws, frame); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
	}
	return nil
}

// Receive returns the next decoded frame. Malformed frames are logged and
// skipped. When the connection ends it returns domain.ErrNotConnected; when
// ctx ends it returns ctx.Err().
func (c *Conn) Receive(ctx context.Context) (domain.ServerEvent, error) {
	for {
		if c.isClosed() {
			return domain.ServerEvent{}, domain.ErrNotConnected
		}
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.ServerEvent{}, ctx.Err()
			}
			if status := websocket.CloseStatus(err); status != -1 {
				c.logger.Info("chat channel closed by server", "status", status)
			}
			return domain.ServerEvent{}, fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
		}

		ev, err := domain.DecodeServerEvent(data)
		if err != nil {
			c.logger.Warn("skipping malformed chat frame", "error", err)
			continue
		}
		return ev, nil
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.ws.Close(websocket.StatusNormalClosure, "client closing"); err != nil {
			c.logger.Debug("chat channel close", "error", err)
		}
	})
	return nil
}
