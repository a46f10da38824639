package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
	"virtualfit/internal/usecase"
)

func runAsk(ctx context.Context, cfg *config.Config, log *slog.Logger, text string, out io.Writer) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: virtualfit ask <text>")
	}
	kv, store, err := openProfiles(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	conn, err := dialer(cfg, log)(ctx)
	if err != nil {
		return err
	}
	session := usecase.NewChatSession(usecase.ChatSessionDeps{
		Conn:     conn,
		Profiles: store,
		Logger:   log,
		UserID:   cfg.Client.UserID,
	})
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return err
	}
	return askOnce(ctx, session, text, out)
}

// askOnce sends text and prints the reply as it streams in. It returns after
// the turn's final text, an error event, or an info event that answers the
// frame without opening a turn. Every session call happens on this goroutine.
func askOnce(ctx context.Context, session *usecase.ChatSession, text string, out io.Writer) error {
	if err := session.SendText(ctx, text); err != nil {
		return err
	}
	if head, ok := session.Reconciler().Head(); ok && head.State == domain.StateError {
		return domain.NewDomainError("ask", domain.ErrNotConnected, head.Text)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := &turnPrinter{w: out}
	var turnErr error
	err := session.Listen(ctx, func(ev domain.ServerEvent) {
		if !session.Apply(ev) {
			return
		}
		switch ev.Type {
		case domain.EventThinking:
			p.open = true
		case domain.EventStream:
			p.open = true
			p.update(p.printed + ev.Chunk)
		case domain.EventTextResponse:
			p.finish(ev.Text)
			cancel()
		case domain.EventError:
			p.end()
			turnErr = domain.NewDomainError("ask", domain.ErrProviderError, ev.Message)
			cancel()
		case domain.EventInfo:
			p.note(ev.Message)
			if !p.open {
				p.done = true
				cancel()
			}
		}
	})
	if turnErr != nil {
		return turnErr
	}
	if err != nil {
		return err
	}
	if !p.done {
		return domain.NewDomainError("ask", domain.ErrNotConnected, "connection closed before the reply finished")
	}
	return nil
}

// turnPrinter writes the growing text of the current bot reply, printing
// only what was not printed before.
type turnPrinter struct {
	w       io.Writer
	printed string
	open    bool
	done    bool
}

func (p *turnPrinter) update(text string) {
	if strings.HasPrefix(text, p.printed) {
		fmt.Fprint(p.w, text[len(p.printed):])
	} else {
		// The final text differs from what streamed; print it whole.
		fmt.Fprint(p.w, "\n"+text)
	}
	p.printed = text
}

func (p *turnPrinter) finish(text string) {
	p.update(text)
	p.end()
	p.done = true
}

// note prints a line outside the reply without losing the reply's position.
func (p *turnPrinter) note(msg string) {
	if p.printed != "" {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintln(p.w, msg)
}

func (p *turnPrinter) end() {
	if p.printed != "" {
		fmt.Fprintln(p.w)
	}
	p.printed = ""
	p.open = false
}
