// Package llm holds the assistant backends the gateway streams replies from.
package llm

import (
	"fmt"
	"log/slog"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

// NewResponder builds the responder selected by cfg.Provider, wrapped in a
// circuit breaker when enabled.
func NewResponder(cfg config.AssistantConfig, logger *slog.Logger) (domain.Responder, error) {
	var r domain.Responder
	switch cfg.Provider {
	case "", "echo":
		return NewEchoResponder(cfg.ChunkDelay), nil
	case "ollama", "openai":
		r = NewOpenAIResponder(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown assistant provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
	if cfg.CircuitBreaker.Enabled {
		r = NewCircuitBreakerResponder(r, cfg.CircuitBreaker, logger)
	}
	return r, nil
}

// Collect drains a reply stream into its full text.
func Collect(ch <-chan domain.StreamDelta) (string, error) {
	var text string
	for d := range ch {
		text += d.Content
		if d.Err != nil {
			return text, d.Err
		}
		if d.Done {
			break
		}
	}
	return text, nil
}
