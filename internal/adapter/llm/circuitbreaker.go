package llm

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/breaker"
	"virtualfit/internal/infra/config"
)

// CircuitBreakerResponder wraps a Responder with circuit breaker protection.
// Only stream setup counts; failures after the first byte are reported on the
// channel and do not trip the breaker.
type CircuitBreakerResponder struct {
	inner   domain.Responder
	breaker *gobreaker.CircuitBreaker[<-chan domain.StreamDelta]
}

// NewCircuitBreakerResponder wraps inner with a circuit breaker.
func NewCircuitBreakerResponder(inner domain.Responder, cfg config.CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerResponder {
	return &CircuitBreakerResponder{
		inner: inner,
		breaker: breaker.New[<-chan domain.StreamDelta](
			"llm:"+inner.Name(), cfg, logger, breaker.IgnoreCallerErrors),
	}
}

// Respond implements domain.Responder.
func (p *CircuitBreakerResponder) Respond(ctx context.Context, req domain.ReplyRequest) (<-chan domain.StreamDelta, error) {
	ch, err := p.breaker.Execute(func() (<-chan domain.StreamDelta, error) {
		return p.inner.Respond(ctx, req)
	})
	if err != nil {
		return nil, breaker.MapError("assistant "+p.inner.Name(), err)
	}
	return ch, nil
}

// Name implements domain.Responder.
func (p *CircuitBreakerResponder) Name() string { return p.inner.Name() }

// State returns the current circuit breaker state for monitoring.
func (p *CircuitBreakerResponder) State() gobreaker.State { return p.breaker.State() }

var _ domain.Responder = (*CircuitBreakerResponder)(nil)
