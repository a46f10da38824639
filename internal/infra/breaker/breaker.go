// Package breaker builds gobreaker circuit breakers from configuration and
// maps their rejections onto domain errors.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"virtualfit/internal/domain"
	"virtualfit/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultMaxFailures uint32        = 5
	defaultTimeout     time.Duration = 30 * time.Second
	defaultInterval    time.Duration = 60 * time.Second
)

// New returns a breaker named name that opens after cfg.MaxFailures
// consecutive failures. Zero fields fall back to defaults. The caller decides
// whether cfg.Enabled applies.
func New[T any](name string, cfg config.CircuitBreakerConfig, logger *slog.Logger, isSuccessful func(error) bool) *gobreaker.CircuitBreaker[T] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}
	if isSuccessful == nil {
		isSuccessful = func(err error) bool { return err == nil }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: isSuccessful,
	})
}

// MapError converts gobreaker rejections into domain.ErrCircuitOpen and
// passes every other error through.
func MapError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", name, domain.ErrCircuitOpen, err)
	}
	return err
}

// IgnoreCallerErrors treats cancellation and invalid input as successes so
// they never trip the breaker.
func IgnoreCallerErrors(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrNotAnImage) ||
		errors.Is(err, domain.ErrUploadTooLarge) ||
		errors.Is(err, domain.ErrRateLimit) ||
		errors.Is(err, context.Canceled)
}
