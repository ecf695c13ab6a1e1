package tear

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ostrovsky/tearloop/internal/translator"
)

// newBreaker builds the circuit breaker shared by all external calls of one
// run. When a backend is down, every concurrent chunk worker would otherwise
// burn its full retry budget against it; the breaker trips after a streak of
// failures and fails the remaining calls fast until the backend recovers.
func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "external-translation",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// callExternal runs fn through the breaker with up to retryBudget retries
// and exponential backoff. Non-retryable errors and an open breaker abort
// immediately.
func (o *Orchestrator) callExternal(ctx context.Context, fn func(context.Context) (*translator.Result, error)) (*translator.Result, error) {
	attempts := o.cfg.RetryBudget + 1
	delay := o.cfg.RetryDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := o.breaker.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		if err == nil {
			return out.(*translator.Result), nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("external backend unavailable: %w", err)
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil, fmt.Errorf("retry budget exhausted after %d attempts: %w", attempts, lastErr)
}
