// internal/retry/retry.go
package retry

import (
	"context"
	"math"
	"time"

	"github.com/jpfieber/sleepsync/internal/clock"
)

// Policy is a bounded retry schedule: up to MaxAttempts tries with a delay
// between them that grows by Multiplier per attempt, capped at MaxDelay.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// Linear returns a Policy with a fixed delay between attempts.
func Linear(attempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		Multiplier:   1.0,
		MaxDelay:     delay,
	}
}

// Exponential returns a Policy whose delay doubles each attempt up to max.
func Exponential(attempts int, initial, max time.Duration) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: initial,
		Multiplier:   2.0,
		MaxDelay:     max,
	}
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Do runs fn up to MaxAttempts times, sleeping on clk between attempts.
// It returns nil on the first success, the context error if ctx is cancelled
// between attempts, or the last error once attempts are exhausted.
func (p Policy) Do(ctx context.Context, clk clock.Clock, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < p.MaxAttempts {
			clk.Sleep(p.NextDelay(attempt))
		}
	}
	return lastErr
}
