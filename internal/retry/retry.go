// Package retry runs a unit of work with bounded exponential backoff on
// rate-limit failures.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/nadzzz/readaloud/internal/speech"
)

const (
	// DefaultAttempts is the total number of attempts, including the first.
	DefaultAttempts = 3

	// DefaultBase is the backoff unit; the delay after attempt i is Base * 2^(i+1).
	DefaultBase = time.Second
)

// Policy controls retry behavior. The zero value retries rate-limit errors
// three times with 2s and 4s pauses.
type Policy struct {
	// Attempts is the maximum number of attempts (default 3).
	Attempts int

	// Base scales the backoff schedule (default 1s).
	Base time.Duration

	// Retryable decides whether err warrants another attempt.
	// Defaults to matching speech.KindRateLimited.
	Retryable func(err error) bool

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each pause with the failed attempt index.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Base <= 0 {
		p.Base = DefaultBase
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return speech.IsKind(err, speech.KindRateLimited) }
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// Delay returns the pause that follows failed attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	return p.Base * time.Duration(1<<uint(attempt+1))
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The most recent error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < p.Attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !p.Retryable(err) || attempt == p.Attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		slog.Debug("retrying after rate limit", "attempt", attempt+1, "delay", delay, "error", err)

		if err := p.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
