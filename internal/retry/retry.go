// Package retry provides the bounded retry policy used for remote scoring
// calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avoronkov/talent-scout/internal/utils"
)

// Policy describes how many times an operation is attempted and how long to
// wait between attempts. The zero value is normalized to a single attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff multiplies the delay after each failed attempt. Values below 1
	// are treated as 1 (constant delay).
	Backoff float64
}

// Default is the small fixed budget used for remote calls.
var Default = Policy{MaxAttempts: 3, Delay: 500 * time.Millisecond, Backoff: 2}

// Permanent wraps an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, the attempt budget is exhausted, the error is
// permanent, or the context is cancelled. The last error is returned wrapped
// with the attempt count.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff < 1 {
		backoff = 1
	}

	delay := p.Delay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err

		if attempt == attempts {
			break
		}
		if err := utils.WaitFor(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * backoff)
	}

	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
