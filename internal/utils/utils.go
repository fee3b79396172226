package utils

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for the given duration or until the context is cancelled.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// RandomDelay waits a uniformly random duration in [min, max]. Used between
// simulated browser actions so the tool does not emit fixed-interval signatures.
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	if max < min {
		min, max = max, min
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span) + 1))
	}
	return WaitFor(ctx, d)
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
