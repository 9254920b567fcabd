package usecase

import (
	"context"
	"time"
)

// withRetry runs fn up to attempts times with exponential backoff clamped to
// max. Retrying lives at the orchestration boundary; the engine itself never
// blocks or retries.
func withRetry(ctx context.Context, attempts int, min, max time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}

	backoff := min
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > max {
			backoff = max
		}
	}
	return err
}
