package onboarding

import (
	"context"
	"time"
)

// RetryPolicy runs an operation up to MaxAttempts times. The automatic batch run and the
// manual single-record retry share it with different attempt counts.
type RetryPolicy struct {
	MaxAttempts int
	// Delay between attempts; zero retries immediately.
	Delay time.Duration
}

// Do returns the number of attempts made and the last error, or nil once op succeeds.
// Context cancellation stops further attempts.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}

		if attempt < maxAttempts && p.Delay > 0 {
			if !sleepWithContext(ctx, p.Delay) {
				return attempt, ctx.Err()
			}
		}
	}
	return maxAttempts, lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
