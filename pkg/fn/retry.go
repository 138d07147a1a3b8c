package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures Retry.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// OnRetry, when set, sees every failed attempt that will be retried.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Retry calls f until it succeeds or MaxAttempts calls have failed, doubling
// the wait between calls up to MaxWait. It returns the last error, or the
// context error if ctx ends while waiting.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) (T, error)) (T, error) {
	attempts := max(opts.MaxAttempts, 1)
	wait := opts.InitialWait
	for attempt := 1; ; attempt++ {
		v, err := f(ctx)
		if err == nil || attempt >= attempts {
			return v, err
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if opts.MaxWait > 0 {
			sleep = min(sleep, opts.MaxWait)
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}

		wait *= 2
		if opts.MaxWait > 0 {
			wait = min(wait, opts.MaxWait)
		}
	}
}
