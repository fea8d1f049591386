package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
	DefaultMaxRetryDelay = 2 * time.Hour
)

// RetryPolicy decides how transient failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, the first one included.
	MaxAttempts int
	// Delay is the pause after a failure that carries no retry hint.
	Delay time.Duration
	// MaxDelay bounds the pause a server may ask for. Longer (or unknown)
	// pauses make the failure fatal.
	MaxDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryAttempts,
		Delay:       DefaultRetryDelay,
		MaxDelay:    DefaultMaxRetryDelay,
	}
}

// Retry calls fn until it succeeds, fails with a non transient error, or the
// policy gives up. Cancellation of ctx ends it right away.
func Retry[T any](ctx context.Context, policy RetryPolicy, log zerolog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !data.IsTransient(err) {
			return zero, err
		}

		delay := policy.Delay
		var rl *data.RateLimitedError
		if errors.As(err, &rl) {
			delay = rl.RetryAfter
		}
		if attempt >= policy.MaxAttempts || delay < 0 || delay > policy.MaxDelay {
			return zero, err
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying after failure")
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// RetryDo is Retry for functions without a result.
func RetryDo(ctx context.Context, policy RetryPolicy, log zerolog.Logger, fn func(context.Context) error) error {
	_, err := Retry(ctx, policy, log, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
