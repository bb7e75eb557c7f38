package retry

import (
	"context"
	"errors"
	"time"

	backoff "github.com/cenkalti/backoff/v5"
)

// Policy describes how a failing operation is retried.
//
// MaxTries counts every attempt including the first one; zero means no
// limit. Retryable classifies errors; a nil classifier retries everything
// except context cancellation.
type Policy struct {
	Interval  time.Duration
	MaxTries  uint
	Retryable func(error) bool
}

// Forever retries with a fixed interval until success or cancellation.
func Forever(interval time.Duration) Policy {
	return Policy{Interval: interval}
}

// Once performs a single attempt.
func Once() Policy {
	return Policy{MaxTries: 1}
}

// Bounded retries up to maxTries attempts, only for errors accepted by retryable.
func Bounded(maxTries uint, interval time.Duration, retryable func(error) bool) Policy {
	if maxTries == 0 {
		maxTries = 1
	}
	return Policy{Interval: interval, MaxTries: maxTries, Retryable: retryable}
}

// Unbounded reports whether the policy never gives up on its own.
func (p Policy) Unbounded() bool {
	return p.MaxTries == 0
}

// Do runs op under the policy. notify, when set, is called before each wait.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), notify func(err error, next time.Duration)) (T, error) {
	attempt := func() (T, error) {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return value, backoff.Permanent(err)
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Interval)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxTries))
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, attempt, opts...)
}
