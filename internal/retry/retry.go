// Package retry runs an operation under a constant back-off policy with a
// bounded number of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrTooManyRetries is returned when every attempt of an operation failed.
var ErrTooManyRetries = errors.New("retry: too many retries")

// Policy is a fixed retry policy: Attempts tries, Delay apart.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy matches the collection defaults.
var DefaultPolicy = Policy{Attempts: 5, Delay: 2 * time.Second}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do stops immediately and
// returns the unwrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it succeeds, returns a Permanent error, ctx is done, or
// the policy's attempts are exhausted. Exhaustion is reported as an error
// wrapping both ErrTooManyRetries and the last failure.
func Do[T any](ctx context.Context, p Policy, name string, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	tries := 0
	stopped := false
	res, err := backoff.Retry(ctx, func() (T, error) {
		tries++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		var pe *permanentError
		if errors.As(err, &pe) {
			stopped = true
			return v, backoff.Permanent(pe.err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("retrying",
				"operation", name,
				"attempt", tries,
				"next_in", next,
				"error", err,
			)
		}),
	)
	if err == nil {
		return res, nil
	}
	if stopped || ctx.Err() != nil {
		return res, err
	}
	return res, fmt.Errorf("%w: %s failed after %d attempts: %w", ErrTooManyRetries, name, tries, err)
}
