// Package backoff adapts cenkalti/backoff/v5 into a small generic retry
// helper used by collaborators whose calls can fail transiently (the remote
// store, the persistence manager) without each call site re-deriving
// ExponentialBackOff options by hand.
package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Permanent marks err as non-retryable: Retry returns it immediately instead
// of continuing the backoff schedule.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs operation with exponential backoff until it succeeds, returns a
// Permanent error, exhausts maxTries (0 means unlimited, bounded only by
// ctx), or ctx is done. initialInterval <= 0 keeps the library default.
func Retry[T any](ctx context.Context, operation backoff.Operation[T], initialInterval time.Duration, maxTries uint) (T, error) {
	eb := backoff.NewExponentialBackOff()
	if initialInterval > 0 {
		eb.InitialInterval = initialInterval
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(eb)}
	if maxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(maxTries))
	}
	return backoff.Retry(ctx, operation, opts...)
}
