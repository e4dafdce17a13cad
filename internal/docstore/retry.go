package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConflictRetries bounds how often a read-modify-write is replayed
// after losing a revision check.
const DefaultConflictRetries = 5

// RetryOnConflict runs fn until it succeeds, fails with anything other than
// ErrConflict, or has been retried retries times. Each replay waits with
// jittered exponential backoff. fn must redo its reads; a replay with a stale
// document conflicts again. onConflict, if set, is called before each replay.
func RetryOnConflict(ctx context.Context, retries int, onConflict func(error), fn func() error) error {
	if retries <= 0 {
		// WithMaxRetries treats zero as unlimited.
		return fn()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 5 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	op := func() error {
		err := fn()
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, _ time.Duration) {
		if onConflict != nil {
			onConflict(err)
		}
	}

	return backoff.RetryNotify(op, b, notify)
}
