package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a conflicting SQLite write is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy backs off 50ms, then 100ms.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := uint64(max(p.MaxAttempts, 1) - 1)
	return backoff.WithContext(backoff.WithMaxRetries(exp, retries), ctx)
}

// WithRetry runs fn until it succeeds, fails with a non-conflict error, or
// the attempts are used up. Only SQLITE_BUSY / locked failures are retried.
// op names the operation in logs and the returned error.
func WithRetry(ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) error) error {
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn(ctx)
		if err != nil && !IsSQLiteConflictError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx), func(_ error, delay time.Duration) {
		slog.Debug("Database locked, retrying", "op", op, "attempt", attempt, "delay", delay)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
