// Package retry centralizes the bounded-attempt policy applied to
// extraction and classification calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds attempts and spaces them with exponential backoff.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy matches the scraper's historical behavior: three attempts
// with a short pause between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: 2 * time.Second, MaxInterval: 15 * time.Second}
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or the
// error is ruled non-retryable by the predicate. A nil predicate retries
// every error.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval

	attempts := uint64(p.MaxAttempts)
	if attempts == 0 {
		attempts = 1
	}

	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
}
