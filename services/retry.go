package services

import (
	"context"
	"time"

	"github.com/iPranay05/Skill-Prob-sub002/repository"
)

// RetryPolicy bounds the retries spent on optimistic-concurrency conflicts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is three attempts with a short linear backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond}

// retryOnConflict runs fn until it succeeds, fails with anything other than
// repository.ErrConcurrentUpdate, or the attempts run out. It returns the
// number of attempts made.
func retryOnConflict(ctx context.Context, policy RetryPolicy, fn func() error) (int, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !repository.IsRetryable(err) {
			return i, err
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		case <-time.After(policy.Backoff * time.Duration(i)):
		}
	}
	return attempts, err
}
