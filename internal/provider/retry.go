package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a transient provider failure is retried.
// One policy value is shared per adapter and parameterised per call site,
// replacing ad-hoc retry loops with manual sleeps.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // initial backoff interval, doubles per attempt
}

// DefaultRetryPolicy is the reference policy: 3 attempts, 500ms base delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// Do runs op, retrying transient failures with exponential backoff until
// the attempt budget is exhausted or ctx is cancelled. Errors wrapped with
// backoff.Permanent abort immediately with no further attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}
