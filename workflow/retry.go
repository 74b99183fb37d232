package workflow

import (
	"context"
	"time"

	"github.com/flowgate/flowgate/types"
)

// NextDelay computes the backoff delay before the given attempt.
// attempt counts from 1 (the first retry). Linear grows as
// baseDelay × attempt, exponential as baseDelay × 2^(attempt-1); both are
// capped at MaxDelay.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch p.Backoff {
	case BackoffLinear:
		delay = p.BaseDelay * time.Duration(attempt)
	default:
		delay = p.BaseDelay << uint(attempt-1)
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// ShouldRetry decides whether a failed attempt is re-run: the retry budget
// must not be exhausted and the error category must be listed as retryable.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt > p.MaxRetries {
		return false
	}
	return p.categoryRetryable(types.GetErrorCode(err))
}

func (p RetryPolicy) categoryRetryable(code types.ErrorCode) bool {
	for _, c := range p.RetryableErrors {
		if c == code {
			return true
		}
	}
	return false
}

// waitBackoff sleeps for the attempt's backoff delay on a timer so the
// wait is cancelled as soon as the step's context is.
func waitBackoff(ctx context.Context, policy RetryPolicy, attempt int) error {
	delay := policy.NextDelay(attempt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
