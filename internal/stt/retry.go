package stt

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// RetryPolicy describes how a backend call is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// InitialBackoff is the wait after the first failure; each later wait
	// is multiplied by Multiplier.
	InitialBackoff time.Duration
	Multiplier     float64
	// Retryable decides whether a failure is worth another attempt.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// NoRetry makes exactly one attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// TransientStatusPolicy retries 429 and 5xx responses: 3 attempts,
// waiting 1s then 2s.
func TransientStatusPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		Multiplier:     2,
		Retryable:      RetryableStatus,
	}
}

// RetryableStatus reports whether err carries a 429 or 5xx remote status.
func RetryableStatus(err error) bool {
	var ie *InvocationError
	if !errors.As(err, &ie) {
		return false
	}
	return ie.StatusHint == http.StatusTooManyRequests || ie.StatusHint >= 500
}

// Invoke runs op under policy. Non-retryable failures return at once;
// once attempts run out the last failure is returned unchanged.
func Invoke[T any](ctx context.Context, policy RetryPolicy, log zerolog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0
	b.InitialInterval = policy.InitialBackoff
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.Multiplier = policy.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 2
	}
	b.MaxInterval = time.Minute

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if policy.Retryable == nil || !policy.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying transcription call")
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, wait)
		}
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(notify),
	)
}
