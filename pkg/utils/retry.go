package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig is a bounded retry policy
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig is the default retry policy
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     30 * time.Second,
	Multiplier:   2.0,
}

// ConstantRetryConfig retries attempts times with a fixed pause
func ConstantRetryConfig(attempts int, interval time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: interval,
		MaxDelay:     interval,
		Multiplier:   1.0,
	}
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// RetryWithBackoff runs operation until it succeeds or the attempts are used
// up. Returning backoff.Permanent(err) from operation stops immediately.
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation func() error) error {
	return RetryWithNotify(ctx, config, operation, nil)
}

// RetryWithNotify is RetryWithBackoff with a callback before every pause
func RetryWithNotify(ctx context.Context, config RetryConfig, operation func() error, notify func(attempt int, err error, next time.Duration)) error {
	attempt := 0
	op := func() error {
		attempt++
		return operation()
	}

	n := func(err error, next time.Duration) {
		if notify != nil {
			notify(attempt, err, next)
		}
	}

	if err := backoff.RetryNotify(op, config.backOff(ctx), n); err != nil {
		return fmt.Errorf("giving up after %d attempt(s): %w", attempt, err)
	}
	return nil
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}
