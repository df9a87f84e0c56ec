package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// NewFatalError marks err so that Do stops retrying immediately.
func NewFatalError(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// Options configures in-process retries of infrastructure calls
// (connecting to Redis, publishing to Kafka).
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// Do runs fn until it succeeds, returns a fatal error, ctx is done, or the
// attempt budget is spent. onRetry, if set, is called before each retry.
func Do(ctx context.Context, opts Options, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	var b backoff.BackOff = ExponentialBackoff(opts.InitialInterval, opts.MaxInterval, opts.MaxElapsedTime, opts.Multiplier)
	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(opts.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		var fatal *fatalError
		if errors.As(err, &fatal) {
			return backoff.Permanent(err)
		}

		if onRetry != nil && attempt < opts.MaxAttempts {
			onRetry(attempt, err, CalculateBackoffDuration(attempt-1, opts.InitialInterval, opts.Multiplier, opts.MaxInterval))
		}
		return err
	}

	return backoff.Retry(operation, b)
}
