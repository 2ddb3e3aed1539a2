package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrMaxRetries reports that the attempt budget ran out. It wraps the last
// operation error but is distinguishable from it via errors.Is.
var ErrMaxRetries = errors.New("max retries exceeded")

const (
	defaultMaxAttempts = 3
	defaultDelay       = 500 * time.Millisecond
)

type Options struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff doubles the delay after each failed attempt
	// (delay * 2^(attempt-1)); when false the delay is fixed.
	Backoff bool
}

// Defaults returns the standard options: 3 attempts, exponential backoff.
func Defaults() Options {
	return Options{MaxAttempts: defaultMaxAttempts, Delay: defaultDelay, Backoff: true}
}

func (o Options) withFallbacks() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.Delay <= 0 {
		o.Delay = defaultDelay
	}
	return o
}

func (o Options) delayFor(attempt int) time.Duration {
	if !o.Backoff {
		return o.Delay
	}
	return o.Delay << (attempt - 1)
}

// Do runs op until it succeeds, a client error surfaces, the context is
// cancelled, or the attempt budget is exhausted. Client errors (HTTP 4xx) are
// never retried; they are returned as-is from the first attempt that saw them.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	opts = opts.withFallbacks()

	var last error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if isClientError(err) {
			return zero, err
		}
		last = err

		if attempt == opts.MaxAttempts {
			break
		}
		if err := Sleep(ctx, opts.delayFor(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, errors.Wrapf(ErrMaxRetries, "after %d attempts, last error: %v", opts.MaxAttempts, last)
}

// DoVoid is Do for operations without a result.
func DoVoid(ctx context.Context, op func(context.Context) error, opts Options) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts)
	return err
}

// Sleep waits for d or until the context is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isClientError(err error) bool {
	var carrier interface{ HTTPStatus() int }
	if errors.As(err, &carrier) {
		status := carrier.HTTPStatus()
		return status >= 400 && status < 500
	}
	return false
}
