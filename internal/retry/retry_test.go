package retry_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"payment-reconciler/internal/retry"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct {
	code int
}

func (e statusErr) Error() string   { return fmt.Sprintf("http %d", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := retry.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}, retry.Defaults())

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	original := statusErr{code: 400}

	_, err := retry.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", original
	}, retry.Options{MaxAttempts: 3, Delay: 10 * time.Millisecond})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, original)
	assert.NotErrorIs(t, err, retry.ErrMaxRetries)
}

func TestDo_WrappedClientErrorNotRetried(t *testing.T) {
	calls := 0
	wrapped := errors.Wrap(statusErr{code: 404}, "fetching record")

	_, err := retry.Do(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, wrapped
	}, retry.Options{MaxAttempts: 3, Delay: 10 * time.Millisecond})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, wrapped)
}

func TestDo_ServerErrorRetried(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", statusErr{code: 500}
		}
		return "ok", nil
	}, retry.Options{MaxAttempts: 3, Delay: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExponentialBackoff(t *testing.T) {
	var stamps []time.Time

	_, err := retry.Do(context.Background(), func(ctx context.Context) (string, error) {
		stamps = append(stamps, time.Now())
		return "", errors.New("transient")
	}, retry.Options{MaxAttempts: 3, Delay: 100 * time.Millisecond, Backoff: true})

	assert.ErrorIs(t, err, retry.ErrMaxRetries)
	require.Len(t, stamps, 3)

	firstGap := stamps[1].Sub(stamps[0])
	secondGap := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, firstGap, 100*time.Millisecond)
	assert.Less(t, firstGap, 180*time.Millisecond)
	assert.GreaterOrEqual(t, secondGap, 200*time.Millisecond)
	assert.Less(t, secondGap, 320*time.Millisecond)
}

func TestDo_FixedDelay(t *testing.T) {
	var stamps []time.Time

	_, err := retry.Do(context.Background(), func(ctx context.Context) (string, error) {
		stamps = append(stamps, time.Now())
		return "", errors.New("transient")
	}, retry.Options{MaxAttempts: 3, Delay: 50 * time.Millisecond, Backoff: false})

	assert.ErrorIs(t, err, retry.ErrMaxRetries)
	require.Len(t, stamps, 3)
	assert.Less(t, stamps[2].Sub(stamps[1]), 100*time.Millisecond)
}

func TestDo_MaxRetriesKeepsLastError(t *testing.T) {
	_, err := retry.Do(context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("connection reset")
	}, retry.Options{MaxAttempts: 2, Delay: time.Millisecond})

	assert.ErrorIs(t, err, retry.ErrMaxRetries)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("transient")
	}, retry.Options{MaxAttempts: 5, Delay: 200 * time.Millisecond})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
