package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	require.Equal(t, 1000*time.Millisecond, Backoff(0, DefaultBaseDelay, DefaultCapDelay))
	require.Equal(t, 2000*time.Millisecond, Backoff(1, DefaultBaseDelay, DefaultCapDelay))
	require.Equal(t, 4000*time.Millisecond, Backoff(2, DefaultBaseDelay, DefaultCapDelay))
	require.Equal(t, DefaultCapDelay, Backoff(10, DefaultBaseDelay, DefaultCapDelay))
}

func TestWithTimeoutRejectsNonPositiveBound(t *testing.T) {
	_, err := WithTimeout(context.Background(), 0, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, CodeInvalidArgument, rerr.Code)
}

func TestWithTimeoutSucceeds(t *testing.T) {
	val, err := WithTimeout(context.Background(), 50*time.Millisecond, func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, val)
}

func TestWithTimeoutExpires(t *testing.T) {
	_, err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) (interface{}, error) {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
		}
		return nil, nil
	})
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, CodeTimeout, rerr.Code)
}

// TestRetryTermination checks the retry-termination invariant:
// ExecuteWithRetry with MaxRetries n calls f at most n+1 times.
func TestRetryTermination(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		CapDelay:   time.Millisecond,
	}, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	require.Error(t, err)
	require.Equal(t, 4, calls)
}

func TestRetryZeroMaxRetriesIsOneAttempt(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), Config{MaxRetries: 0}, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	val, err := ExecuteWithRetry(context.Background(), Config{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		CapDelay:   time.Millisecond,
	}, func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, context.DeadlineExceeded
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", val)
	require.Equal(t, 3, calls)
}

func TestRetryShouldRetryStopsEarly(t *testing.T) {
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), Config{
		MaxRetries:  5,
		BaseDelay:   time.Millisecond,
		CapDelay:    time.Millisecond,
		ShouldRetry: func(error) bool { return false },
	}, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
