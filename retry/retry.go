// Package retry implements the timeout, backoff and retry primitives shared
// by the AI dispatcher and both channel engines.
package retry

import (
	"context"
	"time"

	"github.com/go-errors/errors"
)

// ErrorCode classifies a retry/timeout failure the way the rest of the node
// classifies packet-level failures.
type ErrorCode string

const (
	// CodeTimeout is returned when an operation did not complete within
	// its allotted bound.
	CodeTimeout ErrorCode = "Timeout"

	// CodeInvalidArgument is returned synchronously for programmer
	// errors such as a non-positive timeout bound.
	CodeInvalidArgument ErrorCode = "InvalidArgument"
)

// Error wraps a retry/timeout failure with a stable code so callers can
// branch on it without string matching.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Err: errors.New(msg)}
}

// DefaultBaseDelay and DefaultCapDelay are the backoff defaults: 1s base,
// 30s cap.
const (
	DefaultBaseDelay = 1000 * time.Millisecond
	DefaultCapDelay  = 30000 * time.Millisecond
)

// Backoff computes the delay for attempt n (n >= 0) given base b and cap c:
// delay = min(b * 2^n, c).
func Backoff(n int, base, cap time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if cap <= 0 {
		cap = DefaultCapDelay
	}
	if n < 0 {
		n = 0
	}

	// Guard against overflow for large n; once the shifted base exceeds
	// the cap there's no point computing further.
	delay := base
	for i := 0; i < n; i++ {
		if delay >= cap {
			return cap
		}
		delay *= 2
	}
	if delay > cap {
		return cap
	}
	return delay
}

// Operation is a fallible unit of work. It should honor ctx cancellation
// where possible; when it cannot, the timeout wrapper still returns once the
// bound elapses and discards the late result.
type Operation func(ctx context.Context) (interface{}, error)

// WithTimeout runs op and returns its result if it completes within bound.
// A non-positive bound is a programmer error and fails synchronously.
func WithTimeout(ctx context.Context, bound time.Duration, op Operation) (interface{}, error) {
	if bound <= 0 {
		return nil, newError(CodeInvalidArgument, "timeout bound must be positive")
	}

	cctx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()

	type result struct {
		val interface{}
		err error
	}
	done := make(chan result, 1)

	go func() {
		val, err := op(cctx)
		select {
		case done <- result{val, err}:
		default:
			// Timeout already fired and nobody is listening; the
			// caller discarded us. That's fine, the operation
			// still ran to completion.
		}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-cctx.Done():
		log.Debugf("operation exceeded timeout of %v", bound)
		return nil, newError(CodeTimeout, "operation timed out")
	}
}

// ShouldRetryFunc decides whether a failed attempt should be retried.
type ShouldRetryFunc func(err error) bool

// OnRetryFunc is an optional observer invoked before each retry sleep.
type OnRetryFunc func(attempt int, err error)

// Config parameterizes ExecuteWithRetry.
type Config struct {
	MaxRetries  int
	BaseDelay   time.Duration
	CapDelay    time.Duration
	ShouldRetry ShouldRetryFunc
	OnRetry     OnRetryFunc
}

// ExecuteWithRetry runs op, retrying on failure up to MaxRetries additional
// times with exponential backoff between attempts. It returns the first
// success, or the last error once attempts are exhausted.
//
// MaxRetries=0 means at most one attempt: op is called once and its result
// (success or failure) is returned directly, with no backoff sleep.
func ExecuteWithRetry(ctx context.Context, cfg Config, op Operation) (interface{}, error) {
	if cfg.MaxRetries < 0 {
		return nil, newError(CodeInvalidArgument, "maxRetries must be >= 0")
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries || !shouldRetry(err) {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		delay := Backoff(attempt, cfg.BaseDelay, cfg.CapDelay)
		log.Debugf("retry attempt %d failed (%v), backing off %v", attempt, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}
