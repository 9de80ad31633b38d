// Package dbretry wraps database operations with bounded exponential
// backoff so transient connection and serialization failures heal without
// surfacing to callers.
package dbretry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// Error classes worth retrying: 08 connection exceptions, 40 transaction
// rollbacks such as serialization failures and deadlocks, 53 resource
// exhaustion, 57 operator intervention.
var retryableClasses = []string{"08", "40", "53", "57"}

// IsRetryableError reports whether the given error is transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// A canceled context never recovers by waiting.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		code := pgerr.Field('C')
		for _, class := range retryableClasses {
			if strings.HasPrefix(code, class) {
				return true
			}
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Connection drops surface as plain errors from the driver.
	msg := err.Error()
	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "unexpected EOF")
}

func newBackOff(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries), ctx)
}

// NoResult retries a database operation that returns no value. Errors that
// are not transient stop the retry loop and pass through unwrapped, so
// sentinel checks like errors.Is(err, sql.ErrNoRows) still work.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	return backoff.Retry(func() error {
		err := operation(ctx)
		if err != nil && !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, newBackOff(ctx))
}

// Operation retries a database operation that returns a value.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T

	err := NoResult(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})

	return result, err
}

// Transaction retries a function inside a database transaction. The
// function must be safe to run more than once.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}
