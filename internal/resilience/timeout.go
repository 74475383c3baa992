package resilience

import (
	"context"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// WithTimeout races op against a deadline. If the deadline fires first
// the operation's context is cancelled and a retryable TIMEOUT error is
// returned; the operation keeps running until it observes the
// cancellation, but its result is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, op Func[T]) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := op(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if context.Cause(ctx) == context.DeadlineExceeded || ctx.Err() == context.DeadlineExceeded {
			return zero, types.WrapRetryableError(types.TIMEOUT,
				"operation exceeded deadline of "+d.String(), ctx.Err())
		}
		return zero, types.WrapError(types.CANCELLED, "operation cancelled", ctx.Err())
	}
}
