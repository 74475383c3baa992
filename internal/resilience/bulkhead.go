package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// BulkheadConfig bounds concurrent access to a dependency.
type BulkheadConfig struct {
	// MaxConcurrency is the number of calls allowed in flight.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" validate:"gt=0"`

	// QueueSize is how many callers may wait for a slot. Further callers
	// are rejected immediately.
	QueueSize int `json:"queue_size" yaml:"queue_size" validate:"gte=0"`

	// Timeout bounds how long a queued caller waits for a slot. Zero
	// means wait until the context is done.
	Timeout types.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBulkheadConfig allows 10 in flight with a queue of 20.
func DefaultBulkheadConfig() BulkheadConfig {
	return BulkheadConfig{
		MaxConcurrency: 10,
		QueueSize:      20,
		Timeout:        types.Duration(5 * time.Second),
	}
}

// Bulkhead limits in-flight calls with a bounded FIFO wait queue.
// Waiters are admitted in arrival order.
type Bulkhead struct {
	config  BulkheadConfig
	sem     *semaphore.Weighted
	waiting atomic.Int64
}

// NewBulkhead builds a bulkhead from config.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrency)),
	}
}

// Acquire obtains a slot, queueing up to QueueSize callers for at most
// the configured timeout. Rejections and timeouts fail BULKHEAD_FULL.
// The returned release func must be called exactly once.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if b.sem.TryAcquire(1) {
		return func() { b.sem.Release(1) }, nil
	}

	if b.waiting.Add(1) > int64(b.config.QueueSize) {
		b.waiting.Add(-1)
		return nil, types.NewRetryableError(types.BULKHEAD_FULL, "bulkhead queue full")
	}
	defer b.waiting.Add(-1)

	waitCtx := ctx
	if d := b.config.Timeout.Std(); d > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, types.WrapError(types.CANCELLED, "bulkhead wait cancelled", ctx.Err())
		}
		return nil, types.WrapRetryableError(types.BULKHEAD_FULL, "bulkhead wait timed out", err)
	}
	return func() { b.sem.Release(1) }, nil
}

// Waiting returns the number of queued callers.
func (b *Bulkhead) Waiting() int { return int(b.waiting.Load()) }

// ExecuteBulkhead runs op inside a bulkhead slot.
func ExecuteBulkhead[T any](ctx context.Context, b *Bulkhead, op Func[T]) (T, error) {
	var zero T
	release, err := b.Acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer release()
	return op(ctx)
}
