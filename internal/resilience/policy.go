package resilience

import (
	"context"
	"time"
)

// Policy composes the combinators in a fixed order:
//
//	bulkhead -> circuit breaker -> retry -> timeout -> fallback
//
// so each retry attempt is individually timeout-bounded, the whole
// sequence counts as one operation for the breaker and occupies one
// bulkhead slot, and fallback is consulted only once everything else has
// failed.
type Policy[T any] struct {
	bulkhead       *Bulkhead
	breaker        *CircuitBreaker
	retry          *RetryConfig
	timeout        time.Duration
	fallback       Fallback[T]
	shouldFallback func(error) bool
}

// Execute runs op under the policy.
func (p *Policy[T]) Execute(ctx context.Context, op Func[T]) (T, error) {
	wrapped := op
	if p.timeout > 0 {
		inner := wrapped
		wrapped = func(ctx context.Context) (T, error) {
			return WithTimeout(ctx, p.timeout, inner)
		}
	}
	if p.retry != nil {
		inner := wrapped
		wrapped = func(ctx context.Context) (T, error) {
			return Retry(ctx, *p.retry, inner)
		}
	}
	if p.breaker != nil {
		inner := wrapped
		wrapped = func(ctx context.Context) (T, error) {
			return ExecuteBreaker(ctx, p.breaker, inner)
		}
	}
	if p.bulkhead != nil {
		inner := wrapped
		wrapped = func(ctx context.Context) (T, error) {
			return ExecuteBulkhead(ctx, p.bulkhead, inner)
		}
	}

	result, err := wrapped(ctx)
	if err == nil {
		if cache, ok := p.fallback.(*CacheFallback[T]); ok {
			cache.Record(result)
		}
		return result, nil
	}

	if p.fallback != nil && (p.shouldFallback == nil || p.shouldFallback(err)) {
		if result, ferr := p.fallback.Resolve(ctx, err); ferr == nil {
			return result, nil
		}
	}

	var zero T
	return zero, err
}

// PolicyBuilder assembles a Policy. Unset patterns are skipped.
type PolicyBuilder[T any] struct {
	policy Policy[T]
}

// NewPolicy starts an empty builder.
func NewPolicy[T any]() *PolicyBuilder[T] {
	return &PolicyBuilder[T]{}
}

// WithBulkhead gates the policy behind a concurrency limiter. The
// bulkhead may be shared between policies protecting the same
// dependency.
func (b *PolicyBuilder[T]) WithBulkhead(bh *Bulkhead) *PolicyBuilder[T] {
	b.policy.bulkhead = bh
	return b
}

// WithBreaker gates the policy behind a circuit breaker, which may be
// shared between policies.
func (b *PolicyBuilder[T]) WithBreaker(cb *CircuitBreaker) *PolicyBuilder[T] {
	b.policy.breaker = cb
	return b
}

// WithRetry enables retries with the given config.
func (b *PolicyBuilder[T]) WithRetry(cfg RetryConfig) *PolicyBuilder[T] {
	b.policy.retry = &cfg
	return b
}

// WithTimeout bounds each attempt.
func (b *PolicyBuilder[T]) WithTimeout(d time.Duration) *PolicyBuilder[T] {
	b.policy.timeout = d
	return b
}

// WithFallback sets the last-resort strategy. shouldFallback filters
// which errors are eligible; nil means all.
func (b *PolicyBuilder[T]) WithFallback(f Fallback[T], shouldFallback func(error) bool) *PolicyBuilder[T] {
	b.policy.fallback = f
	b.policy.shouldFallback = shouldFallback
	return b
}

// Build returns the assembled policy.
func (b *PolicyBuilder[T]) Build() *Policy[T] {
	policy := b.policy
	return &policy
}
