package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Fallback produces a substitute result after the primary operation has
// failed. Resolve receives the primary's error and may itself fail, in
// which case the primary error is surfaced.
type Fallback[T any] interface {
	Resolve(ctx context.Context, cause error) (T, error)
}

// ValueFallback returns a fixed value.
type ValueFallback[T any] struct {
	Value T
}

func (f ValueFallback[T]) Resolve(context.Context, error) (T, error) {
	return f.Value, nil
}

// FuncFallback delegates to a function, typically a degraded code path.
type FuncFallback[T any] struct {
	Fn func(ctx context.Context, cause error) (T, error)
}

func (f FuncFallback[T]) Resolve(ctx context.Context, cause error) (T, error) {
	return f.Fn(ctx, cause)
}

// CacheFallback serves the last successful result for up to TTL. Record
// must be called on primary successes to keep the cache warm.
type CacheFallback[T any] struct {
	TTL time.Duration

	mu       sync.RWMutex
	value    T
	storedAt time.Time
	valid    bool

	now func() time.Time
}

// NewCacheFallback builds an empty cache fallback.
func NewCacheFallback[T any](ttl time.Duration) *CacheFallback[T] {
	return &CacheFallback[T]{TTL: ttl, now: time.Now}
}

// Record stores a fresh successful result.
func (f *CacheFallback[T]) Record(value T) {
	f.mu.Lock()
	f.value = value
	f.storedAt = f.now()
	f.valid = true
	f.mu.Unlock()
}

func (f *CacheFallback[T]) Resolve(_ context.Context, cause error) (T, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var zero T
	if !f.valid {
		return zero, types.WrapError(types.NOT_FOUND, "fallback cache empty", cause)
	}
	if f.TTL > 0 && f.now().Sub(f.storedAt) > f.TTL {
		return zero, types.WrapError(types.NOT_FOUND, "fallback cache expired", cause)
	}
	return f.value, nil
}

// ChainFallback tries each strategy in order and returns the first
// success.
type ChainFallback[T any] struct {
	Strategies []Fallback[T]
}

func (f ChainFallback[T]) Resolve(ctx context.Context, cause error) (T, error) {
	var zero T
	lastErr := cause
	for _, s := range f.Strategies {
		result, err := s.Resolve(ctx, cause)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// PriorityFallback dispatches on the primary error's code, falling back
// to Default when no entry matches.
type PriorityFallback[T any] struct {
	ByCode  map[types.ErrorCode]Fallback[T]
	Default Fallback[T]
}

func (f PriorityFallback[T]) Resolve(ctx context.Context, cause error) (T, error) {
	if s, ok := f.ByCode[types.CodeOf(cause)]; ok {
		return s.Resolve(ctx, cause)
	}
	if f.Default != nil {
		return f.Default.Resolve(ctx, cause)
	}
	var zero T
	return zero, cause
}
