package resource

import (
	"context"
	"sync"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Registry maps resource type keys to pools so node activations can
// acquire by declared type.
type Registry struct {
	mu    sync.RWMutex
	pools map[types.Key]*Pool
}

// NewRegistry returns an empty pool registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[types.Key]*Pool)}
}

// Register adds a pool under key. Re-registering a key fails.
func (r *Registry) Register(key types.Key, pool *Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.pools[key]; dup {
		return types.NewErrorf(types.ALREADY_EXISTS, "pool %q already registered", key)
	}
	r.pools[key] = pool
	return nil
}

// Get returns the pool registered under key.
func (r *Registry) Get(key types.Key) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[key]
	return pool, ok
}

// Acquire loans an instance from the pool registered under key.
func (r *Registry) Acquire(ctx context.Context, key types.Key) (*Guard, error) {
	pool, ok := r.Get(key)
	if !ok {
		return nil, types.NewErrorf(types.NOT_FOUND, "no pool registered for resource type %q", key)
	}
	return pool.Acquire(ctx)
}

// Close shuts down every registered pool, returning the first error.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		pools = append(pools, pool)
	}
	r.pools = make(map[types.Key]*Pool)
	r.mu.Unlock()

	var firstErr error
	for _, pool := range pools {
		if err := pool.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
