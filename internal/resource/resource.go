// Package resource implements a generic health-checked instance pool with
// bounded size, acquisition timeouts, background eviction and a strict
// per-instance lifecycle state machine.
package resource

import (
	"context"
	"sync"
	"time"
)

// Resource is a poolable handle: a database connection, an HTTP session,
// an authenticated client. Implementations must be safe to validate and
// close from the pool's background goroutine.
type Resource interface {
	// ID identifies the instance for logging and stats.
	ID() string

	// IsValid performs a health check. Returning false or an error marks
	// the instance for destruction.
	IsValid(ctx context.Context) (bool, error)

	// Close releases the underlying handle.
	Close(ctx context.Context) error
}

// Factory creates new resource instances for a pool.
type Factory interface {
	Create(ctx context.Context) (Resource, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Resource, error)

func (f FactoryFunc) Create(ctx context.Context) (Resource, error) { return f(ctx) }

// Instance wraps a Resource with its lifecycle state. All state changes
// go through Transition so illegal moves are caught at the call site.
type Instance struct {
	resource Resource

	mu        sync.Mutex
	state     LifecycleState
	createdAt time.Time
	lastUsed  time.Time
}

func newInstance(res Resource, now time.Time) *Instance {
	return &Instance{
		resource:  res,
		state:     StateCreated,
		createdAt: now,
		lastUsed:  now,
	}
}

// Resource returns the wrapped handle.
func (i *Instance) Resource() Resource { return i.resource }

// State returns the current lifecycle state.
func (i *Instance) State() LifecycleState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Transition moves the instance to the target state, rejecting moves the
// state machine does not allow.
func (i *Instance) Transition(to LifecycleState) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.state.CanTransitionTo(to) {
		return invalidTransition(i.state, to)
	}
	i.state = to
	return nil
}

// touch records use for idle-timeout bookkeeping.
func (i *Instance) touch(now time.Time) {
	i.mu.Lock()
	i.lastUsed = now
	i.mu.Unlock()
}

func (i *Instance) idleSince() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastUsed
}
