package action

import (
	"sync"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Registry maps action ids to implementations. Registration normally
// happens at startup; lookups happen on every activation.
type Registry struct {
	mu   sync.RWMutex
	byID map[types.ActionID]Action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[types.ActionID]Action)}
}

// Register adds an action. Duplicate ids fail ALREADY_EXISTS.
func (r *Registry) Register(a Action) error {
	if a == nil || a.ID().IsZero() {
		return types.NewError(types.INVALID_INPUT, "action must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID()]; ok {
		return types.NewErrorf(types.ALREADY_EXISTS, "action %s already registered", a.ID())
	}
	r.byID[a.ID()] = a
	return nil
}

// ByID resolves an action, failing NOT_FOUND for unknown ids.
func (r *Registry) ByID(id types.ActionID) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, types.NewErrorf(types.NOT_FOUND, "action %s is not registered", id)
	}
	return a, nil
}

// IDs returns the registered action ids in no particular order.
func (r *Registry) IDs() []types.ActionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ActionID, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}
