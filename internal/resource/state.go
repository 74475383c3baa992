package resource

import "github.com/vanyastaff/nebula-sub011/internal/types"

// LifecycleState tracks an instance through the pool's state machine.
type LifecycleState string

const (
	StateCreated      LifecycleState = "created"
	StateInitializing LifecycleState = "initializing"
	StateReady        LifecycleState = "ready"
	StateInUse        LifecycleState = "in_use"
	StateIdle         LifecycleState = "idle"
	StateMaintenance  LifecycleState = "maintenance"
	StateDraining     LifecycleState = "draining"
	StateCleanup      LifecycleState = "cleanup"
	StateFailed       LifecycleState = "failed"
	StateTerminated   LifecycleState = "terminated"
)

func (s LifecycleState) String() string { return string(s) }

// IsTerminal reports whether no further transitions are possible.
func (s LifecycleState) IsTerminal() bool { return s == StateTerminated }

// allowedTransitions is the full transition relation; everything absent
// is rejected.
var allowedTransitions = map[LifecycleState][]LifecycleState{
	StateCreated:      {StateInitializing, StateFailed, StateTerminated},
	StateInitializing: {StateReady, StateFailed},
	StateReady:        {StateInUse, StateIdle, StateMaintenance, StateDraining, StateFailed},
	StateInUse:        {StateReady, StateIdle, StateFailed},
	StateIdle:         {StateInUse, StateReady, StateMaintenance, StateDraining, StateCleanup, StateFailed},
	StateMaintenance:  {StateReady, StateFailed, StateCleanup},
	StateDraining:     {StateCleanup, StateFailed},
	StateCleanup:      {StateTerminated, StateFailed},
	StateFailed:       {StateCleanup, StateTerminated},
	StateTerminated:   {},
}

// CanTransitionTo reports whether the state machine allows s -> to.
func (s LifecycleState) CanTransitionTo(to LifecycleState) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to LifecycleState) error {
	return types.NewErrorf(types.PRECONDITION_FAILED,
		"invalid lifecycle transition %s -> %s", from, to)
}
