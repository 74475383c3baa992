// Package execution turns a validated workflow definition into a running
// set of node activations: dependency tracking, a bounded-concurrency
// scheduler, parameter resolution, resilience wrapping and an append-only
// journal of everything that happened.
package execution

// NodeStatus tracks a node through its activation lifecycle.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeScheduled NodeStatus = "scheduled"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
	NodeCancelled NodeStatus = "cancelled"
)

func (s NodeStatus) String() string { return string(s) }

// IsTerminal reports whether no further transitions are possible.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeCompleted, NodeFailed, NodeSkipped, NodeCancelled:
		return true
	}
	return false
}

// ExecutionStatus is the aggregate outcome of a run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) String() string { return string(s) }
