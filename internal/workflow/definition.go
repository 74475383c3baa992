// Package workflow defines the workflow document model: nodes wired into
// a DAG by conditional connections, plus the builder, validator and
// serialization codec.
package workflow

import (
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Config carries per-workflow execution settings.
type Config struct {
	// MaxParallelNodes bounds concurrent node activations. Zero means
	// the engine default.
	MaxParallelNodes int `json:"max_parallel_nodes,omitempty" yaml:"max_parallel_nodes,omitempty"`

	// ContinueOnError keeps the execution going past a failed node;
	// only Always and OnError edges downstream of the failure stay
	// eligible.
	ContinueOnError bool `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`

	// DefaultTimeout applies to nodes without their own timeout.
	DefaultTimeout types.Duration `json:"default_timeout,omitempty" yaml:"default_timeout,omitempty"`

	// DefaultRetry applies to nodes without their own retry policy.
	DefaultRetry *resilience.RetryConfig `json:"default_retry,omitempty" yaml:"default_retry,omitempty"`
}

// Node describes a single unit of work.
type Node struct {
	ID               types.NodeID             `json:"id" yaml:"id"`
	Name             string                   `json:"name" yaml:"name"`
	ActionID         types.ActionID           `json:"action_id" yaml:"action_id"`
	InterfaceVersion string                   `json:"interface_version,omitempty" yaml:"interface_version,omitempty"`
	Parameters       map[types.Key]ParamValue `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RetryPolicy      *resilience.RetryConfig  `json:"retry_policy,omitempty" yaml:"retry_policy,omitempty"`
	Timeout          types.Duration           `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Description      string                   `json:"description,omitempty" yaml:"description,omitempty"`

	// Credentials and Resources declare what the activation acquires
	// before invoking the action.
	Credentials []types.CredentialID `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Resources   []types.Key          `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Connection is a directed conditional edge between two nodes.
type Connection struct {
	From      types.NodeID  `json:"from_node" yaml:"from_node"`
	To        types.NodeID  `json:"to_node" yaml:"to_node"`
	Condition EdgeCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
	BranchKey string        `json:"branch_key,omitempty" yaml:"branch_key,omitempty"`
	FromPort  string        `json:"from_port,omitempty" yaml:"from_port,omitempty"`
	ToPort    string        `json:"to_port,omitempty" yaml:"to_port,omitempty"`
}

// Definition is a complete workflow document.
type Definition struct {
	ID          types.WorkflowID `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string           `json:"version" yaml:"version"`
	Nodes       []Node           `json:"nodes" yaml:"nodes"`
	Connections []Connection     `json:"connections,omitempty" yaml:"connections,omitempty"`
	Variables   map[string]any   `json:"variables,omitempty" yaml:"variables,omitempty"`
	Config      Config           `json:"config,omitempty" yaml:"config,omitempty"`
	Tags        []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// NodeByID returns the node with the given id.
func (d *Definition) NodeByID(id types.NodeID) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Predecessors builds the inbound adjacency map: target -> connections
// arriving at it.
func (d *Definition) Predecessors() map[types.NodeID][]Connection {
	preds := make(map[types.NodeID][]Connection, len(d.Nodes))
	for _, conn := range d.Connections {
		preds[conn.To] = append(preds[conn.To], conn)
	}
	return preds
}

// Successors builds the outbound adjacency map: source -> connections
// leaving it.
func (d *Definition) Successors() map[types.NodeID][]Connection {
	succs := make(map[types.NodeID][]Connection, len(d.Nodes))
	for _, conn := range d.Connections {
		succs[conn.From] = append(succs[conn.From], conn)
	}
	return succs
}

// Roots returns nodes without inbound connections, in declaration order.
func (d *Definition) Roots() []types.NodeID {
	preds := d.Predecessors()
	var roots []types.NodeID
	for _, node := range d.Nodes {
		if len(preds[node.ID]) == 0 {
			roots = append(roots, node.ID)
		}
	}
	return roots
}
