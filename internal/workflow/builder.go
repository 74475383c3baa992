package workflow

import (
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Builder assembles a Definition fluently. Build validates, so a
// successfully built workflow is always structurally sound.
type Builder struct {
	def Definition
	err error
}

// NewBuilder starts a workflow with a fresh id.
func NewBuilder(name string) *Builder {
	now := time.Now()
	return &Builder{
		def: Definition{
			ID:        types.NewWorkflowID(),
			Name:      name,
			Version:   "1",
			CreatedAt: now,
			UpdatedAt: now,
			Variables: make(map[string]any),
		},
	}
}

// WithDescription sets the description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.def.Description = desc
	return b
}

// WithVersion overrides the document version.
func (b *Builder) WithVersion(version string) *Builder {
	b.def.Version = version
	return b
}

// WithVariable sets a workflow variable visible to expressions.
func (b *Builder) WithVariable(name string, v any) *Builder {
	b.def.Variables[name] = v
	return b
}

// WithConfig replaces the execution config.
func (b *Builder) WithConfig(config Config) *Builder {
	b.def.Config = config
	return b
}

// WithTags sets the workflow tags.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.def.Tags = tags
	return b
}

// AddNode appends a node and returns its generated id.
func (b *Builder) AddNode(name string, actionID types.ActionID, params map[types.Key]ParamValue) types.NodeID {
	id := types.NewNodeID()
	b.def.Nodes = append(b.def.Nodes, Node{
		ID:         id,
		Name:       name,
		ActionID:   actionID,
		Parameters: params,
	})
	return id
}

// AddNodeDef appends a fully specified node.
func (b *Builder) AddNodeDef(node Node) *Builder {
	if node.ID.IsZero() {
		node.ID = types.NewNodeID()
	}
	b.def.Nodes = append(b.def.Nodes, node)
	return b
}

// NodeTimeout sets the timeout of an existing node.
func (b *Builder) NodeTimeout(id types.NodeID, timeout time.Duration) *Builder {
	if node := b.node(id); node != nil {
		node.Timeout = types.Duration(timeout)
	}
	return b
}

// NodeRetry sets the retry policy of an existing node.
func (b *Builder) NodeRetry(id types.NodeID, cfg resilience.RetryConfig) *Builder {
	if node := b.node(id); node != nil {
		node.RetryPolicy = &cfg
	}
	return b
}

// Connect wires from -> to under the given condition.
func (b *Builder) Connect(from, to types.NodeID, condition EdgeCondition) *Builder {
	b.def.Connections = append(b.def.Connections, Connection{
		From:      from,
		To:        to,
		Condition: condition,
	})
	return b
}

// ConnectBranch wires a labeled branch edge.
func (b *Builder) ConnectBranch(from, to types.NodeID, condition EdgeCondition, branchKey string) *Builder {
	b.def.Connections = append(b.def.Connections, Connection{
		From:      from,
		To:        to,
		Condition: condition,
		BranchKey: branchKey,
	})
	return b
}

func (b *Builder) node(id types.NodeID) *Node {
	for i := range b.def.Nodes {
		if b.def.Nodes[i].ID == id {
			return &b.def.Nodes[i]
		}
	}
	b.err = types.NewErrorf(types.WORKFLOW_INVALID, "builder: unknown node %s", id)
	return nil
}

// Build validates and returns the definition.
func (b *Builder) Build() (*Definition, error) {
	if b.err != nil {
		return nil, b.err
	}
	def := b.def
	if err := NewValidator().Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}
