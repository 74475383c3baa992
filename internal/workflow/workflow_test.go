package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

func TestBuilderBuildsValidWorkflow(t *testing.T) {
	b := NewBuilder("fetch and transform").
		WithDescription("pull a page and extract fields").
		WithVariable("base_url", "https://example.com").
		WithTags("http", "etl")

	fetch := b.AddNode("fetch", types.NewActionID(), map[types.Key]ParamValue{
		"url": Template("{{ variables.base_url }}/items"),
	})
	extract := b.AddNode("extract", types.NewActionID(), map[types.Key]ParamValue{
		"input": Reference(fetch, "body.items[0]"),
	})
	b.Connect(fetch, extract, OnResult("")).
		NodeTimeout(fetch, 5*time.Second).
		NodeRetry(fetch, resilience.RetryConfig{MaxAttempts: 2, BaseDelay: types.Duration(100 * time.Millisecond)})

	def, err := b.Build()
	require.NoError(t, err)
	assert.False(t, def.ID.IsZero())
	assert.Equal(t, "1", def.Version)
	assert.Len(t, def.Nodes, 2)
	assert.Len(t, def.Connections, 1)

	node, ok := def.NodeByID(fetch)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, node.Timeout.Std())
	require.NotNil(t, node.RetryPolicy)
	assert.Equal(t, 2, node.RetryPolicy.MaxAttempts)

	assert.Equal(t, []types.NodeID{fetch}, def.Roots())
}

func TestBuilderUnknownNodeFailsBuild(t *testing.T) {
	b := NewBuilder("w")
	b.AddNode("a", types.NewActionID(), nil)
	b.NodeTimeout(types.NewNodeID(), time.Second)

	_, err := b.Build()
	require.Error(t, err)
	assert.Equal(t, types.WORKFLOW_INVALID, types.CodeOf(err))
}

func twoNodeDef(t *testing.T) (*Definition, types.NodeID, types.NodeID) {
	t.Helper()
	a, b := types.NewNodeID(), types.NewNodeID()
	def := &Definition{
		ID:      types.NewWorkflowID(),
		Name:    "pair",
		Version: "1",
		Nodes: []Node{
			{ID: a, Name: "a", ActionID: types.NewActionID()},
			{ID: b, Name: "b", ActionID: types.NewActionID()},
		},
		Connections: []Connection{{From: a, To: b}},
	}
	return def, a, b
}

func TestValidatorRejections(t *testing.T) {
	actionID := types.NewActionID()

	cases := []struct {
		name    string
		mutate  func(def *Definition, a, b types.NodeID)
		message string
	}{
		{
			name:    "empty name",
			mutate:  func(def *Definition, _, _ types.NodeID) { def.Name = "  " },
			message: "name is empty",
		},
		{
			name:    "no nodes",
			mutate:  func(def *Definition, _, _ types.NodeID) { def.Nodes = nil },
			message: "no nodes",
		},
		{
			name: "duplicate node id",
			mutate: func(def *Definition, a, _ types.NodeID) {
				def.Nodes = append(def.Nodes, Node{ID: a, Name: "dup", ActionID: actionID})
			},
			message: "duplicate node id",
		},
		{
			name:    "node without name",
			mutate:  func(def *Definition, _, _ types.NodeID) { def.Nodes[0].Name = "" },
			message: "has no name",
		},
		{
			name:    "node without action",
			mutate:  func(def *Definition, _, _ types.NodeID) { def.Nodes[1].ActionID = "" },
			message: "has no action",
		},
		{
			name: "unknown connection source",
			mutate: func(def *Definition, _, b types.NodeID) {
				def.Connections[0].From = types.NewNodeID()
			},
			message: "unknown source node",
		},
		{
			name: "unknown connection target",
			mutate: func(def *Definition, _, _ types.NodeID) {
				def.Connections[0].To = types.NewNodeID()
			},
			message: "unknown target node",
		},
		{
			name: "self loop",
			mutate: func(def *Definition, a, _ types.NodeID) {
				def.Connections[0].To = a
			},
			message: "connects to itself",
		},
		{
			name: "empty expression condition",
			mutate: func(def *Definition, _, _ types.NodeID) {
				def.Connections[0].Condition = EdgeCondition{Type: ConditionExpression}
			},
			message: "has no expression",
		},
		{
			name: "malformed parameter",
			mutate: func(def *Definition, _, _ types.NodeID) {
				def.Nodes[0].Parameters = map[types.Key]ParamValue{
					"input": {Type: ParamValueType("magic")},
				}
			},
			message: "unknown parameter value type",
		},
		{
			name: "reference to unknown node",
			mutate: func(def *Definition, _, _ types.NodeID) {
				def.Nodes[1].Parameters = map[types.Key]ParamValue{
					"input": Reference(types.NewNodeID(), "body"),
				}
			},
			message: "references unknown node",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, a, b := twoNodeDef(t)
			tc.mutate(def, a, b)

			err := NewValidator().Validate(def)
			require.Error(t, err)
			assert.Equal(t, types.WORKFLOW_INVALID, types.CodeOf(err))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidatorReportsCyclePath(t *testing.T) {
	def, a, b := twoNodeDef(t)
	def.Connections = append(def.Connections, Connection{From: b, To: a})

	err := NewValidator().Validate(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains a cycle")
	assert.Contains(t, err.Error(), a.String())
	assert.Contains(t, err.Error(), b.String())
	assert.Contains(t, err.Error(), " -> ")
}

func TestTopologicalSortDeterministic(t *testing.T) {
	// Diamond: root fans out to two middles, both join at the sink.
	root, m1, m2, sink := types.NewNodeID(), types.NewNodeID(), types.NewNodeID(), types.NewNodeID()
	def := &Definition{
		ID:      types.NewWorkflowID(),
		Name:    "diamond",
		Version: "1",
		Nodes: []Node{
			{ID: sink, Name: "sink", ActionID: types.NewActionID()},
			{ID: m2, Name: "m2", ActionID: types.NewActionID()},
			{ID: root, Name: "root", ActionID: types.NewActionID()},
			{ID: m1, Name: "m1", ActionID: types.NewActionID()},
		},
		Connections: []Connection{
			{From: root, To: m1},
			{From: root, To: m2},
			{From: m1, To: sink},
			{From: m2, To: sink},
		},
	}

	first, err := NewValidator().TopologicalSort(def)
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, root, first[0])
	assert.Equal(t, sink, first[3])

	// Lexicographic tie-breaking makes repeated sorts identical.
	for i := 0; i < 5; i++ {
		again, err := NewValidator().TopologicalSort(def)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	lo, hi := m1.String(), m2.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	assert.Equal(t, lo, first[1].String())
	assert.Equal(t, hi, first[2].String())
}

func TestTopologicalSortRejectsCycle(t *testing.T) {
	def, a, b := twoNodeDef(t)
	def.Connections = append(def.Connections, Connection{From: b, To: a})

	_, err := NewValidator().TopologicalSort(def)
	require.Error(t, err)
	assert.Equal(t, types.WORKFLOW_INVALID, types.CodeOf(err))
}

func TestParseJSONAcceptsAllDurationEncodings(t *testing.T) {
	a := "3e2c2a8e-0a1d-4a5f-9c3b-1f2e3d4c5b6a"
	b := "7b1f9c2d-3e4a-4b5c-8d6e-9f0a1b2c3d4e"
	action := "550e8400-e29b-41d4-a716-446655440000"

	doc := fmt.Sprintf(`{
		"id": "c9b1d3e5-f7a9-4b2c-8d4e-6f8a0b2c4d6e",
		"name": "durations",
		"version": "1",
		"config": {"default_timeout": {"secs": 2, "nanos": 500000000}},
		"nodes": [
			{"id": %q, "name": "a", "action_id": %q, "timeout": 5000},
			{"id": %q, "name": "b", "action_id": %q, "timeout": "1.5s"}
		],
		"connections": [{"from_node": %q, "to_node": %q}]
	}`, a, action, b, action, a, b)

	def, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, def.Config.DefaultTimeout.Std())

	nodeA, ok := def.NodeByID(types.NodeID(a))
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, nodeA.Timeout.Std())

	nodeB, ok := def.NodeByID(types.NodeID(b))
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, nodeB.Timeout.Std())

	// Omitted condition normalizes to an unconditional edge.
	assert.Equal(t, ConditionAlways, def.Connections[0].Condition.Normalized().Type)
}

func TestCodecJSONRoundTrip(t *testing.T) {
	b := NewBuilder("round trip")
	fetch := b.AddNode("fetch", types.NewActionID(), map[types.Key]ParamValue{
		"url": Literal("https://example.com"),
	})
	parse := b.AddNode("parse", types.NewActionID(), map[types.Key]ParamValue{
		"input": Reference(fetch, "body"),
	})
	b.Connect(fetch, parse, WhenExpression("output.status == 200"))
	b.NodeTimeout(fetch, 1500*time.Millisecond)

	def, err := b.Build()
	require.NoError(t, err)

	data, err := EncodeJSON(def)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timeout": 1500`)

	decoded, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, def.ID, decoded.ID)
	assert.Equal(t, def.Name, decoded.Name)
	require.Len(t, decoded.Nodes, 2)

	node, ok := decoded.NodeByID(parse)
	require.True(t, ok)
	ref := node.Parameters["input"]
	assert.Equal(t, ParamReference, ref.Type)
	assert.Equal(t, fetch, ref.NodeID)
	assert.Equal(t, "body", ref.OutputPath)
	assert.Equal(t, ConditionExpression, decoded.Connections[0].Condition.Type)
}

func TestCodecYAMLRoundTrip(t *testing.T) {
	b := NewBuilder("yaml trip")
	start := b.AddNode("start", types.NewActionID(), nil)
	done := b.AddNode("done", types.NewActionID(), nil)
	b.Connect(start, done, OnError("TIMEOUT"))
	b.NodeTimeout(done, 250*time.Millisecond)

	def, err := b.Build()
	require.NoError(t, err)

	data, err := EncodeYAML(def)
	require.NoError(t, err)

	decoded, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, def.ID, decoded.ID)
	assert.Equal(t, ConditionOnError, decoded.Connections[0].Condition.Type)
	assert.Equal(t, "TIMEOUT", decoded.Connections[0].Condition.Matcher)

	node, ok := decoded.NodeByID(done)
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, node.Timeout.Std())
}

func TestParseYAMLDurationEncodings(t *testing.T) {
	a := "3e2c2a8e-0a1d-4a5f-9c3b-1f2e3d4c5b6a"
	action := "550e8400-e29b-41d4-a716-446655440000"

	doc := fmt.Sprintf(`
id: c9b1d3e5-f7a9-4b2c-8d4e-6f8a0b2c4d6e
name: yaml durations
version: "1"
config:
  default_timeout: 750
nodes:
  - id: %s
    name: a
    action_id: %s
    timeout: 2s
`, a, action)

	def, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, def.Config.DefaultTimeout.Std())

	node, ok := def.NodeByID(types.NodeID(a))
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, node.Timeout.Std())
}

func TestParseJSONRejectsMalformedDocument(t *testing.T) {
	_, err := ParseJSON([]byte(`{"name": `))
	require.Error(t, err)
	assert.Equal(t, types.SERIALIZATION_FAILED, types.CodeOf(err))
}

func TestEdgeConditionZeroValueIsAlways(t *testing.T) {
	var c EdgeCondition
	assert.Equal(t, ConditionAlways, c.Normalized().Type)
	assert.NoError(t, c.Validate())
}
