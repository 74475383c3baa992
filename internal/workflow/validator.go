package workflow

import (
	"sort"
	"strings"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Validator checks workflow definitions for structural soundness: shape
// invariants, referential integrity and acyclicity.
type Validator struct{}

// NewValidator returns a stateless validator.
func NewValidator() *Validator { return &Validator{} }

// Validate runs every check and returns the first violation as a
// WORKFLOW_INVALID error.
func (v *Validator) Validate(def *Definition) error {
	if def == nil {
		return types.NewError(types.WORKFLOW_INVALID, "workflow definition is nil")
	}
	if strings.TrimSpace(def.Name) == "" {
		return types.NewError(types.WORKFLOW_INVALID, "workflow name is empty")
	}
	if len(def.Nodes) == 0 {
		return types.NewError(types.WORKFLOW_INVALID, "workflow has no nodes")
	}

	seen := make(map[types.NodeID]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		if node.ID.IsZero() {
			return types.NewErrorf(types.WORKFLOW_INVALID, "node %q has no id", node.Name)
		}
		if seen[node.ID] {
			return types.NewErrorf(types.WORKFLOW_INVALID, "duplicate node id %s", node.ID)
		}
		seen[node.ID] = true
		if strings.TrimSpace(node.Name) == "" {
			return types.NewErrorf(types.WORKFLOW_INVALID, "node %s has no name", node.ID)
		}
		if node.ActionID.IsZero() {
			return types.NewErrorf(types.WORKFLOW_INVALID, "node %s has no action", node.ID)
		}
		for key, pv := range node.Parameters {
			if !key.Valid() {
				return types.NewErrorf(types.WORKFLOW_INVALID, "node %s has invalid parameter key %q", node.ID, key)
			}
			if err := pv.Validate(); err != nil {
				return types.WrapError(types.WORKFLOW_INVALID, "node "+node.ID.String()+" parameter "+string(key), err)
			}
		}
	}

	for _, conn := range def.Connections {
		if !seen[conn.From] {
			return types.NewErrorf(types.WORKFLOW_INVALID, "connection references unknown source node %s", conn.From)
		}
		if !seen[conn.To] {
			return types.NewErrorf(types.WORKFLOW_INVALID, "connection references unknown target node %s", conn.To)
		}
		if conn.From == conn.To {
			return types.NewErrorf(types.WORKFLOW_INVALID, "node %s connects to itself", conn.From)
		}
		if err := conn.Condition.Validate(); err != nil {
			return err
		}
	}

	for _, node := range def.Nodes {
		for key, pv := range node.Parameters {
			if pv.Type == ParamReference && !seen[pv.NodeID] {
				return types.NewErrorf(types.WORKFLOW_INVALID,
					"node %s parameter %s references unknown node %s", node.ID, key, pv.NodeID)
			}
		}
	}

	if cycle := v.detectCycle(def); len(cycle) > 0 {
		path := make([]string, len(cycle))
		for i, id := range cycle {
			path[i] = id.String()
		}
		return types.NewErrorf(types.WORKFLOW_INVALID, "workflow contains a cycle: %s", strings.Join(path, " -> "))
	}
	return nil
}

// detectCycle runs DFS with white/gray/black coloring and returns the
// cycle path when a back edge is found.
func (v *Validator) detectCycle(def *Definition) []types.NodeID {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[types.NodeID]int, len(def.Nodes))
	parent := make(map[types.NodeID]types.NodeID)
	succs := def.Successors()

	// Deterministic traversal order keeps reported cycles stable.
	order := make([]types.NodeID, 0, len(def.Nodes))
	for _, node := range def.Nodes {
		order = append(order, node.ID)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	var dfs func(id types.NodeID) []types.NodeID
	dfs = func(id types.NodeID) []types.NodeID {
		color[id] = gray
		for _, conn := range succs[id] {
			next := conn.To
			switch color[next] {
			case white:
				parent[next] = id
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			case gray:
				cycle := []types.NodeID{next}
				for current := id; current != next; current = parent[current] {
					cycle = append([]types.NodeID{current}, cycle...)
				}
				return append([]types.NodeID{next}, cycle...)
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range order {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort orders node ids with Kahn's algorithm, breaking ties
// lexicographically. Fails on cyclic definitions.
func (v *Validator) TopologicalSort(def *Definition) ([]types.NodeID, error) {
	inDegree := make(map[types.NodeID]int, len(def.Nodes))
	for _, node := range def.Nodes {
		inDegree[node.ID] = 0
	}
	succs := def.Successors()
	for _, conns := range succs {
		for _, conn := range conns {
			inDegree[conn.To]++
		}
	}

	var queue []types.NodeID
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sortIDs(queue)

	result := make([]types.NodeID, 0, len(def.Nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		var freed []types.NodeID
		for _, conn := range succs[current] {
			inDegree[conn.To]--
			if inDegree[conn.To] == 0 {
				freed = append(freed, conn.To)
			}
		}
		sortIDs(freed)
		queue = append(queue, freed...)
	}

	if len(result) != len(def.Nodes) {
		return nil, types.NewError(types.WORKFLOW_INVALID, "cannot sort topologically: workflow contains a cycle")
	}
	return result, nil
}

func sortIDs(ids []types.NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
