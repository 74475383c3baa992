package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/action"
	"github.com/vanyastaff/nebula-sub011/internal/workflow"
)

func TestCountLevels(t *testing.T) {
	b := workflow.NewBuilder("diamond").WithVersion("1.0.0")
	root := b.AddNode("root", action.NoOpID, nil)
	left := b.AddNode("left", action.NoOpID, nil)
	right := b.AddNode("right", action.NoOpID, nil)
	join := b.AddNode("join", action.NoOpID, nil)
	b.Connect(root, left, workflow.Always())
	b.Connect(root, right, workflow.Always())
	b.Connect(left, join, workflow.Always())
	b.Connect(right, join, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	v := workflow.NewValidator()
	require.NoError(t, v.Validate(def))
	order, err := v.TopologicalSort(def)
	require.NoError(t, err)

	assert.Equal(t, 3, countLevels(def, order))
}

func TestCountLevelsSingleNode(t *testing.T) {
	b := workflow.NewBuilder("solo").WithVersion("1.0.0")
	b.AddNode("only", action.NoOpID, nil)
	def, err := b.Build()
	require.NoError(t, err)

	v := workflow.NewValidator()
	order, err := v.TopologicalSort(def)
	require.NoError(t, err)

	assert.Equal(t, 1, countLevels(def, order))
}
