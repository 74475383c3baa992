package execution

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/action"
	"github.com/vanyastaff/nebula-sub011/internal/resilience"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
	"github.com/vanyastaff/nebula-sub011/internal/workflow"
)

func registerFunc(t *testing.T, reg *action.Registry, fn func(ctx context.Context, in action.Input) (value.Value, error)) types.ActionID {
	t.Helper()
	id := types.NewActionID()
	require.NoError(t, reg.Register(action.Func{ActionID: id, Key: "test_action", Fn: fn}))
	return id
}

func okFunc(entries map[string]value.Value) func(ctx context.Context, in action.Input) (value.Value, error) {
	return func(_ context.Context, _ action.Input) (value.Value, error) {
		return value.Object(entries)
	}
}

func entryNodes(entries []Entry, typ EntryType) []types.NodeID {
	var out []types.NodeID
	for _, e := range entries {
		if e.Type == typ {
			out = append(out, e.NodeID)
		}
	}
	return out
}

func TestLinearWorkflowSuccess(t *testing.T) {
	reg := action.NewRegistry()
	actID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("linear")
	a := b.AddNode("a", actID, nil)
	bn := b.AddNode("b", actID, nil)
	c := b.AddNode("c", actID, nil)
	b.Connect(a, bn, workflow.Always())
	b.Connect(bn, c, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	sink := NewMemorySink()
	x := NewExecutor(reg, WithJournal(sink))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionCompleted, result.Status)
	for _, id := range []types.NodeID{a, bn, c} {
		require.Contains(t, result.Nodes, id)
		assert.Equal(t, NodeCompleted, result.Nodes[id].Status)
		assert.Positive(t, result.Nodes[id].OutputBytes)
	}

	assert.Equal(t, []EntryType{
		EntryExecutionStarted,
		EntryNodeScheduled, EntryNodeStarted, EntryNodeCompleted,
		EntryNodeScheduled, EntryNodeStarted, EntryNodeCompleted,
		EntryNodeScheduled, EntryNodeStarted, EntryNodeCompleted,
		EntryExecutionCompleted,
	}, sink.Types())
	assert.Equal(t, []types.NodeID{a, bn, c}, entryNodes(sink.Entries(), EntryNodeStarted))
}

func TestDiamondConditionalSkip(t *testing.T) {
	reg := action.NewRegistry()
	scoreID := registerFunc(t, reg, okFunc(map[string]value.Value{"score": value.Int(10)}))
	okID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("diamond")
	a := b.AddNode("a", scoreID, nil)
	hi := b.AddNode("hi", okID, nil)
	lo := b.AddNode("lo", okID, nil)
	join := b.AddNode("join", okID, nil)
	b.Connect(a, hi, workflow.WhenExpression("output.score > 5"))
	b.Connect(a, lo, workflow.WhenExpression("output.score > 100"))
	b.Connect(hi, join, workflow.Always())
	b.Connect(lo, join, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	sink := NewMemorySink()
	x := NewExecutor(reg, WithJournal(sink))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionCompleted, result.Status)
	assert.Equal(t, NodeCompleted, result.Nodes[a].Status)
	assert.Equal(t, NodeCompleted, result.Nodes[hi].Status)
	assert.Equal(t, NodeSkipped, result.Nodes[lo].Status)
	assert.Equal(t, "no satisfied inbound edge", result.Nodes[lo].Reason)
	assert.Equal(t, NodeCompleted, result.Nodes[join].Status)

	skipped := entryNodes(sink.Entries(), EntryNodeSkipped)
	assert.Equal(t, []types.NodeID{lo}, skipped)
}

func TestRetryThenSuccess(t *testing.T) {
	reg := action.NewRegistry()
	var calls atomic.Int32
	flakyID := registerFunc(t, reg, func(_ context.Context, _ action.Input) (value.Value, error) {
		if calls.Add(1) <= 2 {
			return value.Value{}, types.NewRetryableError(types.CONNECTOR_FAILED, "transient upstream failure")
		}
		return value.Object(map[string]value.Value{"ok": value.Bool(true)})
	})

	b := workflow.NewBuilder("flaky")
	a := b.AddNode("a", flakyID, nil)
	b.NodeRetry(a, resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   types.Duration(time.Millisecond),
	})
	def, err := b.Build()
	require.NoError(t, err)

	sink := NewMemorySink()
	x := NewExecutor(reg, WithJournal(sink))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionCompleted, result.Status)
	assert.Equal(t, NodeCompleted, result.Nodes[a].Status)
	assert.Equal(t, 2, result.Nodes[a].Attempts)
	assert.EqualValues(t, 3, calls.Load())

	var retries []Entry
	for _, e := range sink.Entries() {
		if e.Type == EntryNodeRetrying {
			retries = append(retries, e)
		}
	}
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Attempt)
	assert.Equal(t, 2, retries[1].Attempt)
}

func TestTerminalFailureAbortsRun(t *testing.T) {
	reg := action.NewRegistry()
	failID := registerFunc(t, reg, func(_ context.Context, _ action.Input) (value.Value, error) {
		return value.Value{}, types.NewError(types.NODE_FAILED, "unrecoverable")
	})
	okID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("abort")
	a := b.AddNode("a", failID, nil)
	bn := b.AddNode("b", okID, nil)
	b.Connect(a, bn, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	sink := NewMemorySink()
	x := NewExecutor(reg, WithJournal(sink))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionFailed, result.Status)
	assert.Equal(t, NodeFailed, result.Nodes[a].Status)
	assert.Equal(t, types.NODE_FAILED, types.CodeOf(result.Nodes[a].Err))
	assert.Equal(t, NodeSkipped, result.Nodes[bn].Status)
	assert.Equal(t, "execution aborted", result.Nodes[bn].Reason)

	last := sink.Entries()[len(sink.Entries())-1]
	assert.Equal(t, EntryExecutionFailed, last.Type)
	assert.Contains(t, last.Error, "NODE_FAILED")
}

func TestContinueOnErrorKeepsGoing(t *testing.T) {
	reg := action.NewRegistry()
	failID := registerFunc(t, reg, func(_ context.Context, _ action.Input) (value.Value, error) {
		return value.Value{}, types.NewError(types.NODE_FAILED, "unrecoverable")
	})
	okID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("continue")
	b.WithConfig(workflow.Config{ContinueOnError: true})
	a := b.AddNode("a", failID, nil)
	bn := b.AddNode("b", okID, nil)
	b.Connect(a, bn, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg)
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionFailed, result.Status)
	assert.Equal(t, NodeFailed, result.Nodes[a].Status)
	assert.Equal(t, NodeCompleted, result.Nodes[bn].Status)
}

func TestErrorEdgeRouting(t *testing.T) {
	reg := action.NewRegistry()
	failID := registerFunc(t, reg, func(_ context.Context, _ action.Input) (value.Value, error) {
		return value.Value{}, types.NewError(types.CONNECTOR_FAILED, "upstream down")
	})
	okID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("error-routing")
	a := b.AddNode("a", failID, nil)
	rescue := b.AddNode("rescue", okID, nil)
	happy := b.AddNode("happy", okID, nil)
	b.Connect(a, rescue, workflow.OnError("CONNECTOR_FAILED"))
	b.Connect(a, happy, workflow.OnResult(""))
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg)
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionFailed, result.Status)
	assert.Equal(t, NodeFailed, result.Nodes[a].Status)
	assert.Equal(t, NodeCompleted, result.Nodes[rescue].Status)
	assert.Equal(t, NodeSkipped, result.Nodes[happy].Status)
	assert.Equal(t, "no satisfied inbound edge", result.Nodes[happy].Reason)
}

func TestCancellationSkipsUnstartedNodes(t *testing.T) {
	reg := action.NewRegistry()
	blockID := registerFunc(t, reg, func(ctx context.Context, _ action.Input) (value.Value, error) {
		<-ctx.Done()
		return value.Value{}, ctx.Err()
	})
	okID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("cancel")
	a := b.AddNode("a", blockID, nil)
	bn := b.AddNode("b", okID, nil)
	b.Connect(a, bn, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sink := NewMemorySink()
	x := NewExecutor(reg, WithJournal(sink))
	result, err := x.Run(ctx, def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionCancelled, result.Status)
	assert.Equal(t, NodeCancelled, result.Nodes[a].Status)
	assert.Equal(t, NodeSkipped, result.Nodes[bn].Status)
	assert.Equal(t, "cancelled", result.Nodes[bn].Reason)

	var sawCancellation bool
	for _, e := range sink.Entries() {
		if e.Type == EntryCancellationRequested {
			sawCancellation = true
		}
	}
	assert.True(t, sawCancellation)
}

func TestReferenceParameterResolution(t *testing.T) {
	reg := action.NewRegistry()
	scoreID := registerFunc(t, reg, okFunc(map[string]value.Value{"score": value.Int(10)}))
	echoID := registerFunc(t, reg, func(_ context.Context, in action.Input) (value.Value, error) {
		out := make(map[string]value.Value, len(in.Parameters))
		for k, v := range in.Parameters {
			out[k.String()] = v
		}
		return value.Object(out)
	})

	b := workflow.NewBuilder("reference")
	a := b.AddNode("a", scoreID, nil)
	bn := b.AddNode("b", echoID, map[types.Key]workflow.ParamValue{
		"score": workflow.Reference(a, "score"),
		"msg":   workflow.Template("score is {{ nodes.a.output.score }}"),
		"high":  workflow.Expression("nodes.a.output.score > 5"),
	})
	b.Connect(a, bn, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg)
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, result.Status)

	out := result.Nodes[bn].Output
	score, found := out.Get("score")
	require.True(t, found)
	got, err := score.AsInt()
	require.NoError(t, err)
	assert.EqualValues(t, 10, got)

	msg, found := out.Get("msg")
	require.True(t, found)
	assert.Equal(t, value.MustText("score is 10"), msg)

	high, found := out.Get("high")
	require.True(t, found)
	assert.True(t, high.Truthy())
}

func TestMissingReferenceFailsNode(t *testing.T) {
	reg := action.NewRegistry()
	okID := registerFunc(t, reg, okFunc(map[string]value.Value{"ok": value.Bool(true)}))

	b := workflow.NewBuilder("bad-reference")
	a := b.AddNode("a", okID, nil)
	bn := b.AddNode("b", okID, map[types.Key]workflow.ParamValue{
		"input": workflow.Reference(a, "no.such.field"),
	})
	b.Connect(a, bn, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg)
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionFailed, result.Status)
	assert.Equal(t, NodeFailed, result.Nodes[bn].Status)
	assert.Equal(t, types.VARIABLE_RESOLUTION_FAILED, types.CodeOf(result.Nodes[bn].Err))
}

func TestMaxParallelNodesBound(t *testing.T) {
	reg := action.NewRegistry()
	var inFlight, peak atomic.Int32
	slowID := registerFunc(t, reg, func(ctx context.Context, _ action.Input) (value.Value, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return value.Object(map[string]value.Value{"ok": value.Bool(true)})
	})

	b := workflow.NewBuilder("fanout")
	b.WithConfig(workflow.Config{MaxParallelNodes: 2})
	root := b.AddNode("root", slowID, nil)
	for i := 0; i < 5; i++ {
		child := b.AddNode("child", slowID, nil)
		b.Connect(root, child, workflow.Always())
	}
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg)
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionCompleted, result.Status)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func registerNamedFunc(t *testing.T, reg *action.Registry, name types.Key, fn func(ctx context.Context, in action.Input) (value.Value, error)) types.ActionID {
	t.Helper()
	id := types.NewActionID()
	require.NoError(t, reg.Register(action.Func{ActionID: id, Key: name, Fn: fn}))
	return id
}

func TestServicePolicyProvidesRetry(t *testing.T) {
	reg := action.NewRegistry()
	var calls atomic.Int32
	flakyID := registerNamedFunc(t, reg, "upstream_fetch", func(_ context.Context, _ action.Input) (value.Value, error) {
		if calls.Add(1) == 1 {
			return value.Value{}, types.NewRetryableError(types.CONNECTOR_FAILED, "transient upstream failure")
		}
		return value.Object(map[string]value.Value{"ok": value.Bool(true)})
	})

	b := workflow.NewBuilder("service-policy")
	a := b.AddNode("a", flakyID, nil)
	def, err := b.Build()
	require.NoError(t, err)

	sink := NewMemorySink()
	x := NewExecutor(reg, WithJournal(sink), WithPolicies(map[types.Key]resilience.PolicyConfig{
		"upstream_fetch": {
			Retry: &resilience.RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   types.Duration(time.Millisecond),
			},
		},
	}))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionCompleted, result.Status)
	assert.Equal(t, NodeCompleted, result.Nodes[a].Status)
	assert.Equal(t, 1, result.Nodes[a].Attempts)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, []types.NodeID{a}, entryNodes(sink.Entries(), EntryNodeRetrying))
}

func TestNodeRetryWinsOverServicePolicy(t *testing.T) {
	reg := action.NewRegistry()
	var calls atomic.Int32
	failingID := registerNamedFunc(t, reg, "upstream_fetch", func(_ context.Context, _ action.Input) (value.Value, error) {
		calls.Add(1)
		return value.Value{}, types.NewRetryableError(types.CONNECTOR_FAILED, "transient upstream failure")
	})

	b := workflow.NewBuilder("precedence")
	a := b.AddNode("a", failingID, nil)
	b.NodeRetry(a, resilience.RetryConfig{MaxAttempts: 1})
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg, WithPolicies(map[types.Key]resilience.PolicyConfig{
		"upstream_fetch": {
			Retry: &resilience.RetryConfig{
				MaxAttempts: 5,
				BaseDelay:   types.Duration(time.Millisecond),
			},
		},
	}))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionFailed, result.Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestServicePolicyBreakerSharedAcrossNodes(t *testing.T) {
	reg := action.NewRegistry()
	var calls atomic.Int32
	failingID := registerNamedFunc(t, reg, "flaky_backend", func(_ context.Context, _ action.Input) (value.Value, error) {
		calls.Add(1)
		return value.Value{}, types.NewError(types.CONNECTOR_FAILED, "backend down")
	})

	b := workflow.NewBuilder("breaker")
	b.WithConfig(workflow.Config{ContinueOnError: true})
	first := b.AddNode("first", failingID, nil)
	second := b.AddNode("second", failingID, nil)
	b.Connect(first, second, workflow.Always())
	def, err := b.Build()
	require.NoError(t, err)

	x := NewExecutor(reg, WithPolicies(map[types.Key]resilience.PolicyConfig{
		"flaky_backend": {
			Breaker: &resilience.BreakerConfig{
				FailureThreshold: 1,
				ResetTimeout:     types.Duration(time.Minute),
				HalfOpenLimit:    1,
			},
		},
	}))
	result, err := x.Run(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, ExecutionFailed, result.Status)
	assert.Equal(t, NodeFailed, result.Nodes[first].Status)
	assert.Equal(t, types.CONNECTOR_FAILED, types.CodeOf(result.Nodes[first].Err))
	assert.Equal(t, NodeFailed, result.Nodes[second].Status)
	assert.Equal(t, types.CIRCUIT_BREAKER_OPEN, types.CodeOf(result.Nodes[second].Err))
	assert.EqualValues(t, 1, calls.Load())
}
