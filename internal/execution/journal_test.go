package execution

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/events"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

func sampleEntries(t *testing.T) []Entry {
	t.Helper()
	execID := types.NewExecutionID()
	nodeID := types.NewNodeID()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return []Entry{
		{Type: EntryExecutionStarted, Timestamp: ts, ExecutionID: execID, WorkflowID: types.NewWorkflowID()},
		{Type: EntryNodeScheduled, Timestamp: ts, ExecutionID: execID, NodeID: nodeID},
		{Type: EntryNodeStarted, Timestamp: ts, ExecutionID: execID, NodeID: nodeID, Attempt: 0},
		{Type: EntryNodeRetrying, Timestamp: ts, ExecutionID: execID, NodeID: nodeID, Attempt: 2, Error: "[TIMEOUT] deadline exceeded"},
		{Type: EntryNodeCompleted, Timestamp: ts, ExecutionID: execID, NodeID: nodeID, Attempt: 2, OutputBytes: 42},
		{Type: EntryNodeSkipped, Timestamp: ts, ExecutionID: execID, NodeID: types.NewNodeID(), Reason: "no satisfied inbound edge"},
		{Type: EntryExecutionCompleted, Timestamp: ts, ExecutionID: execID, Status: "completed"},
	}
}

func TestEntryJSONRoundTripIdentity(t *testing.T) {
	for _, entry := range sampleEntries(t) {
		data, err := json.Marshal(entry)
		require.NoError(t, err)

		var decoded Entry
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, entry, decoded, "entry %s must survive a JSON round trip", entry.Type)
	}
}

func TestMemorySinkPreservesOrder(t *testing.T) {
	sink := NewMemorySink()
	entries := sampleEntries(t)
	for _, e := range entries {
		require.NoError(t, sink.Append(context.Background(), e))
	}
	assert.Equal(t, entries, sink.Entries())
	assert.Equal(t, []EntryType{
		EntryExecutionStarted, EntryNodeScheduled, EntryNodeStarted,
		EntryNodeRetrying, EntryNodeCompleted, EntryNodeSkipped,
		EntryExecutionCompleted,
	}, sink.Types())
}

func TestJSONLinesSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)
	entries := sampleEntries(t)
	for _, e := range entries {
		require.NoError(t, sink.Append(context.Background(), e))
	}

	scanner := bufio.NewScanner(&buf)
	var decoded []Entry
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		decoded = append(decoded, e)
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, entries, decoded)
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	sink := MultiSink{a, b}
	entry := sampleEntries(t)[0]
	require.NoError(t, sink.Append(context.Background(), entry))
	assert.Equal(t, []Entry{entry}, a.Entries())
	assert.Equal(t, []Entry{entry}, b.Entries())
}

func TestEntryEventProjection(t *testing.T) {
	entry := Entry{
		Type:        EntryNodeFailed,
		Timestamp:   time.Now().UTC(),
		ExecutionID: types.NewExecutionID(),
		NodeID:      types.NewNodeID(),
		Attempt:     1,
		Error:       "[CONNECTOR_FAILED] upstream down",
	}
	event := entry.Event()
	assert.Equal(t, events.EventNodeFailed, event.Type)
	assert.Equal(t, entry.ExecutionID, event.ExecutionID)
	assert.Equal(t, entry.NodeID, event.NodeID)
	assert.Equal(t, entry.Attempt, event.Attempt)
	assert.Equal(t, entry.Error, event.Error)
}
