package execution

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/events"
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// EntryType discriminates journal entries. The names match the event bus
// wire discriminators so journal projections need no translation table.
type EntryType string

const (
	EntryExecutionStarted      EntryType = "execution_started"
	EntryNodeScheduled         EntryType = "node_scheduled"
	EntryNodeStarted           EntryType = "node_started"
	EntryNodeCompleted         EntryType = "node_completed"
	EntryNodeFailed            EntryType = "node_failed"
	EntryNodeSkipped           EntryType = "node_skipped"
	EntryNodeRetrying          EntryType = "node_retrying"
	EntryExecutionCompleted    EntryType = "execution_completed"
	EntryExecutionFailed       EntryType = "execution_failed"
	EntryCancellationRequested EntryType = "cancellation_requested"
)

// Entry is one record in the append-only journal. Entries survive a JSON
// round trip unchanged, which makes the journal replayable as an audit
// source.
type Entry struct {
	Type        EntryType         `json:"type"`
	Timestamp   time.Time         `json:"timestamp"`
	ExecutionID types.ExecutionID `json:"execution_id"`
	WorkflowID  types.WorkflowID  `json:"workflow_id,omitempty"`
	NodeID      types.NodeID      `json:"node_id,omitempty"`
	Attempt     int               `json:"attempt,omitempty"`
	Status      string            `json:"status,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Error       string            `json:"error,omitempty"`
	OutputBytes int               `json:"output_bytes,omitempty"`
}

// Event projects the entry onto the bus wire format.
func (e Entry) Event() events.Event {
	return events.Event{
		Type:        events.EventType(e.Type),
		Timestamp:   e.Timestamp,
		ExecutionID: e.ExecutionID,
		NodeID:      e.NodeID,
		Attempt:     e.Attempt,
		Status:      e.Status,
		Reason:      e.Reason,
		Error:       e.Error,
		OutputBytes: e.OutputBytes,
	}
}

// Sink persists journal entries. Appends for a single execution arrive
// from one writer at a time; sinks shared across executions must
// serialize internally.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// MemorySink keeps entries in order in memory. The zero value is not
// usable; construct with NewMemorySink.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append records the entry.
func (s *MemorySink) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Types returns just the entry discriminators, in append order.
func (s *MemorySink) Types() []EntryType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryType, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Type
	}
	return out
}

// JSONLinesSink appends one JSON document per line to a writer.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink wraps the writer. The caller owns closing it.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// Append writes the entry as a single line.
func (s *JSONLinesSink) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(entry); err != nil {
		return types.WrapError(types.SERIALIZATION_FAILED, "appending journal entry", err)
	}
	return nil
}

// MultiSink fans appends out to several sinks, failing on the first
// error.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, entry Entry) error {
	for _, s := range m {
		if err := s.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
