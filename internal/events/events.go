// Package events fans execution lifecycle events out to subscribers.
// Delivery is best-effort: sends never block the producer, and lagging
// subscribers drop events rather than slow anyone else down. The journal,
// not the bus, is the audit source of truth.
package events

import (
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// EventType discriminates lifecycle events on the wire. Consumers should
// ignore unknown discriminators.
type EventType string

const (
	EventExecutionStarted      EventType = "execution_started"
	EventNodeScheduled         EventType = "node_scheduled"
	EventNodeStarted           EventType = "node_started"
	EventNodeCompleted         EventType = "node_completed"
	EventNodeFailed            EventType = "node_failed"
	EventNodeSkipped           EventType = "node_skipped"
	EventNodeRetrying          EventType = "node_retrying"
	EventExecutionCompleted    EventType = "execution_completed"
	EventExecutionFailed       EventType = "execution_failed"
	EventCancellationRequested EventType = "cancellation_requested"
)

// Event is a fire-and-forget projection of a journal entry. The JSON
// form carries the discriminator under "event" and an RFC 3339
// timestamp.
type Event struct {
	Type        EventType         `json:"event"`
	Timestamp   time.Time         `json:"timestamp"`
	ExecutionID types.ExecutionID `json:"execution_id"`
	NodeID      types.NodeID      `json:"node_id,omitempty"`
	Attempt     int               `json:"attempt,omitempty"`
	Status      string            `json:"status,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Error       string            `json:"error,omitempty"`
	OutputBytes int               `json:"output_bytes,omitempty"`
}

// Filter narrows a subscription. Zero-value fields do not constrain.
type Filter struct {
	Types       []EventType
	ExecutionID types.ExecutionID
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(event Event) bool {
	if !f.ExecutionID.IsZero() && f.ExecutionID != event.ExecutionID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
