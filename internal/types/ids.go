package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// id is the shared backing representation for all typed identifiers.
// It wraps a canonical UUID string and provides validation and JSON
// serialization. The exported wrappers (WorkflowID, NodeID, ...) are
// distinct types so a NodeID can never be passed where an ExecutionID
// is expected.
type id string

func newID() id {
	return id(uuid.New().String())
}

func parseID(s string) (id, error) {
	if s == "" {
		return "", fmt.Errorf("id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}
	return id(parsed.String()), nil
}

func (i id) validate() error {
	if i == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if _, err := uuid.Parse(string(i)); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}
	return nil
}

func (i id) marshalJSON() ([]byte, error) {
	if i == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(i))
}

func unmarshalID(data []byte) (id, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("failed to unmarshal id: %w", err)
	}
	if s == "" {
		return "", nil
	}
	return parseID(s)
}

// WorkflowID uniquely identifies a workflow definition.
type WorkflowID string

// NewWorkflowID generates a new random WorkflowID.
func NewWorkflowID() WorkflowID { return WorkflowID(newID()) }

// ParseWorkflowID parses and validates a string as a WorkflowID.
func ParseWorkflowID(s string) (WorkflowID, error) {
	v, err := parseID(s)
	return WorkflowID(v), err
}

func (v WorkflowID) String() string  { return string(v) }
func (v WorkflowID) IsZero() bool    { return v == "" }
func (v WorkflowID) Validate() error { return id(v).validate() }

func (v WorkflowID) MarshalJSON() ([]byte, error) { return id(v).marshalJSON() }

func (v *WorkflowID) UnmarshalJSON(data []byte) error {
	parsed, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*v = WorkflowID(parsed)
	return nil
}

// NodeID uniquely identifies a node within a workflow.
type NodeID string

// NewNodeID generates a new random NodeID.
func NewNodeID() NodeID { return NodeID(newID()) }

// ParseNodeID parses and validates a string as a NodeID.
func ParseNodeID(s string) (NodeID, error) {
	v, err := parseID(s)
	return NodeID(v), err
}

func (v NodeID) String() string  { return string(v) }
func (v NodeID) IsZero() bool    { return v == "" }
func (v NodeID) Validate() error { return id(v).validate() }

func (v NodeID) MarshalJSON() ([]byte, error) { return id(v).marshalJSON() }

func (v *NodeID) UnmarshalJSON(data []byte) error {
	parsed, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*v = NodeID(parsed)
	return nil
}

// ExecutionID uniquely identifies a single run of a workflow.
type ExecutionID string

// NewExecutionID generates a new random ExecutionID.
func NewExecutionID() ExecutionID { return ExecutionID(newID()) }

// ParseExecutionID parses and validates a string as an ExecutionID.
func ParseExecutionID(s string) (ExecutionID, error) {
	v, err := parseID(s)
	return ExecutionID(v), err
}

func (v ExecutionID) String() string  { return string(v) }
func (v ExecutionID) IsZero() bool    { return v == "" }
func (v ExecutionID) Validate() error { return id(v).validate() }

func (v ExecutionID) MarshalJSON() ([]byte, error) { return id(v).marshalJSON() }

func (v *ExecutionID) UnmarshalJSON(data []byte) error {
	parsed, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*v = ExecutionID(parsed)
	return nil
}

// ActionID uniquely identifies a registered action implementation.
type ActionID string

// NewActionID generates a new random ActionID.
func NewActionID() ActionID { return ActionID(newID()) }

// ParseActionID parses and validates a string as an ActionID.
func ParseActionID(s string) (ActionID, error) {
	v, err := parseID(s)
	return ActionID(v), err
}

func (v ActionID) String() string  { return string(v) }
func (v ActionID) IsZero() bool    { return v == "" }
func (v ActionID) Validate() error { return id(v).validate() }

func (v ActionID) MarshalJSON() ([]byte, error) { return id(v).marshalJSON() }

func (v *ActionID) UnmarshalJSON(data []byte) error {
	parsed, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*v = ActionID(parsed)
	return nil
}

// CredentialID uniquely identifies a stored credential.
type CredentialID string

// NewCredentialID generates a new random CredentialID.
func NewCredentialID() CredentialID { return CredentialID(newID()) }

// ParseCredentialID parses and validates a string as a CredentialID.
func ParseCredentialID(s string) (CredentialID, error) {
	v, err := parseID(s)
	return CredentialID(v), err
}

func (v CredentialID) String() string  { return string(v) }
func (v CredentialID) IsZero() bool    { return v == "" }
func (v CredentialID) Validate() error { return id(v).validate() }

func (v CredentialID) MarshalJSON() ([]byte, error) { return id(v).marshalJSON() }

func (v *CredentialID) UnmarshalJSON(data []byte) error {
	parsed, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*v = CredentialID(parsed)
	return nil
}
