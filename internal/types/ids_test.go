package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflowID(t *testing.T) {
	id := NewWorkflowID()
	assert.False(t, id.IsZero())
	require.NoError(t, id.Validate())

	// Two generated IDs must differ.
	assert.NotEqual(t, id, NewWorkflowID())
}

func TestParseIDRoundTrip(t *testing.T) {
	id := NewExecutionID()

	parsed, err := ParseExecutionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseIDInvalid(t *testing.T) {
	_, err := ParseNodeID("not-a-uuid")
	assert.Error(t, err)

	_, err = ParseCredentialID("")
	assert.Error(t, err)
}

func TestIDJSONRoundTrip(t *testing.T) {
	id := NewActionID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded ActionID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIDJSONZero(t *testing.T) {
	var id WorkflowID
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestIDJSONInvalid(t *testing.T) {
	var id NodeID
	err := json.Unmarshal([]byte(`"garbage"`), &id)
	assert.Error(t, err)
}
