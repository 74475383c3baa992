// Package action defines the open set of node implementations a workflow
// can invoke. Concrete actions are registered by id; the execution layer
// resolves parameters, credentials and resources before calling Execute.
package action

import (
	"context"

	"github.com/vanyastaff/nebula-sub011/internal/credential"
	"github.com/vanyastaff/nebula-sub011/internal/resource"
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// Input carries everything an activation hands to an action. Parameters
// are fully resolved values; credentials are fresh access tokens; resource
// guards stay owned by the activation and must not be released here.
type Input struct {
	ExecutionID types.ExecutionID
	NodeID      types.NodeID
	Parameters  map[types.Key]value.Value
	Credentials map[types.CredentialID]*credential.AccessToken
	Resources   map[types.Key]*resource.Guard
	Variables   map[string]any
}

// Param returns a named parameter, Null when absent.
func (in Input) Param(key types.Key) value.Value {
	v, ok := in.Parameters[key]
	if !ok {
		return value.Null()
	}
	return v
}

// TextParam returns a text parameter, or the fallback when absent.
func (in Input) TextParam(key types.Key, fallback string) string {
	v, ok := in.Parameters[key]
	if !ok || v.IsNull() {
		return fallback
	}
	s, err := v.AsText()
	if err != nil {
		return fallback
	}
	return s
}

// Action is a unit of node behavior. Implementations must be safe for
// concurrent Execute calls and must honor context cancellation.
type Action interface {
	ID() types.ActionID
	Name() types.Key
	Execute(ctx context.Context, in Input) (value.Value, error)
}

// Func adapts a plain function into an Action.
type Func struct {
	ActionID types.ActionID
	Key      types.Key
	Fn       func(ctx context.Context, in Input) (value.Value, error)
}

func (f Func) ID() types.ActionID { return f.ActionID }
func (f Func) Name() types.Key    { return f.Key }

func (f Func) Execute(ctx context.Context, in Input) (value.Value, error) {
	return f.Fn(ctx, in)
}
