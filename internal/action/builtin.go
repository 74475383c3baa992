package action

import (
	"context"

	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// Well-known ids for the built-in actions, stable across deployments so
// workflow documents can reference them directly.
var (
	NoOpID      = types.ActionID("0aa35b32-6f51-4bd9-8b9a-d0f0f6b2a101")
	TransformID = types.ActionID("0aa35b32-6f51-4bd9-8b9a-d0f0f6b2a102")
	HTTPID      = types.ActionID("0aa35b32-6f51-4bd9-8b9a-d0f0f6b2a103")
)

// NewNoOp returns an action that echoes its parameters back as an object
// with an "ok" marker. Useful for wiring tests and dry runs.
func NewNoOp(id types.ActionID) Action {
	return Func{
		ActionID: id,
		Key:      "no_op",
		Fn: func(_ context.Context, in Input) (value.Value, error) {
			out := make(map[string]value.Value, len(in.Parameters)+1)
			for k, v := range in.Parameters {
				out[k.String()] = v
			}
			out["ok"] = value.Bool(true)
			return value.Object(out)
		},
	}
}

// NewTransform returns an action that reshapes its "input" object:
// entries from "set" are merged in (overwriting), keys listed in "omit"
// are dropped. A null input starts from an empty object.
func NewTransform(id types.ActionID) Action {
	return Func{
		ActionID: id,
		Key:      "transform",
		Fn: func(_ context.Context, in Input) (value.Value, error) {
			base := in.Param("input")
			if base.IsNull() {
				empty, err := value.Object(nil)
				if err != nil {
					return value.Value{}, err
				}
				base = empty
			}
			if base.Kind() != value.KindObject {
				return value.Value{}, types.NewErrorf(types.TYPE_MISMATCH,
					"transform input must be an object, got %s", base.Kind())
			}

			if set := in.Param("set"); !set.IsNull() {
				merged, err := base.Merge(set)
				if err != nil {
					return value.Value{}, err
				}
				base = merged
			}

			if omit := in.Param("omit"); !omit.IsNull() {
				names, err := omit.AsArray()
				if err != nil {
					return value.Value{}, types.WrapError(types.TYPE_MISMATCH, "transform omit must be an array", err)
				}
				entries, err := base.AsObject()
				if err != nil {
					return value.Value{}, err
				}
				for _, name := range names {
					key, err := name.AsText()
					if err != nil {
						return value.Value{}, types.WrapError(types.TYPE_MISMATCH, "transform omit entries must be text", err)
					}
					delete(entries, key)
				}
				rebuilt, err := value.Object(entries)
				if err != nil {
					return value.Value{}, err
				}
				base = rebuilt
			}
			return base, nil
		},
	}
}

// RegisterBuiltins registers the built-in actions under their well-known
// ids.
func RegisterBuiltins(r *Registry) error {
	for _, a := range []Action{
		NewNoOp(NoOpID),
		NewTransform(TransformID),
		NewHTTPAction(HTTPID),
	} {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
