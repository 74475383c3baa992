package parameter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// FieldError records a single validation failure against one parameter.
type FieldError struct {
	Key    types.Key `json:"key"`
	Reason string    `json:"reason"`
}

// ValidationErrors aggregates every violation found while validating a
// value set against a collection. Callers surface it as a
// SCHEMA_VALIDATION error naming all offending parameters at once.
type ValidationErrors struct {
	Errors []FieldError
}

// Error implements the error interface, listing every offending field.
func (e *ValidationErrors) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Key, fe.Reason)
	}
	return fmt.Sprintf("schema validation failed (%d): %s", len(e.Errors), strings.Join(parts, "; "))
}

// Is lets errors.Is match a ValidationErrors against the SCHEMA_VALIDATION
// code.
func (e *ValidationErrors) Is(target error) bool {
	return types.CodeOf(target) == types.SCHEMA_VALIDATION
}

// Collection is an ordered parameter schema indexed by key.
type Collection struct {
	params []*Parameter
	index  map[types.Key]*Parameter
}

// NewCollection builds a collection, rejecting duplicate keys and invalid
// parameters.
func NewCollection(params ...*Parameter) (*Collection, error) {
	c := &Collection{
		params: make([]*Parameter, 0, len(params)),
		index:  make(map[types.Key]*Parameter, len(params)),
	}
	for _, p := range params {
		checked, err := New(*p)
		if err != nil {
			return nil, err
		}
		if _, dup := c.index[checked.Key]; dup {
			return nil, types.NewErrorf(types.VALIDATION_FAILED, "duplicate parameter key %q", checked.Key)
		}
		c.params = append(c.params, checked)
		c.index[checked.Key] = checked
	}
	return c, nil
}

// Get looks up a parameter by key.
func (c *Collection) Get(key types.Key) (*Parameter, bool) {
	p, ok := c.index[key]
	return p, ok
}

// Parameters returns the schema's parameters in declaration order.
func (c *Collection) Parameters() []*Parameter {
	out := make([]*Parameter, len(c.params))
	copy(out, c.params)
	return out
}

// Len returns the number of parameters in the collection.
func (c *Collection) Len() int { return len(c.params) }

// Validate checks the supplied values against every parameter in the
// schema, collecting all errors rather than stopping at the first.
// Parameters whose display condition evaluates to hidden are skipped
// entirely. Unknown keys in values are reported as violations.
func (c *Collection) Validate(values Values) error {
	var collected []FieldError

	for _, p := range c.params {
		if !p.ShouldDisplay(values) {
			continue
		}

		v, ok := values.Get(p.Key)
		if !ok {
			if p.Default != nil {
				continue
			}
			v = value.Null()
		}

		if err := p.ValidateValue(v, values); err != nil {
			collected = append(collected, FieldError{Key: p.Key, Reason: reasonOf(err)})
		}
	}

	for key := range values {
		if _, known := c.index[key]; !known {
			collected = append(collected, FieldError{Key: key, Reason: "unknown parameter"})
		}
	}

	if len(collected) > 0 {
		return &ValidationErrors{Errors: collected}
	}
	return nil
}

// Resolve returns the effective values for the schema: supplied values for
// displayed parameters, falling back to defaults. Hidden parameters are
// omitted.
func (c *Collection) Resolve(values Values) Values {
	out := make(Values, len(c.params))
	for _, p := range c.params {
		if !p.ShouldDisplay(values) {
			continue
		}
		if v, ok := values.Get(p.Key); ok {
			out[p.Key] = v
			continue
		}
		if p.Default != nil {
			out[p.Key] = *p.Default
		}
	}
	return out
}

func reasonOf(err error) string {
	var nerr *types.Error
	if errors.As(err, &nerr) {
		return nerr.Message
	}
	return err.Error()
}
