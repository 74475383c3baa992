// Package parameter implements typed, validated configuration descriptors
// for nodes and credential schemas. A Parameter describes one configurable
// input: its kind, default, kind-specific options, display condition and
// validation rules. Collections group parameters into a schema that can
// validate a full set of supplied values, collecting every violation
// instead of stopping at the first.
package parameter

import (
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// Kind tags what a parameter accepts and how editors render it.
type Kind string

const (
	KindText     Kind = "text"
	KindNumber   Kind = "number"
	KindSecret   Kind = "secret"
	KindSelect   Kind = "select"
	KindRadio    Kind = "radio"
	KindCheckbox Kind = "checkbox"
	KindDateTime Kind = "datetime"
	KindList     Kind = "list"
	KindGroup    Kind = "group"
	KindPanel    Kind = "panel"
)

// IsCollection reports whether the kind nests child parameters.
func (k Kind) IsCollection() bool {
	return k == KindList || k == KindGroup || k == KindPanel
}

// MaxParameterDepth bounds how deep collection parameters may nest.
const MaxParameterDepth = 8

// Metadata carries the descriptive fields shared by every parameter kind.
type Metadata struct {
	// Key is the normalized identifier the value is stored under.
	Key types.Key `json:"key" yaml:"key"`

	// Name is the human-readable label.
	Name string `json:"name" yaml:"name"`

	// Description explains the parameter to a workflow author.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Required marks the parameter as mandatory when displayed.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Hint is a short inline usage hint (placeholder text).
	Hint string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// Choice is one selectable option for Select and Radio parameters.
type Choice struct {
	Value value.Value
	Label string
}

// Options carries kind-specific configuration. Only the fields relevant to
// the parameter's kind are consulted.
type Options struct {
	// Choices lists the selectable options for Select and Radio kinds.
	Choices []Choice

	// AllowOther permits free-form values alongside Choices.
	AllowOther bool

	// MaxItems bounds List lengths.
	MaxItems int
}

// Parameter is a single configuration descriptor.
type Parameter struct {
	Metadata

	// Kind selects the accepted value shape.
	Kind Kind

	// Default is applied when no value is supplied. Nil means no default.
	Default *value.Value

	// Options holds kind-specific configuration.
	Options *Options

	// Display controls conditional visibility against sibling values.
	Display *DisplayCondition

	// Validation holds the value rules applied by ValidateValue.
	Validation *Validation

	// Children are the nested parameters of Group, Panel and List kinds.
	Children []*Parameter
}

// New constructs a parameter and checks its structural invariants: the key
// must be a valid normalized key, Select/Radio need a non-empty choice list
// unless AllowOther is set, and collection nesting stays within
// MaxParameterDepth.
func New(p Parameter) (*Parameter, error) {
	if !p.Key.Valid() {
		return nil, types.NewErrorf(types.VALIDATION_FAILED, "parameter key %q is not a valid key", p.Key)
	}
	if p.Kind == KindSelect || p.Kind == KindRadio {
		noChoices := p.Options == nil || len(p.Options.Choices) == 0
		allowOther := p.Options != nil && p.Options.AllowOther
		if noChoices && !allowOther {
			return nil, types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: %s requires choices or allow_other", p.Key, p.Kind)
		}
	}
	if !p.Kind.IsCollection() && len(p.Children) > 0 {
		return nil, types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: kind %s cannot have children", p.Key, p.Kind)
	}
	if depth := p.depth(); depth > MaxParameterDepth {
		return nil, types.NewErrorf(types.VALIDATION_FAILED, "parameter %q nests %d deep, limit is %d", p.Key, depth, MaxParameterDepth)
	}
	for _, child := range p.Children {
		if _, err := New(*child); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (p *Parameter) depth() int {
	max := 0
	for _, child := range p.Children {
		if d := child.depth(); d > max {
			max = d
		}
	}
	return 1 + max
}

// acceptsKind reports whether a value of the given kind type-checks against
// the parameter kind.
func (p *Parameter) acceptsKind(k value.Kind) bool {
	switch p.Kind {
	case KindText, KindSecret:
		return k == value.KindText
	case KindNumber:
		return k == value.KindInteger || k == value.KindFloat || k == value.KindDecimal
	case KindCheckbox:
		return k == value.KindBool
	case KindDateTime:
		return k == value.KindDateTime || k == value.KindDate || k == value.KindTime
	case KindSelect, KindRadio:
		// Any scalar matching a choice; free-form text when allow_other.
		return k != value.KindArray && k != value.KindObject
	case KindList:
		return k == value.KindArray
	case KindGroup, KindPanel:
		return k == value.KindObject
	}
	return false
}

// Values maps parameter keys to supplied values.
type Values map[types.Key]value.Value

// Get returns the value for key, or the null value when absent.
func (v Values) Get(key types.Key) (value.Value, bool) {
	val, ok := v[key]
	return val, ok
}

// Merged returns a copy of v with overrides layered on top. Neither input
// is modified; callers use this for per-caller shadow overrides.
func (v Values) Merged(overrides Values) Values {
	out := make(Values, len(v)+len(overrides))
	for k, e := range v {
		out[k] = e
	}
	for k, e := range overrides {
		out[k] = e
	}
	return out
}

// isEmpty reports whether a value counts as "not provided" for required
// checks: null, empty text, empty array or empty object.
func isEmpty(v value.Value) bool {
	switch v.Kind() {
	case value.KindNull:
		return true
	case value.KindText, value.KindArray, value.KindObject:
		n, err := v.Len()
		return err == nil && n == 0
	}
	return false
}

// temporalZero reports whether a temporal value is the zero timestamp.
func temporalZero(v value.Value) bool {
	t, err := v.AsTime()
	return err == nil && t.Equal(time.Time{})
}
