package workflow

import (
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// ParamValueType discriminates the ways a node parameter obtains its
// value.
type ParamValueType string

const (
	// ParamLiteral is a value used as-is.
	ParamLiteral ParamValueType = "literal"

	// ParamExpression is evaluated against workflow variables and
	// predecessor outputs.
	ParamExpression ParamValueType = "expression"

	// ParamTemplate is a string with interpolated expressions.
	ParamTemplate ParamValueType = "template"

	// ParamReference looks up a predecessor node's recorded output and
	// applies a path accessor.
	ParamReference ParamValueType = "reference"
)

// ParamValue is the tagged union carried in node definitions. Exactly
// the fields of the active variant are set.
type ParamValue struct {
	Type       ParamValueType `json:"type" yaml:"type"`
	Value      any            `json:"value,omitempty" yaml:"value,omitempty"`
	Expression string         `json:"expression,omitempty" yaml:"expression,omitempty"`
	Template   string         `json:"template,omitempty" yaml:"template,omitempty"`
	NodeID     types.NodeID   `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	OutputPath string         `json:"output_path,omitempty" yaml:"output_path,omitempty"`
}

// Literal wraps a fixed value.
func Literal(v any) ParamValue {
	return ParamValue{Type: ParamLiteral, Value: v}
}

// Expression wraps an expression string.
func Expression(expr string) ParamValue {
	return ParamValue{Type: ParamExpression, Expression: expr}
}

// Template wraps a template string.
func Template(tmpl string) ParamValue {
	return ParamValue{Type: ParamTemplate, Template: tmpl}
}

// Reference points at a predecessor's output. The path uses dot fields
// and [n] indexes ("body.items[0].id"); an empty path selects the whole
// output.
func Reference(nodeID types.NodeID, outputPath string) ParamValue {
	return ParamValue{Type: ParamReference, NodeID: nodeID, OutputPath: outputPath}
}

// Validate checks the variant's shape.
func (p ParamValue) Validate() error {
	switch p.Type {
	case ParamLiteral:
		return nil
	case ParamExpression:
		if p.Expression == "" {
			return types.NewError(types.WORKFLOW_INVALID, "expression parameter has no expression")
		}
	case ParamTemplate:
		if p.Template == "" {
			return types.NewError(types.WORKFLOW_INVALID, "template parameter has no template")
		}
	case ParamReference:
		if p.NodeID.IsZero() {
			return types.NewError(types.WORKFLOW_INVALID, "reference parameter has no node_id")
		}
	default:
		return types.NewErrorf(types.WORKFLOW_INVALID, "unknown parameter value type %q", p.Type)
	}
	return nil
}
