package workflow

import "github.com/vanyastaff/nebula-sub011/internal/types"

// EdgeConditionType discriminates connection conditions.
type EdgeConditionType string

const (
	// ConditionAlways satisfies the edge on any terminal outcome of the
	// source node, success or failure.
	ConditionAlways EdgeConditionType = "always"

	// ConditionExpression evaluates an expression against the source
	// node's output; the edge is satisfied when it is truthy. Only
	// applies when the source completed.
	ConditionExpression EdgeConditionType = "expression"

	// ConditionOnResult satisfies the edge when the source completed,
	// optionally narrowed by a matcher expression on the output.
	ConditionOnResult EdgeConditionType = "on_result"

	// ConditionOnError satisfies the edge when the source failed,
	// optionally narrowed by a matcher against the error code.
	ConditionOnError EdgeConditionType = "on_error"
)

// EdgeCondition gates a connection. The zero value normalizes to Always
// so documents may omit the condition entirely.
type EdgeCondition struct {
	Type       EdgeConditionType `json:"type,omitempty" yaml:"type,omitempty"`
	Expression string            `json:"expression,omitempty" yaml:"expression,omitempty"`
	Matcher    string            `json:"matcher,omitempty" yaml:"matcher,omitempty"`
}

// Always builds an unconditional edge.
func Always() EdgeCondition { return EdgeCondition{Type: ConditionAlways} }

// WhenExpression builds an expression-gated edge.
func WhenExpression(expr string) EdgeCondition {
	return EdgeCondition{Type: ConditionExpression, Expression: expr}
}

// OnResult builds a success edge; matcher narrows by output when set.
func OnResult(matcher string) EdgeCondition {
	return EdgeCondition{Type: ConditionOnResult, Matcher: matcher}
}

// OnError builds a failure edge; matcher narrows by error code when set.
func OnError(matcher string) EdgeCondition {
	return EdgeCondition{Type: ConditionOnError, Matcher: matcher}
}

// Normalized maps the zero value to Always.
func (c EdgeCondition) Normalized() EdgeCondition {
	if c.Type == "" {
		return Always()
	}
	return c
}

// Validate checks the condition's shape.
func (c EdgeCondition) Validate() error {
	switch c.Normalized().Type {
	case ConditionAlways, ConditionOnResult, ConditionOnError:
		return nil
	case ConditionExpression:
		if c.Expression == "" {
			return types.NewError(types.WORKFLOW_INVALID, "expression condition has no expression")
		}
		return nil
	default:
		return types.NewErrorf(types.WORKFLOW_INVALID, "unknown edge condition type %q", c.Type)
	}
}
