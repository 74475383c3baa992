package parameter

import (
	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// PredicateOp enumerates the comparisons a display condition can apply to
// another parameter's value.
type PredicateOp string

const (
	OpEquals    PredicateOp = "equals"
	OpNotEquals PredicateOp = "not_equals"
	OpIn        PredicateOp = "in"
	OpIsSet     PredicateOp = "is_set"
	OpTruthy    PredicateOp = "truthy"
)

// Predicate is one condition over a sibling parameter's value.
type Predicate struct {
	Op      PredicateOp
	Operand value.Value   // Equals / NotEquals
	Set     []value.Value // In
}

// Matches evaluates the predicate against a value. The present flag tells
// the predicate whether the dependency was supplied at all.
func (p Predicate) Matches(v value.Value, present bool) bool {
	switch p.Op {
	case OpEquals:
		return present && v.Equal(p.Operand)
	case OpNotEquals:
		return present && !v.Equal(p.Operand)
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range p.Set {
			if v.Equal(candidate) {
				return true
			}
		}
		return false
	case OpIsSet:
		return present && !isEmpty(v)
	case OpTruthy:
		return present && v.Truthy()
	}
	return false
}

// DisplayCondition controls whether a parameter is shown given the values
// of other parameters.
//
// Semantics: hide wins. If any hide predicate matches, the parameter is
// hidden. Show predicates are conjunctive across their key set: every
// listed dependency must be present and satisfy at least one of its
// predicates. A missing dependency fails the show condition.
type DisplayCondition struct {
	Show map[types.Key][]Predicate
	Hide map[types.Key][]Predicate
}

// ShouldDisplay evaluates the parameter's display condition against the
// other supplied values. Parameters without a condition are always shown.
func (p *Parameter) ShouldDisplay(others Values) bool {
	cond := p.Display
	if cond == nil {
		return true
	}

	for key, preds := range cond.Hide {
		v, present := others.Get(key)
		for _, pred := range preds {
			if pred.Matches(v, present) {
				return false
			}
		}
	}

	for key, preds := range cond.Show {
		v, present := others.Get(key)
		if !present {
			return false
		}
		matched := false
		for _, pred := range preds {
			if pred.Matches(v, present) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}
