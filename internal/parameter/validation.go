package parameter

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/vanyastaff/nebula-sub011/internal/types"
	"github.com/vanyastaff/nebula-sub011/internal/value"
)

// Validation holds the value rules applied after a value type-checks
// against the parameter kind. Nil pointer fields mean "no bound".
type Validation struct {
	// MinLength / MaxLength bound text byte length and list element count.
	MinLength *int
	MaxLength *int

	// Min / Max bound numeric values inclusively.
	Min *float64
	Max *float64

	// Pattern is an RE2 expression text values must fully match.
	Pattern string

	// OneOf restricts the value to an explicit allow list.
	OneOf []value.Value

	patternOnce sync.Once
	patternRe   *regexp.Regexp
	patternErr  error
}

func (r *Validation) compiledPattern() (*regexp.Regexp, error) {
	r.patternOnce.Do(func() {
		if r.Pattern != "" {
			r.patternRe, r.patternErr = regexp.Compile("^(?:" + r.Pattern + ")$")
		}
	})
	return r.patternRe, r.patternErr
}

// ValidateValue checks a supplied value against the parameter: kind
// type-check, required/empty handling, then the validation rules. The
// supplied sibling values are accepted for signature symmetry with
// ShouldDisplay; rules themselves only inspect the value.
func (p *Parameter) ValidateValue(v value.Value, _ Values) error {
	if isEmpty(v) {
		if p.Required {
			return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q is required", p.Key)
		}
		return nil
	}

	if !p.acceptsKind(v.Kind()) {
		return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: %s value does not match kind %s", p.Key, v.Kind(), p.Kind)
	}

	if p.Kind == KindDateTime && p.Required && temporalZero(v) {
		return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q is required", p.Key)
	}

	if p.Kind == KindSelect || p.Kind == KindRadio {
		if err := p.validateChoice(v); err != nil {
			return err
		}
	}

	if p.Kind == KindList {
		if err := p.validateListItems(v); err != nil {
			return err
		}
	}

	return p.applyRules(v)
}

func (p *Parameter) validateChoice(v value.Value) error {
	opts := p.Options
	if opts == nil {
		return nil
	}
	for _, choice := range opts.Choices {
		if v.Equal(choice.Value) {
			return nil
		}
	}
	if opts.AllowOther {
		return nil
	}
	return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: value is not one of the configured choices", p.Key)
}

func (p *Parameter) validateListItems(v value.Value) error {
	n, err := v.Len()
	if err != nil {
		return types.WrapError(types.VALIDATION_FAILED, fmt.Sprintf("parameter %q", p.Key), err)
	}
	if p.Options != nil && p.Options.MaxItems > 0 && n > p.Options.MaxItems {
		return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: %d items exceeds max_items %d", p.Key, n, p.Options.MaxItems)
	}
	// Lists with a single child descriptor validate each element against it.
	if len(p.Children) == 1 {
		elems, err := v.AsArray()
		if err != nil {
			return types.WrapError(types.VALIDATION_FAILED, fmt.Sprintf("parameter %q", p.Key), err)
		}
		for i, elem := range elems {
			if err := p.Children[0].ValidateValue(elem, nil); err != nil {
				return types.WrapError(types.VALIDATION_FAILED, fmt.Sprintf("parameter %q item %d", p.Key, i), err)
			}
		}
	}
	return nil
}

func (p *Parameter) applyRules(v value.Value) error {
	rules := p.Validation
	if rules == nil {
		return nil
	}

	if rules.MinLength != nil || rules.MaxLength != nil {
		n, err := v.Len()
		if err == nil {
			if rules.MinLength != nil && n < *rules.MinLength {
				return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: length %d below minimum %d", p.Key, n, *rules.MinLength)
			}
			if rules.MaxLength != nil && n > *rules.MaxLength {
				return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: length %d above maximum %d", p.Key, n, *rules.MaxLength)
			}
		}
	}

	if rules.Min != nil || rules.Max != nil {
		if f, err := v.AsFloat(); err == nil {
			if rules.Min != nil && f < *rules.Min {
				return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: %g below minimum %g", p.Key, f, *rules.Min)
			}
			if rules.Max != nil && f > *rules.Max {
				return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: %g above maximum %g", p.Key, f, *rules.Max)
			}
		}
	}

	if rules.Pattern != "" {
		if s, err := v.AsText(); err == nil {
			re, reErr := rules.compiledPattern()
			if reErr != nil {
				return types.WrapError(types.VALIDATION_FAILED, fmt.Sprintf("parameter %q: invalid pattern", p.Key), reErr)
			}
			if !re.MatchString(s) {
				return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: value does not match pattern", p.Key)
			}
		}
	}

	if len(rules.OneOf) > 0 {
		matched := false
		for _, candidate := range rules.OneOf {
			if v.Equal(candidate) {
				matched = true
				break
			}
		}
		if !matched {
			return types.NewErrorf(types.VALIDATION_FAILED, "parameter %q: value is not in the allowed set", p.Key)
		}
	}

	return nil
}
