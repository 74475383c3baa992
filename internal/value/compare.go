package value

import (
	"bytes"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// CanCompare reports whether values of kinds a and b have a defined
// ordering. Numeric kinds promote to a common class, Null compares with
// anything, temporal point kinds (time/date/datetime) compare with each
// other, and the rest only within their own kind.
func CanCompare(a, b Kind) bool {
	switch {
	case a == KindNull || b == KindNull:
		return true
	case a.IsNumeric() && b.IsNumeric():
		return true
	case isTemporalPoint(a) && isTemporalPoint(b):
		return true
	case a == b:
		switch a {
		case KindText, KindBytes, KindBool, KindDuration, KindDecimal:
			return true
		}
		return false
	}
	return false
}

func isTemporalPoint(k Kind) bool {
	return k == KindTime || k == KindDate || k == KindDateTime
}

// Compare orders v against other: -1, 0 or +1. Null sorts before every
// non-null value. Fails NOT_COMPARABLE when CanCompare does not hold for
// the two kinds.
func (v Value) Compare(other Value) (int, error) {
	a, b := v.Kind(), other.Kind()
	if !CanCompare(a, b) {
		return 0, types.NewErrorf(types.NOT_COMPARABLE, "cannot compare %s with %s", a, b)
	}

	switch {
	case a == KindNull && b == KindNull:
		return 0, nil
	case a == KindNull:
		return -1, nil
	case b == KindNull:
		return 1, nil

	case a.IsNumeric() && b.IsNumeric():
		if a == KindInteger && b == KindInteger {
			return compareOrdered(v.i, other.i), nil
		}
		return compareOrdered(v.asFloat(), other.asFloat()), nil

	case isTemporalPoint(a) && isTemporalPoint(b):
		switch {
		case v.t.Before(other.t):
			return -1, nil
		case v.t.After(other.t):
			return 1, nil
		}
		return 0, nil
	}

	switch a {
	case KindText:
		return compareOrdered(v.s, other.s), nil
	case KindBytes:
		return bytes.Compare(v.bs, other.bs), nil
	case KindBool:
		switch {
		case v.b == other.b:
			return 0, nil
		case other.b:
			return -1, nil
		}
		return 1, nil
	case KindDuration:
		return compareOrdered(v.d, other.d), nil
	case KindDecimal:
		return v.dec.Cmp(other.dec), nil
	}
	return 0, types.NewErrorf(types.NOT_COMPARABLE, "cannot compare %s with %s", a, b)
}

// Lt reports v < other under Compare semantics.
func (v Value) Lt(other Value) (bool, error) {
	c, err := v.Compare(other)
	return c < 0, err
}

// Le reports v <= other under Compare semantics.
func (v Value) Le(other Value) (bool, error) {
	c, err := v.Compare(other)
	return c <= 0, err
}

// Gt reports v > other under Compare semantics.
func (v Value) Gt(other Value) (bool, error) {
	c, err := v.Compare(other)
	return c > 0, err
}

// Ge reports v >= other under Compare semantics.
func (v Value) Ge(other Value) (bool, error) {
	c, err := v.Compare(other)
	return c >= 0, err
}

func compareOrdered[T interface {
	~int | ~int64 | ~float64 | ~string
}](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
