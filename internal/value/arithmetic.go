package value

import (
	"math"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Add returns v + other.
//
// Numeric rules: (Integer, Integer) stays Integer with overflow checking;
// any Integer/Float mix promotes to Float. (Text, Text) concatenates,
// re-checking the string limit. (Decimal, Decimal) adds exactly.
func (v Value) Add(other Value) (Value, error) {
	switch {
	case v.Kind() == KindInteger && other.Kind() == KindInteger:
		sum := v.i + other.i
		// Overflow iff operands share a sign and the result's sign flipped.
		if (v.i > 0 && other.i > 0 && sum < 0) || (v.i < 0 && other.i < 0 && sum >= 0) {
			return Value{}, types.NewErrorf(types.ARITHMETIC_OVERFLOW, "%d + %d overflows int64", v.i, other.i)
		}
		return Int(sum), nil

	case v.Kind().IsNumeric() && other.Kind().IsNumeric():
		return Float(v.asFloat() + other.asFloat()), nil

	case v.Kind() == KindText && other.Kind() == KindText:
		if limit := CurrentLimits().MaxStringBytes; len(v.s)+len(other.s) > limit {
			return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "concatenation of %d bytes exceeds limit %d", len(v.s)+len(other.s), limit)
		}
		return Value{kind: KindText, s: v.s + other.s}, nil

	case v.Kind() == KindDecimal && other.Kind() == KindDecimal:
		return Decimal(v.dec.Add(other.dec)), nil
	}
	return Value{}, typeMismatch("add", v, other)
}

// Sub returns v − other under the numeric promotion rules of Add.
func (v Value) Sub(other Value) (Value, error) {
	switch {
	case v.Kind() == KindInteger && other.Kind() == KindInteger:
		diff := v.i - other.i
		if (v.i >= 0 && other.i < 0 && diff < 0) || (v.i < 0 && other.i > 0 && diff >= 0) {
			return Value{}, types.NewErrorf(types.ARITHMETIC_OVERFLOW, "%d - %d overflows int64", v.i, other.i)
		}
		return Int(diff), nil

	case v.Kind().IsNumeric() && other.Kind().IsNumeric():
		return Float(v.asFloat() - other.asFloat()), nil

	case v.Kind() == KindDecimal && other.Kind() == KindDecimal:
		return Decimal(v.dec.Sub(other.dec)), nil
	}
	return Value{}, typeMismatch("sub", v, other)
}

// Mul returns v × other under the numeric promotion rules of Add.
func (v Value) Mul(other Value) (Value, error) {
	switch {
	case v.Kind() == KindInteger && other.Kind() == KindInteger:
		if v.i != 0 && other.i != 0 {
			prod := v.i * other.i
			if prod/other.i != v.i || (v.i == -1 && other.i == math.MinInt64) || (other.i == -1 && v.i == math.MinInt64) {
				return Value{}, types.NewErrorf(types.ARITHMETIC_OVERFLOW, "%d * %d overflows int64", v.i, other.i)
			}
			return Int(prod), nil
		}
		return Int(0), nil

	case v.Kind().IsNumeric() && other.Kind().IsNumeric():
		return Float(v.asFloat() * other.asFloat()), nil

	case v.Kind() == KindDecimal && other.Kind() == KindDecimal:
		return Decimal(v.dec.Mul(other.dec)), nil
	}
	return Value{}, typeMismatch("mul", v, other)
}

// Div returns v ÷ other. Integer division truncates toward zero. Division
// by an Integer zero, Float zero or Decimal zero fails DIVISION_BY_ZERO.
func (v Value) Div(other Value) (Value, error) {
	switch {
	case v.Kind() == KindInteger && other.Kind() == KindInteger:
		if other.i == 0 {
			return Value{}, types.NewError(types.DIVISION_BY_ZERO, "integer division by zero")
		}
		if v.i == math.MinInt64 && other.i == -1 {
			return Value{}, types.NewErrorf(types.ARITHMETIC_OVERFLOW, "%d / %d overflows int64", v.i, other.i)
		}
		return Int(v.i / other.i), nil

	case v.Kind().IsNumeric() && other.Kind().IsNumeric():
		if other.asFloat() == 0 {
			return Value{}, types.NewError(types.DIVISION_BY_ZERO, "float division by zero")
		}
		return Float(v.asFloat() / other.asFloat()), nil

	case v.Kind() == KindDecimal && other.Kind() == KindDecimal:
		if other.dec.IsZero() {
			return Value{}, types.NewError(types.DIVISION_BY_ZERO, "decimal division by zero")
		}
		return Decimal(v.dec.Div(other.dec)), nil
	}
	return Value{}, typeMismatch("div", v, other)
}

// Rem returns the remainder of v ÷ other for integers, or math.Mod for
// mixed numeric operands.
func (v Value) Rem(other Value) (Value, error) {
	switch {
	case v.Kind() == KindInteger && other.Kind() == KindInteger:
		if other.i == 0 {
			return Value{}, types.NewError(types.DIVISION_BY_ZERO, "integer remainder by zero")
		}
		if v.i == math.MinInt64 && other.i == -1 {
			return Int(0), nil
		}
		return Int(v.i % other.i), nil

	case v.Kind().IsNumeric() && other.Kind().IsNumeric():
		if other.asFloat() == 0 {
			return Value{}, types.NewError(types.DIVISION_BY_ZERO, "float remainder by zero")
		}
		return Float(math.Mod(v.asFloat(), other.asFloat())), nil
	}
	return Value{}, typeMismatch("rem", v, other)
}

// asFloat reads a numeric value as float64. Callers must have checked
// IsNumeric.
func (v Value) asFloat() float64 {
	if v.Kind() == KindInteger {
		return float64(v.i)
	}
	return v.f
}

func typeMismatch(op string, a, b Value) error {
	return types.NewErrorf(types.TYPE_MISMATCH, "%s is not defined for (%s, %s)", op, a.Kind(), b.Kind())
}
