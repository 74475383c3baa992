package value

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// AsBool extracts a boolean, failing TYPE_MISMATCH on any other kind.
func (v Value) AsBool() (bool, error) {
	if v.Kind() != KindBool {
		return false, conversionMismatch(v, KindBool)
	}
	return v.b, nil
}

// AsInt extracts an int64. Floats convert only when they carry an exact
// integral value within int64 range; out-of-range fails OUT_OF_RANGE.
func (v Value) AsInt() (int64, error) {
	switch v.Kind() {
	case KindInteger:
		return v.i, nil
	case KindFloat:
		if v.f != math.Trunc(v.f) || math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return 0, types.NewErrorf(types.TYPE_MISMATCH, "float %g is not integral", v.f)
		}
		if v.f < math.MinInt64 || v.f >= math.MaxInt64 {
			return 0, types.NewErrorf(types.OUT_OF_RANGE, "float %g overflows int64", v.f)
		}
		return int64(v.f), nil
	}
	return 0, conversionMismatch(v, KindInteger)
}

// AsFloat extracts a float64, promoting integers.
func (v Value) AsFloat() (float64, error) {
	switch v.Kind() {
	case KindFloat:
		return v.f, nil
	case KindInteger:
		return float64(v.i), nil
	}
	return 0, conversionMismatch(v, KindFloat)
}

// AsText extracts the text content of a Text value.
func (v Value) AsText() (string, error) {
	if v.Kind() != KindText {
		return "", conversionMismatch(v, KindText)
	}
	return v.s, nil
}

// AsBytes extracts a copy of a Bytes value's content.
func (v Value) AsBytes() ([]byte, error) {
	if v.Kind() != KindBytes {
		return nil, conversionMismatch(v, KindBytes)
	}
	out := make([]byte, len(v.bs))
	copy(out, v.bs)
	return out, nil
}

// AsArray extracts a copy of the element slice. Elements are shared.
func (v Value) AsArray() ([]Value, error) {
	if v.Kind() != KindArray {
		return nil, conversionMismatch(v, KindArray)
	}
	out := make([]Value, len(v.arr))
	copy(out, v.arr)
	return out, nil
}

// AsObject extracts a copy of the entry map. Values are shared.
func (v Value) AsObject() (map[string]Value, error) {
	if v.Kind() != KindObject {
		return nil, conversionMismatch(v, KindObject)
	}
	out := make(map[string]Value, len(v.obj))
	for k, e := range v.obj {
		out[k] = e
	}
	return out, nil
}

// AsTime extracts the timestamp of any temporal point kind.
func (v Value) AsTime() (time.Time, error) {
	if !isTemporalPoint(v.Kind()) {
		return time.Time{}, conversionMismatch(v, KindDateTime)
	}
	return v.t, nil
}

// AsDuration extracts a Duration value.
func (v Value) AsDuration() (time.Duration, error) {
	if v.Kind() != KindDuration {
		return 0, conversionMismatch(v, KindDuration)
	}
	return v.d, nil
}

// AsDecimal extracts a Decimal value, promoting integers exactly.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch v.Kind() {
	case KindDecimal:
		return v.dec, nil
	case KindInteger:
		return decimal.NewFromInt(v.i), nil
	}
	return decimal.Decimal{}, conversionMismatch(v, KindDecimal)
}

func conversionMismatch(v Value, want Kind) error {
	return types.NewErrorf(types.TYPE_MISMATCH, "cannot read %s as %s", v.Kind(), want)
}

// FromAny converts a dynamically typed Go value (as produced by JSON or
// YAML decoding) into a Value, applying the configured limits. Integers
// decoded as float64 by encoding/json stay floats; use FromJSONNumber
// callers when integer fidelity matters.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case string:
		return Text(x)
	case []byte:
		return Bytes(x)
	case time.Time:
		return DateTime(x), nil
	case time.Duration:
		return Duration(x), nil
	case decimal.Decimal:
		return Decimal(x), nil
	case []any:
		elems := make([]Value, 0, len(x))
		for _, e := range x {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, ev)
		}
		return Array(elems)
	case map[string]any:
		entries := make(map[string]Value, len(x))
		for k, e := range x {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			entries[k] = ev
		}
		return Object(entries)
	case Value:
		return x, nil
	}
	return Value{}, types.NewErrorf(types.TYPE_MISMATCH, "unsupported host type %T", raw)
}

// ToAny converts a Value into plain Go data suitable for JSON encoding and
// the expression evaluator. Bytes become []byte, temporal kinds become
// time.Time / time.Duration, Decimal becomes its string form to avoid
// silent precision loss.
func (v Value) ToAny() any {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBytes:
		out := make([]byte, len(v.bs))
		copy(out, v.bs)
		return out
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.ToAny()
		}
		return out
	case KindTime, KindDate, KindDateTime:
		return v.t
	case KindDuration:
		return v.d
	case KindDecimal:
		return v.dec.String()
	}
	return nil
}
