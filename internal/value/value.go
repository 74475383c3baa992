// Package value implements the persistent tagged union that flows between
// workflow nodes. Values are immutable: every mutating operation returns a
// new Value and leaves the receiver untouched. Variants with heavyweight
// backing (text, bytes, array, object) share their storage between copies,
// so cloning is O(1); mutations copy the spine of the affected container
// while still sharing the elements themselves.
package value

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Kind tags the variant held by a Value.
type Kind string

const (
	KindNull     Kind = "null"
	KindBool     Kind = "bool"
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindText     Kind = "text"
	KindBytes    Kind = "bytes"
	KindArray    Kind = "array"
	KindObject   Kind = "object"
	KindTime     Kind = "time"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindDuration Kind = "duration"
	KindDecimal  Kind = "decimal"
)

func (k Kind) String() string { return string(k) }

// IsNumeric reports whether the kind participates in numeric promotion.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat
}

// IsTemporal reports whether the kind carries a point or span of time.
func (k Kind) IsTemporal() bool {
	switch k {
	case KindTime, KindDate, KindDateTime, KindDuration:
		return true
	}
	return false
}

// Value is an immutable tagged union. The zero value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	bs   []byte  // treated as immutable once stored
	arr  []Value // treated as immutable once stored
	obj  map[string]Value
	t    time.Time
	d    time.Duration
	dec  decimal.Decimal
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool constructs a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int constructs an integer value.
func Int(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float constructs a float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text constructs a text value, enforcing MaxStringBytes.
func Text(v string) (Value, error) {
	if limit := CurrentLimits().MaxStringBytes; len(v) > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "text of %d bytes exceeds limit %d", len(v), limit)
	}
	return Value{kind: KindText, s: v}, nil
}

// MustText is Text for inputs known to be within limits.
func MustText(v string) Value {
	val, err := Text(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Bytes constructs a bytes value, enforcing MaxBytesLength. The input slice
// is copied so later caller mutations cannot break immutability.
func Bytes(v []byte) (Value, error) {
	if limit := CurrentLimits().MaxBytesLength; len(v) > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "bytes of %d exceeds limit %d", len(v), limit)
	}
	owned := make([]byte, len(v))
	copy(owned, v)
	return Value{kind: KindBytes, bs: owned}, nil
}

// Array constructs an array value, enforcing MaxArrayLength and nesting
// depth. The element slice is copied; elements themselves are shared.
func Array(elems []Value) (Value, error) {
	limits := CurrentLimits()
	if len(elems) > limits.MaxArrayLength {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "array of %d elements exceeds limit %d", len(elems), limits.MaxArrayLength)
	}
	owned := make([]Value, len(elems))
	copy(owned, elems)
	v := Value{kind: KindArray, arr: owned}
	if depth := v.depth(); depth > limits.MaxNestingDepth {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "nesting depth %d exceeds limit %d", depth, limits.MaxNestingDepth)
	}
	return v, nil
}

// Object constructs an object value, enforcing MaxObjectKeys and nesting
// depth. The entry map is copied; values themselves are shared.
func Object(entries map[string]Value) (Value, error) {
	limits := CurrentLimits()
	if len(entries) > limits.MaxObjectKeys {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "object of %d keys exceeds limit %d", len(entries), limits.MaxObjectKeys)
	}
	owned := make(map[string]Value, len(entries))
	for k, v := range entries {
		owned[k] = v
	}
	v := Value{kind: KindObject, obj: owned}
	if depth := v.depth(); depth > limits.MaxNestingDepth {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "nesting depth %d exceeds limit %d", depth, limits.MaxNestingDepth)
	}
	return v, nil
}

// Time constructs a time-of-day value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Date constructs a calendar-date value. The time-of-day component is
// truncated to midnight UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateTime constructs a full timestamp value.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t} }

// Duration constructs a duration value.
func Duration(d time.Duration) Value { return Value{kind: KindDuration, d: d} }

// Decimal constructs an arbitrary-precision decimal value.
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// Clone returns a copy of the value. For shared-backing variants this is a
// struct copy sharing the underlying storage, hence O(1).
func (v Value) Clone() Value { return v }

// depth computes the nesting depth of containers: scalars are depth 1,
// containers are 1 + max child depth.
func (v Value) depth() int {
	switch v.Kind() {
	case KindArray:
		max := 0
		for _, e := range v.arr {
			if d := e.depth(); d > max {
				max = d
			}
		}
		return 1 + max
	case KindObject:
		max := 0
		for _, e := range v.obj {
			if d := e.depth(); d > max {
				max = d
			}
		}
		return 1 + max
	default:
		return 1
	}
}

// Equal reports structural equality. Arrays compare elementwise in order;
// objects compare by key set and per-key values. Integer and Float never
// compare equal to each other here: equality is within-kind (ordering
// handles numeric promotion).
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInteger:
		return v.i == other.i
	case KindFloat:
		if math.IsNaN(v.f) && math.IsNaN(other.f) {
			return true
		}
		return v.f == other.f
	case KindText:
		return v.s == other.s
	case KindBytes:
		if len(v.bs) != len(other.bs) {
			return false
		}
		for i := range v.bs {
			if v.bs[i] != other.bs[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, e := range v.obj {
			oe, ok := other.obj[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	case KindTime, KindDate, KindDateTime:
		return v.t.Equal(other.t)
	case KindDuration:
		return v.d == other.d
	case KindDecimal:
		return v.dec.Equal(other.dec)
	}
	return false
}

// Hash returns a structural hash consistent with Equal. All NaN floats hash
// to a single bucket.
func (v Value) Hash() uint64 {
	h := fnv.New64a()
	v.hashInto(h)
	return h.Sum64()
}

func (v Value) hashInto(h interface{ Write([]byte) (int, error) }) {
	write := func(b []byte) { _, _ = h.Write(b) }
	writeU64 := func(u uint64) {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(u >> (8 * i))
		}
		write(buf[:])
	}

	write([]byte(v.Kind()))
	switch v.Kind() {
	case KindBool:
		if v.b {
			write([]byte{1})
		} else {
			write([]byte{0})
		}
	case KindInteger:
		writeU64(uint64(v.i))
	case KindFloat:
		if math.IsNaN(v.f) {
			writeU64(math.Float64bits(math.NaN()))
		} else {
			writeU64(math.Float64bits(v.f))
		}
	case KindText:
		write([]byte(v.s))
	case KindBytes:
		write(v.bs)
	case KindArray:
		for _, e := range v.arr {
			e.hashInto(h)
		}
	case KindObject:
		// Deterministic order.
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			write([]byte(k))
			v.obj[k].hashInto(h)
		}
	case KindTime, KindDate, KindDateTime:
		writeU64(uint64(v.t.UnixNano()))
	case KindDuration:
		writeU64(uint64(v.d))
	case KindDecimal:
		write([]byte(v.dec.String()))
	}
}

// String renders a short human-readable form for logging and error messages.
// Bytes render as a length placeholder, not content.
func (v Value) String() string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bs))
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindObject:
		return fmt.Sprintf("object(%d)", len(v.obj))
	case KindTime, KindDate, KindDateTime:
		return v.t.Format(time.RFC3339)
	case KindDuration:
		return v.d.String()
	case KindDecimal:
		return v.dec.String()
	}
	return string(v.Kind())
}
