package value

import (
	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// Push returns a new array with elem appended. The receiver is unchanged;
// existing elements are shared between the two arrays.
func (v Value) Push(elem Value) (Value, error) {
	if v.Kind() != KindArray {
		return Value{}, types.NewErrorf(types.TYPE_MISMATCH, "push requires array, got %s", v.Kind())
	}
	if limit := CurrentLimits().MaxArrayLength; len(v.arr)+1 > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "array would exceed limit %d", limit)
	}
	next := make([]Value, len(v.arr)+1)
	copy(next, v.arr)
	next[len(v.arr)] = elem
	return Value{kind: KindArray, arr: next}, nil
}

// Insert returns a new array with elem inserted at index. Index may equal
// Len to append. The receiver is unchanged.
func (v Value) Insert(index int, elem Value) (Value, error) {
	if v.Kind() != KindArray {
		return Value{}, types.NewErrorf(types.TYPE_MISMATCH, "insert requires array, got %s", v.Kind())
	}
	if index < 0 || index > len(v.arr) {
		return Value{}, types.NewErrorf(types.OUT_OF_RANGE, "insert index %d out of range [0, %d]", index, len(v.arr))
	}
	if limit := CurrentLimits().MaxArrayLength; len(v.arr)+1 > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "array would exceed limit %d", limit)
	}
	next := make([]Value, 0, len(v.arr)+1)
	next = append(next, v.arr[:index]...)
	next = append(next, elem)
	next = append(next, v.arr[index:]...)
	return Value{kind: KindArray, arr: next}, nil
}

// Concat returns a new array with other's elements appended to v's.
func (v Value) Concat(other Value) (Value, error) {
	if v.Kind() != KindArray || other.Kind() != KindArray {
		return Value{}, typeMismatch("concat", v, other)
	}
	if limit := CurrentLimits().MaxArrayLength; len(v.arr)+len(other.arr) > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "concatenated array of %d exceeds limit %d", len(v.arr)+len(other.arr), limit)
	}
	next := make([]Value, 0, len(v.arr)+len(other.arr))
	next = append(next, v.arr...)
	next = append(next, other.arr...)
	return Value{kind: KindArray, arr: next}, nil
}

// Set returns a new object with key bound to elem, replacing any prior
// binding. The receiver is unchanged.
func (v Value) Set(key string, elem Value) (Value, error) {
	if v.Kind() != KindObject {
		return Value{}, types.NewErrorf(types.TYPE_MISMATCH, "set requires object, got %s", v.Kind())
	}
	_, replacing := v.obj[key]
	if limit := CurrentLimits().MaxObjectKeys; !replacing && len(v.obj)+1 > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "object would exceed limit %d", limit)
	}
	next := make(map[string]Value, len(v.obj)+1)
	for k, e := range v.obj {
		next[k] = e
	}
	next[key] = elem
	return Value{kind: KindObject, obj: next}, nil
}

// Merge returns a new object with other's entries layered over v's.
// Keys present in both take other's value.
func (v Value) Merge(other Value) (Value, error) {
	if v.Kind() != KindObject || other.Kind() != KindObject {
		return Value{}, typeMismatch("merge", v, other)
	}
	next := make(map[string]Value, len(v.obj)+len(other.obj))
	for k, e := range v.obj {
		next[k] = e
	}
	for k, e := range other.obj {
		next[k] = e
	}
	if limit := CurrentLimits().MaxObjectKeys; len(next) > limit {
		return Value{}, types.NewErrorf(types.LIMIT_EXCEEDED, "merged object of %d keys exceeds limit %d", len(next), limit)
	}
	return Value{kind: KindObject, obj: next}, nil
}

// Get retrieves an object entry by key. The boolean reports presence.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind() != KindObject {
		return Value{}, false
	}
	e, ok := v.obj[key]
	return e, ok
}

// Index retrieves an array element by position.
func (v Value) Index(i int) (Value, error) {
	if v.Kind() != KindArray {
		return Value{}, types.NewErrorf(types.TYPE_MISMATCH, "index requires array, got %s", v.Kind())
	}
	if i < 0 || i >= len(v.arr) {
		return Value{}, types.NewErrorf(types.OUT_OF_RANGE, "index %d out of range [0, %d)", i, len(v.arr))
	}
	return v.arr[i], nil
}

// Len returns the element count of arrays and objects, the byte length of
// text and bytes, and fails TYPE_MISMATCH otherwise.
func (v Value) Len() (int, error) {
	switch v.Kind() {
	case KindArray:
		return len(v.arr), nil
	case KindObject:
		return len(v.obj), nil
	case KindText:
		return len(v.s), nil
	case KindBytes:
		return len(v.bs), nil
	}
	return 0, types.NewErrorf(types.TYPE_MISMATCH, "len is not defined for %s", v.Kind())
}

// Slice returns a new array holding v's elements in [from, to).
func (v Value) Slice(from, to int) (Value, error) {
	if v.Kind() != KindArray {
		return Value{}, types.NewErrorf(types.TYPE_MISMATCH, "slice requires array, got %s", v.Kind())
	}
	if from < 0 || to > len(v.arr) || from > to {
		return Value{}, types.NewErrorf(types.OUT_OF_RANGE, "slice bounds [%d, %d) out of range for length %d", from, to, len(v.arr))
	}
	next := make([]Value, to-from)
	copy(next, v.arr[from:to])
	return Value{kind: KindArray, arr: next}, nil
}

// Keys returns an object's keys in unspecified order.
func (v Value) Keys() ([]string, error) {
	if v.Kind() != KindObject {
		return nil, types.NewErrorf(types.TYPE_MISMATCH, "keys requires object, got %s", v.Kind())
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	return keys, nil
}
