package value

// Truthy applies the truthiness rules used by the logical operators and
// edge conditions: numbers are truthy when nonzero, text when nonempty,
// arrays and objects when nonempty, booleans as themselves, null is false.
// Temporal and decimal values are truthy when nonzero.
func (v Value) Truthy() bool {
	switch v.Kind() {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInteger:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindText:
		return v.s != ""
	case KindBytes:
		return len(v.bs) > 0
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return len(v.obj) > 0
	case KindTime, KindDate, KindDateTime:
		return !v.t.IsZero()
	case KindDuration:
		return v.d != 0
	case KindDecimal:
		return !v.dec.IsZero()
	}
	return false
}

// And returns the logical conjunction of both values' truthiness.
func (v Value) And(other Value) Value {
	return Bool(v.Truthy() && other.Truthy())
}

// Or returns the logical disjunction of both values' truthiness.
func (v Value) Or(other Value) Value {
	return Bool(v.Truthy() || other.Truthy())
}

// Not returns the logical negation of the value's truthiness.
func (v Value) Not() Value {
	return Bool(!v.Truthy())
}
