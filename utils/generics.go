package utils

// AsPtr returns a pointer to the given value v.
// Useful for converting a value to a pointer, especially in generic code.
//
// Example:
//
//	p := AsPtr(42) // p is of type *int, pointing to 42
func AsPtr[V any](v V) *V {
	return &v
}

// AsValue returns the value pointed to by v.
// If v is nil, it returns the zero value of type V.
// Useful for safely dereferencing pointers in generic code.
//
// Example:
//
//	var p *int
//	val := AsValue(p) // val is 0 (zero value for int)
func AsValue[V any](v *V) V {
	if v == nil {
		return *new(V)
	}
	return *v
}

// AsValueOrDefault returns the value pointed to by v.
// If v is nil, it returns the provided default value.
// Useful for safely dereferencing pointers in generic code.
//
// Example:
//
//	var p *int
//	val := AsValueOrDefault(p, 42) // val is 42 (default value)
func AsValueOrDefault[V any](v *V, defaultValue V) V {
	if v == nil {
		return defaultValue
	}
	return *v
}

// PtrEquals compares two optional values, treating two nils as equal and a
// nil/non-nil pair as unequal.
func PtrEquals[T comparable](a, b *T) bool {
	if a == nil && b == nil {
		return true
	} else if a != nil && b != nil {
		return *a == *b
	}
	return false
}

// ContainsKey reports whether m has an entry for key.
func ContainsKey[T comparable, V any](m map[T]V, key T) bool {
	_, ok := m[key]
	return ok
}
