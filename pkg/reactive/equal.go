package reactive

import (
	"math"
	"reflect"
)

// changed reports whether a Value's result changed from old to cur.
//
// nil and typed nil pointers, maps, slices, funcs and channels all belong to
// one "empty" class. Any other pair compares by strict inequality: comparable
// payloads with ==, reference payloads by identity, everything else is always
// considered changed.
func changed(old, cur any) bool {
	if isEmpty(old) {
		return !isEmpty(cur)
	}
	if isEmpty(cur) {
		return true
	}
	return !same(old, cur)
}

func isEmpty(x any) bool {
	if x == nil {
		return true
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func same(a, b any) (eq bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		// Structs and arrays holding interfaces may still panic on ==.
		defer func() {
			if recover() != nil {
				eq = false
			}
		}()
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	default:
		return false
	}
}

// Equal reports whether a and b count as the same result: the comparison a
// Value uses to decide whether a write is a change.
func Equal(a, b any) bool {
	return !changed(a, b)
}

// Truthy follows the usual script semantics: nil values, false, zero numbers
// and the empty string are false; everything else is true.
func Truthy(v any) bool {
	if isEmpty(v) {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice, func,
// channel or interface.
func IsNil(v any) bool {
	return isEmpty(v)
}
