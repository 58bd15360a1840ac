package reactive

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// DefaultEquals is the store-level default equality. It uses == for the
// common comparable types and falls back to reflect.DeepEqual for
// slices, maps, and structs.
func DefaultEquals(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int8:
		bv, ok := b.(int8)
		return ok && av == bv
	case int16:
		bv, ok := b.(int16)
		return ok && av == bv
	case int32:
		bv, ok := b.(int32)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case uint:
		bv, ok := b.(uint)
		return ok && av == bv
	case uint8:
		bv, ok := b.(uint8)
		return ok && av == bv
	case uint16:
		bv, ok := b.(uint16)
		return ok && av == bv
	case uint32:
		bv, ok := b.(uint32)
		return ok && av == bv
	case uint64:
		bv, ok := b.(uint64)
		return ok && av == bv
	case float32:
		bv, ok := b.(float32)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Identity compares values with ==. It panics on incomparable types,
// so use it only for cells holding comparable values.
func Identity(a, b any) bool {
	return a == b
}

// EqualsCmp builds an equality function backed by go-cmp. Useful for
// custom types where reflect.DeepEqual has incorrect semantics (for
// example types with an Equal method, or fields to ignore).
func EqualsCmp(opts ...cmp.Option) func(a, b any) bool {
	return func(a, b any) bool {
		return cmp.Equal(a, b, opts...)
	}
}

// EqualsOf adapts a typed equality function to the engine's untyped
// form. Values that are not of type T compare unequal.
func EqualsOf[T any](eq func(a, b T) bool) func(a, b any) bool {
	return func(a, b any) bool {
		av, aok := a.(T)
		bv, bok := b.(T)
		return aok && bok && eq(av, bv)
	}
}
