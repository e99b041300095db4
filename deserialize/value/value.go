// Decoded values, as handed to us by a JSON decoder or built by hand.
//
// A decoded value is exactly one of:
//   - a `Map` (a JSON object);
//   - a `Sequence` (a JSON array);
//   - a `Scalar` (everything else, including `null`).
//
// We use these types instead of raw type conversions on `any` to decrease
// the risk of confusion and to make every consumer handle the three shapes
// explicitly.
package value

import (
	"sort"
)

// A decoded value.
//
// The set of implementations is closed: only `Scalar`, `Sequence` and `Map`
// implement `Value`. Consumers that switch over values should treat any other
// case as an error.
type Value interface {
	// If this value is a map, return it.
	AsDict() (Map, bool)

	// If this value is a sequence, return it.
	AsSlice() (Sequence, bool)

	// Convert back to the plain Go representation (`map[string]any`, `[]any`, ...).
	Interface() any

	isValue()
}

// Anything that is neither a map nor a sequence.
type Scalar struct {
	wrapped any
}

// Wrap a scalar.
//
// Maps and slices passed to `NewScalar` are NOT converted, use `FromAny`
// if you need a shape-aware conversion.
func NewScalar(wrapped any) Scalar {
	return Scalar{wrapped: wrapped}
}

func (s Scalar) AsDict() (Map, bool) {
	return nil, false
}
func (s Scalar) AsSlice() (Sequence, bool) {
	return nil, false
}
func (s Scalar) Interface() any {
	return s.wrapped
}

// Return `true` if this scalar represents `null`.
func (s Scalar) IsNull() bool {
	return s.wrapped == nil
}
func (Scalar) isValue() {}

// An ordered sequence of values.
type Sequence []Value

func (s Sequence) AsDict() (Map, bool) {
	return nil, false
}
func (s Sequence) AsSlice() (Sequence, bool) {
	return s, true
}
func (s Sequence) Interface() any {
	result := make([]any, len(s))
	for i, v := range s {
		result[i] = interfaceOf(v)
	}
	return result
}
func (Sequence) isValue() {}

// A map from string keys to values.
type Map map[string]Value

func (m Map) AsDict() (Map, bool) {
	return m, true
}
func (m Map) AsSlice() (Sequence, bool) {
	return nil, false
}
func (m Map) Interface() any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = interfaceOf(v)
	}
	return result
}
func (Map) isValue() {}

// Find the value associated with a key.
func (m Map) Lookup(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

// The keys of this map, sorted.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// View this map as a `Value`.
func (m Map) AsValue() Value {
	return m
}

var _ Value = Scalar{}   // Type assertion.
var _ Value = Sequence{} // Type assertion.
var _ Value = Map{}      // Type assertion.

// Convert the output of a JSON decoder into a `Value`.
//
// `map[string]any` becomes a `Map`, `[]any` becomes a `Sequence`, values
// that already are a `Value` are returned unchanged and everything else
// becomes a `Scalar`.
func FromAny(source any) Value {
	switch typed := source.(type) {
	case Value:
		return typed
	case map[string]any:
		result := make(Map, len(typed))
		for k, v := range typed {
			result[k] = FromAny(v)
		}
		return result
	case []any:
		result := make(Sequence, len(typed))
		for i, v := range typed {
			result[i] = FromAny(v)
		}
		return result
	case []map[string]any:
		result := make(Sequence, len(typed))
		for i, v := range typed {
			result[i] = FromAny(v)
		}
		return result
	default:
		return NewScalar(source)
	}
}

// Convert a map with plain Go values into a `Map`.
func MapOf(source map[string]any) Map {
	result, _ := FromAny(source).AsDict()
	return result
}

// Convert a slice of plain Go values into a `Sequence`.
func SequenceOf(source ...any) Sequence {
	result, _ := FromAny(source).AsSlice()
	return result
}

func interfaceOf(v Value) any {
	if v == nil {
		return nil
	}
	return v.Interface()
}
