package mapper

import (
	"math"
	"reflect"
	"strconv"
)

// A parser for strings into primitive values.
type parser func(source string) (any, error)

// The parser for values of kind `typ.Kind()`, or `nil` if the kind is not
// a primitive we support.
func lookupParser(typ reflect.Type) parser {
	switch typ.Kind() {
	case reflect.Bool:
		return func(source string) (any, error) {
			return strconv.ParseBool(source) //nolint:wrapcheck
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := typ.Bits()
		return func(source string) (any, error) {
			return strconv.ParseInt(source, 10, bits) //nolint:wrapcheck
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := typ.Bits()
		return func(source string) (any, error) {
			return strconv.ParseUint(source, 10, bits) //nolint:wrapcheck
		}
	case reflect.Float32, reflect.Float64:
		bits := typ.Bits()
		return func(source string) (any, error) {
			return strconv.ParseFloat(source, bits) //nolint:wrapcheck
		}
	case reflect.String:
		return func(source string) (any, error) {
			return source, nil
		}
	default:
		return nil
	}
}

// Parse `source` and convert the result to `typ`.
func parseInto(source string, typ reflect.Type, parse parser) (reflect.Value, error) {
	parsed, err := parse(source)
	if err != nil {
		return reflect.Value{}, err
	}
	converted, ok := convertScalar(parsed, typ)
	if !ok {
		// `parse` was picked from `typ`, so this cannot happen.
		panic("parser produced a value of the wrong kind")
	}
	return converted, nil
}

// Convert a decoded scalar into a value of type `typ` without losing information.
//
// Unlike `reflect.Value.Convert`, this refuses to truncate `1.5` into an
// integer, to wrap `-1` into an unsigned integer or to turn `65` into "A".
func convertScalar(input any, typ reflect.Type) (reflect.Value, bool) {
	in := reflect.ValueOf(input)
	out := reflect.New(typ).Elem()
	switch {
	case typ.Kind() == reflect.Bool && in.Kind() == reflect.Bool:
		out.SetBool(in.Bool())
	case typ.Kind() == reflect.String && in.Kind() == reflect.String:
		out.SetString(in.String())
	case isInt(typ.Kind()):
		i, ok := asInt64(in)
		if !ok || out.OverflowInt(i) {
			return reflect.Value{}, false
		}
		out.SetInt(i)
	case isUint(typ.Kind()):
		u, ok := asUint64(in)
		if !ok || out.OverflowUint(u) {
			return reflect.Value{}, false
		}
		out.SetUint(u)
	case typ.Kind() == reflect.Float32 || typ.Kind() == reflect.Float64:
		var f float64
		switch {
		case isFloat(in.Kind()):
			f = in.Float()
		case isInt(in.Kind()):
			f = float64(in.Int())
		case isUint(in.Kind()):
			f = float64(in.Uint())
		default:
			return reflect.Value{}, false
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, false
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, false
	}
	return out, true
}

func asInt64(in reflect.Value) (int64, bool) {
	switch {
	case isInt(in.Kind()):
		return in.Int(), true
	case isUint(in.Kind()):
		u := in.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case isFloat(in.Kind()):
		f := in.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

func asUint64(in reflect.Value) (uint64, bool) {
	switch {
	case isUint(in.Kind()):
		return in.Uint(), true
	case isInt(in.Kind()):
		i := in.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case isFloat(in.Kind()):
		f := in.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f), true
	default:
		return 0, false
	}
}

func isInt(kind reflect.Kind) bool {
	return kind >= reflect.Int && kind <= reflect.Int64
}

func isUint(kind reflect.Kind) bool {
	return kind >= reflect.Uint && kind <= reflect.Uintptr
}

func isFloat(kind reflect.Kind) bool {
	return kind == reflect.Float32 || kind == reflect.Float64
}
