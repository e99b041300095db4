package deserialize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pasqal-io/modelclass/deserialize/mapper"
	"github.com/pasqal-io/modelclass/deserialize/value"
)

// The reason a deserialization failed.
//
// Values are stable, callers may persist or compare them.
type ErrorKind int

const (
	// The mapping collaborator could not build an instance from a map.
	ModelObjectCreation ErrorKind = iota

	// The value was neither a map nor a sequence.
	UnexpectedObject

	// At least one element of a sequence could not be deserialized.
	ArrayElementsError
)

func (kind ErrorKind) String() string {
	switch kind {
	case ModelObjectCreation:
		return "ModelObjectCreation"
	case UnexpectedObject:
		return "UnexpectedObject"
	case ArrayElementsError:
		return "ArrayElementsError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(kind))
	}
}

// Keys for `Error.Lookup` and `Error.UserInfo`.
const (
	// The error reported by the mapping collaborator (`ModelObjectCreation`), if any.
	UnderlyingErrorKey = "underlyingError"

	// The value that could not be deserialized (`UnexpectedObject`).
	UnexpectedObjectKey = "unexpectedObject"

	// The list of underlying errors, one per failing element, in order (`ArrayElementsError`).
	UnderlyingErrorsKey = "underlyingErrors"
)

// Sentinels, for use with `errors.Is`.
//
//	if errors.Is(err, deserialize.ErrUnexpectedObject) { ... }
var (
	ErrModelObjectCreation = errors.New("could not create model object")
	ErrUnexpectedObject    = errors.New("unexpected object")
	ErrArrayElements       = errors.New("could not deserialize array elements")
)

// A failed deserialization.
type Error struct {
	Kind ErrorKind

	// A human-readable path to the value that failed, e.g. "Person[2]".
	Path string

	// The model type we were attempting to build.
	Target mapper.Target

	// `UnexpectedObject` only: the offending value.
	Object value.Value

	// `ModelObjectCreation` only: the error reported by the mapping collaborator,
	// `nil` if the collaborator returned neither an instance nor an error.
	Wrapped error

	// `ArrayElementsError` only: one error per failing element, in input order.
	Elements []error

	// `ArrayElementsError` only: the index of each failing element, matching `Elements`.
	//
	// If this is shorter than `Elements`, messages fall back to positions in `Elements`.
	Indices []int
}

func (e *Error) Error() string {
	switch e.Kind {
	case UnexpectedObject:
		return fmt.Sprintf("at %s, expected an object or an array of %s, got %s", e.Path, e.Target.Name(), describe(e.Object))
	case ModelObjectCreation:
		if e.Wrapped == nil {
			return fmt.Sprintf("at %s, could not create a %s", e.Path, e.Target.Name())
		}
		return fmt.Sprintf("at %s, could not create a %s:\n\t * %s", e.Path, e.Target.Name(), e.Wrapped.Error())
	case ArrayElementsError:
		var buf strings.Builder
		fmt.Fprintf(&buf, "at %s, %d element(s) could not be deserialized as %s:", e.Path, len(e.Elements), e.Target.Name())
		for i, err := range e.Elements {
			index := i
			if i < len(e.Indices) {
				index = e.Indices[i]
			}
			fmt.Fprintf(&buf, "\n\t * [%d] %s", index, err.Error())
		}
		return buf.String()
	default:
		return fmt.Sprintf("at %s, deserialization failed (%s)", e.Path, e.Kind)
	}
}

// The wrapped errors, if any.
func (e *Error) Unwrap() []error {
	switch e.Kind {
	case ModelObjectCreation:
		if e.Wrapped != nil {
			return []error{e.Wrapped}
		}
	case ArrayElementsError:
		return e.Elements
	case UnexpectedObject:
	}
	return nil
}

// Match the sentinel of this error's kind.
func (e *Error) Is(target error) bool {
	switch target { //nolint:errorlint
	case ErrModelObjectCreation:
		return e.Kind == ModelObjectCreation
	case ErrUnexpectedObject:
		return e.Kind == UnexpectedObject
	case ErrArrayElements:
		return e.Kind == ArrayElementsError
	default:
		return false
	}
}

// Find the context stored under `key`.
//
// See `UnderlyingErrorKey`, `UnexpectedObjectKey` and `UnderlyingErrorsKey`.
func (e *Error) Lookup(key string) (any, bool) {
	switch {
	case key == UnexpectedObjectKey && e.Kind == UnexpectedObject:
		return e.Object, true
	case key == UnderlyingErrorKey && e.Kind == ModelObjectCreation && e.Wrapped != nil:
		return e.Wrapped, true
	case key == UnderlyingErrorsKey && e.Kind == ArrayElementsError:
		return e.Elements, true
	default:
		return nil, false
	}
}

// All the context of this error, by key.
func (e *Error) UserInfo() map[string]any {
	info := make(map[string]any)
	for _, key := range []string{UnderlyingErrorKey, UnexpectedObjectKey, UnderlyingErrorsKey} {
		if found, ok := e.Lookup(key); ok {
			info[key] = found
		}
	}
	return info
}

var _ error = &Error{} //nolint:exhaustruct

// Render an unexpected value for error messages.
func describe(v value.Value) string {
	if v == nil {
		return "<nil>"
	}
	return spew.Sprintf("%v", v.Interface())
}
