// Mechanisms to deal with initialization and validation of model instances.
//
// These interfaces are primarily designed to be implemented by models
// built by the default mapper (see package `deserialize/mapper`).
package validation

import "fmt"

// A type that supports initialization.
//
// The mapper automatically calls `Initialize()` at every depth of the tree,
// **before** filling in the fields of a struct.
//
// Important: We expect `Initializer` to be implemented on **pointers**,
// rather than on structs.
//
// Otherwise, all its operations are performed on a copy of the struct and
// the result is lost immediately.
type Initializer interface {
	// Setup the contents of the struct.
	Initialize() error
}

// A type that supports validation.
//
// The mapper automatically calls `Validate()` at every depth of the tree,
// **after** filling in the fields of a struct.
//
// Important: We expect `Validator` to be implemented on **pointers**,
// rather than on structs.
//
// This lets `Validate()` perform any necessary changes to the data
// structure, e.g. populate private fields from the contents of public fields.
type Validator interface {
	// Confirm that the data is valid.
	//
	// Return an error if it is invalid.
	Validate() error
}

// An error returned when a model instance was built but rejected by `Validate()`.
type Error struct {
	// The path of the rejected value, e.g. "Person.address".
	Path string

	// The error returned by `Validate()`.
	Wrapped error
}

// Wrap an error returned by `Validate()`.
func WrapError(path string, err error) Error {
	return Error{
		Path:    path,
		Wrapped: err,
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("deserialized value %s did not pass validation\n\t * %s", e.Path, e.Wrapped.Error())
}

func (e Error) Unwrap() error {
	return e.Wrapped
}

var _ error = Error{} //nolint:exhaustruct
