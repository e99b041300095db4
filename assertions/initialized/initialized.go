// A witness used to detect structs that were not built by their constructor.
//
// Go lets callers create any struct without going through its constructor:
//
//	foo := new(T)
//	foo := T{}
//
// Such a value has type `T` at compile-time and at run-time but none of the
// guarantees that `MakeT()` establishes (e.g. a non-nil collaborator).
//
// Operation manual:
//   - add a field `witness initialized.IsInitialized` to your struct;
//   - set it with `initialized.Make()` in your constructor;
//   - call `self.witness.Assert()` before using the struct.
package initialized

// A witness that the containing struct went through its constructor.
type IsInitialized struct {
	isInitialized bool
}

// Create an `IsInitialized`.
func Make() IsInitialized {
	return IsInitialized{
		isInitialized: true,
	}
}

// Return `true` if this witness was created by `Make()`.
func (witness IsInitialized) Ok() bool {
	return witness.isInitialized
}

// Panic unless this witness was created by `Make()`.
func (witness IsInitialized) Assert() {
	if !witness.isInitialized {
		panic("struct was not initialized, please use its constructor")
	}
}
