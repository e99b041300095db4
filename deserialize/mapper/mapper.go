// The model-mapping collaborator: builds one model instance from a map of
// decoded fields.
//
// Package `deserialize` only depends on the `Adapter` interface. This package
// also provides `Mapper`, a default `Adapter` that uses reflection to fill in
// structs, with the following behavior:
//   - fields are read from the key given by the renaming tag (`json:"XXX"` by
//     default), or from the field name if there is no such tag;
//   - lower-case fields and fields renamed to `json:"-"` NEVER accept external data;
//   - a missing field is an error, unless a `default:"XXX"` tag specifies a value
//     (by opposition, Go's `encoding/json` would silently insert a zero value);
//   - if a struct implements `validation.Initializer`, `Initialize()` runs before
//     its fields are filled in and missing fields keep their initialized value;
//   - if a struct implements `validation.Validator`, `Validate()` runs once its
//     fields are filled in and a rejection fails the whole construction;
//   - types implementing `encoding.TextUnmarshaler` (e.g. `uuid.UUID`, `time.Time`)
//     are parsed from strings;
//   - strings are parsed into numbers and booleans when the field requires it;
//   - configuration errors (bad `default`, unsupported field types, ...) are
//     reported by `Prepare`, before any data is processed.
package mapper

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"

	"github.com/pasqal-io/modelclass/assertions/initialized"
	"github.com/pasqal-io/modelclass/deserialize/value"
)

// -------- Public API --------

// The description of the model type to build.
type Target struct {
	typ reflect.Type
}

// The target for model type `T`.
//
// `T` should be a struct type, e.g. `TargetOf[Person]()`.
func TargetOf[T any]() Target {
	return Target{
		typ: reflect.TypeOf((*T)(nil)).Elem(),
	}
}

// The target for a dynamic type.
func TargetFor(typ reflect.Type) (Target, error) {
	if typ == nil {
		return Target{}, errors.New("invalid target, expected a struct type, got nil")
	}
	if typ.Kind() != reflect.Struct {
		return Target{}, fmt.Errorf("invalid target, expected a struct type, got %s", typ)
	}
	return Target{typ: typ}, nil
}

// The underlying type.
func (target Target) Type() reflect.Type {
	return target.typ
}

// A human-readable name for the target, used in error messages.
func (target Target) Name() string {
	if target.typ == nil {
		return "<invalid target>"
	}
	return typeName(target.typ)
}

// Return `true` unless this is the zero `Target`.
func (target Target) IsValid() bool {
	return target.typ != nil
}

func (target Target) String() string {
	return target.Name()
}

// The contract of a model-mapping collaborator.
type Adapter interface {
	// Build one instance of `target` from `fields`.
	//
	// Implementations MUST return either a non-nil instance and a nil error or
	// a nil instance and a non-nil error.
	BuildInstance(target Target, fields value.Map) (any, error)
}

// Use a function as an `Adapter`.
type AdapterFunc func(target Target, fields value.Map) (any, error)

func (f AdapterFunc) BuildInstance(target Target, fields value.Map) (any, error) {
	return f(target, fields)
}

var _ Adapter = AdapterFunc(nil) // Type assertion.

// Options for building a `Mapper`.
//
// See also JSONOptions for reasonable default values.
type Options struct {
	// The name of tags used for renamings (e.g. "json").
	//
	// Mandatory.
	TagName string

	// Where to log internal errors, e.g. failures in `Initialize()`.
	//
	// Optional. If you leave this blank, defaults to `slog.Default()`.
	Logger *slog.Logger
}

// A preset fit for consuming JSON.
func JSONOptions() Options {
	return Options{
		TagName: "json",
		Logger:  nil,
	}
}

// The default, reflection-based, `Adapter`.
//
// A `Mapper` is safe for concurrent use. Compiled targets are cached.
type Mapper struct {
	options innerOptions
	cache   sync.Map // reflect.Type -> reflectDeserializer
	witness initialized.IsInitialized
}

// Create a `Mapper`.
func New(options Options) (*Mapper, error) {
	if options.TagName == "" {
		return nil, errors.New("missing option TagName")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		options: innerOptions{
			renamingTagName: options.TagName,
			logger:          logger,
		},
		cache:   sync.Map{},
		witness: initialized.Make(),
	}, nil
}

// Check ahead of time that instances of `target` can be built.
//
// Calling `Prepare` is optional, `BuildInstance` prepares targets lazily.
func (m *Mapper) Prepare(target Target) error {
	_, err := m.deserializerFor(target)
	return err
}

// Build an instance of `target` from `fields`.
//
// On success, the result is a pointer to a freshly allocated value of the
// target type, e.g. a `*Person` for `TargetOf[Person]()`.
func (m *Mapper) BuildInstance(target Target, fields value.Map) (any, error) {
	deserializer, err := m.deserializerFor(target)
	if err != nil {
		return nil, err
	}
	resultPtr := reflect.New(target.typ)
	result := resultPtr.Elem()
	if fields == nil {
		fields = value.Map{}
	}
	if err := deserializer(result, fields); err != nil {
		return nil, err
	}
	return resultPtr.Interface(), nil
}

var _ Adapter = &Mapper{} //nolint:exhaustruct

// An error that arises because of a bug in a custom initializer.
type CustomDeserializerError struct {
	// The operation that failed, e.g. "initializer".
	Operation string

	// The kind of value we were applying it to, e.g. "struct".
	Structure string

	// The underlying error.
	Wrapped error
}

// Return the user-facing message.
func (e CustomDeserializerError) Error() string {
	return e.Wrapped.Error()
}

// Unwrap the error.
func (e CustomDeserializerError) Unwrap() error {
	return e.Wrapped
}

var _ error = CustomDeserializerError{} //nolint:exhaustruct

// ----------------- Private

type innerOptions struct {
	// The name of tag used for renamings (e.g. "json").
	renamingTagName string

	logger *slog.Logger
}

func (m *Mapper) deserializerFor(target Target) (reflectDeserializer, error) {
	m.witness.Assert()
	if !target.IsValid() {
		return nil, errors.New("invalid target, please build targets with TargetOf or TargetFor")
	}
	if cached, ok := m.cache.Load(target.typ); ok {
		return cached.(reflectDeserializer), nil //nolint:forcetypeassert
	}
	if target.typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("invalid target, expected a struct type, got %s", target.typ)
	}
	compiler := makeCompiler(m.options)
	deserializer, err := compiler.outer(target.typ)
	if err != nil {
		return nil, err
	}
	// Concurrent compilations of the same target produce equivalent deserializers,
	// keep whichever was stored first.
	actual, _ := m.cache.LoadOrStore(target.typ, deserializer)
	return actual.(reflectDeserializer), nil //nolint:forcetypeassert
}

// Return a (mostly) human-readable type name for a Go type.
//
// This type name is used for user error messages.
func typeName(typ reflect.Type) string {
	name := typ.Name()
	if name == "" {
		return typ.String()
	}
	pkgPrefix := typ.PkgPath() + "."
	return strings.ReplaceAll(name, pkgPrefix, "")
}
