// Turn decoded JSON-like values into model instances.
//
// A `Deserializer` walks a `value.Value`:
//   - a `value.Map` is handed to the model-mapping collaborator (see `mapper.Adapter`),
//     which builds one instance of the target type;
//   - a `value.Sequence` is deserialized element by element, recursively, into a
//     `[]any` of the same length and in the same order;
//   - anything else is rejected.
//
// Errors are reported as `*Error`, with a `Kind` and enough context to explain
// what went wrong and where. Sequences collect the errors of all failing
// elements instead of stopping at the first one.
//
//	deserializer, err := deserialize.MakeDeserializer(deserialize.JSONOptions(""))
//	if err != nil { ... }
//	people, err := deserialize.ModelsOf[Person](deserializer, decoded)
package deserialize

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/pasqal-io/modelclass/assertions/initialized"
	"github.com/pasqal-io/modelclass/deserialize/mapper"
	"github.com/pasqal-io/modelclass/deserialize/value"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// -------- Public API --------

// Options for building a `Deserializer`.
//
// See also JSONOptions for reasonable default values.
type Options struct {
	// A prefix for the paths reported in errors, e.g. "GET /people".
	//
	// Optional. If you leave this blank, paths start with the name of the target.
	RootPath string

	// The model-mapping collaborator.
	//
	// Optional. If you leave this blank, defaults to a `mapper.Mapper` reading
	// `json` tags.
	Adapter mapper.Adapter

	// Where to log failures (at Debug level) and collaborator contract
	// violations (at Warn level).
	//
	// Optional. If you leave this blank, defaults to `slog.Default()`.
	Logger *slog.Logger

	// The maximal number of sequence elements deserialized concurrently.
	//
	// The limit holds for a whole call, including nested sequences: at most
	// `Parallelism` calls to `Adapter` run at once.
	//
	// Optional. 0 or 1 means that elements are deserialized one at a time.
	// The result is the same in either case, only the scheduling changes.
	// If you set this, `Adapter` must be safe for concurrent use.
	Parallelism int
}

// A preset fit for consuming JSON.
func JSONOptions(root string) Options {
	return Options{
		RootPath:    root,
		Adapter:     nil,
		Logger:      nil,
		Parallelism: 0,
	}
}

// A deserializer, ready to turn values into instances of any target.
//
// A `Deserializer` holds no per-call state. It is safe for concurrent use
// as long as its `Adapter` is.
type Deserializer struct {
	adapter     mapper.Adapter
	rootPath    string
	logger      *slog.Logger
	parallelism int
	witness     initialized.IsInitialized
}

// Create a `Deserializer`.
func MakeDeserializer(options Options) (*Deserializer, error) {
	if options.Parallelism < 0 {
		return nil, fmt.Errorf("invalid option Parallelism, expected a non-negative number, got %d", options.Parallelism)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	adapter := options.Adapter
	if adapter == nil {
		mapperOptions := mapper.JSONOptions()
		mapperOptions.Logger = logger
		defaultMapper, err := mapper.New(mapperOptions)
		if err != nil {
			return nil, fmt.Errorf("could not create default adapter:\n\t * %w", err)
		}
		adapter = defaultMapper
	}
	return &Deserializer{
		adapter:     adapter,
		rootPath:    options.RootPath,
		logger:      logger,
		parallelism: options.Parallelism,
		witness:     initialized.Make(),
	}, nil
}

// Deserialize `v` into `target`.
//
// If `v` is a `value.Map`, the result is whatever the collaborator built.
// If `v` is a `value.Sequence`, the result is a `[]any` with one entry per
// element, each of them deserialized recursively (so nested sequences yield
// nested `[]any`). Any other value fails with `UnexpectedObject`.
//
// On failure, the error is an `*Error` and the result is `nil`.
func (d *Deserializer) Deserialize(v value.Value, target mapper.Target) (any, error) {
	d.witness.Assert()
	return d.deserialize(d.pathFor(target), v, target, d.budget())
}

// Deserialize a decoded JSON value (`map[string]any`, `[]any`, ...) into `target`.
//
// See `value.FromAny` for the conversion.
func (d *Deserializer) DeserializeAny(source any, target mapper.Target) (any, error) {
	d.witness.Assert()
	return d.deserialize(d.pathFor(target), value.FromAny(source), target, d.budget())
}

// Build a single instance of `target` from `fields`.
func (d *Deserializer) DeserializeDict(fields value.Map, target mapper.Target) (any, error) {
	d.witness.Assert()
	return d.dict(d.pathFor(target), fields, target)
}

// Deserialize each element of `elements` into `target`.
//
// The result has the same length and order as `elements`. If any element
// fails, the error is an `ArrayElementsError` listing all failures.
func (d *Deserializer) DeserializeList(elements value.Sequence, target mapper.Target) ([]any, error) {
	d.witness.Assert()
	return d.list(d.pathFor(target), elements, target, d.budget())
}

// Attempt to deserialize a scalar into `target`.
//
// Scalars never describe a model, so this always fails with `UnexpectedObject`.
func (d *Deserializer) DeserializeScalar(scalar value.Scalar, target mapper.Target) (any, error) {
	d.witness.Assert()
	return nil, d.unexpected(d.pathFor(target), scalar, target)
}

// Deserialize a single instance of `T`.
//
// Fails if `v` is not a `value.Map`.
func ModelOf[T any](d *Deserializer, v value.Value) (*T, error) {
	target := mapper.TargetOf[T]()
	result, err := d.Deserialize(v, target)
	if err != nil {
		return nil, err
	}
	return instanceOf[T](target, result)
}

// Deserialize a sequence of instances of `T`.
//
// Fails if `v` is not a `value.Sequence` of `value.Map`.
func ModelsOf[T any](d *Deserializer, v value.Value) ([]*T, error) {
	target := mapper.TargetOf[T]()
	result, err := d.Deserialize(v, target)
	if err != nil {
		return nil, err
	}
	list, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of %s, got %T", target.Name(), result)
	}
	instances := make([]*T, len(list))
	for i, entry := range list {
		instance, err := instanceOf[T](target, entry)
		if err != nil {
			return nil, fmt.Errorf("at %s[%d], %w", target.Name(), i, err)
		}
		instances[i] = instance
	}
	return instances, nil
}

// -------- Implementation --------

func (d *Deserializer) pathFor(target mapper.Target) string {
	if d.rootPath == "" {
		return target.Name()
	}
	return fmt.Sprint(d.rootPath, ".", target.Name())
}

// The workers available to one call, on top of the calling goroutine.
//
// `nil` if elements are deserialized one at a time.
func (d *Deserializer) budget() *semaphore.Weighted {
	if d.parallelism <= 1 {
		return nil
	}
	return semaphore.NewWeighted(int64(d.parallelism - 1))
}

func (d *Deserializer) deserialize(path string, v value.Value, target mapper.Target, budget *semaphore.Weighted) (any, error) {
	switch typed := v.(type) {
	case value.Map:
		return d.dict(path, typed, target)
	case value.Sequence:
		result, err := d.list(path, typed, target, budget)
		if err != nil {
			return nil, err
		}
		return result, nil
	default:
		// Scalars, but also `nil` and any `Value` we do not know about.
		return nil, d.unexpected(path, v, target)
	}
}

func (d *Deserializer) dict(path string, fields value.Map, target mapper.Target) (any, error) {
	instance, err := d.adapter.BuildInstance(target, fields)
	switch {
	case err != nil:
		if !isNil(instance) {
			d.logger.Warn("adapter returned both an instance and an error, discarding the instance",
				"path", path,
				"target", target.Name(),
				"error", err)
		}
		return nil, d.fail(&Error{
			Kind:     ModelObjectCreation,
			Path:     path,
			Target:   target,
			Object:   nil,
			Wrapped:  err,
			Elements: nil,
			Indices:  nil,
		})
	case isNil(instance):
		d.logger.Warn("adapter returned neither an instance nor an error",
			"path", path,
			"target", target.Name())
		return nil, d.fail(&Error{
			Kind:     ModelObjectCreation,
			Path:     path,
			Target:   target,
			Object:   nil,
			Wrapped:  nil,
			Elements: nil,
			Indices:  nil,
		})
	default:
		return instance, nil
	}
}

func (d *Deserializer) list(path string, elements value.Sequence, target mapper.Target, budget *semaphore.Weighted) ([]any, error) {
	results := make([]any, len(elements))
	errs := make([]error, len(elements))
	var group errgroup.Group
	for i, element := range elements {
		elementPath := fmt.Sprintf("%s[%d]", path, i)
		// Hand the element to a new worker if the budget allows it, otherwise
		// run it on this goroutine. `TryAcquire` never blocks, so nested
		// sequences cannot wait on their parents.
		if budget != nil && i < len(elements)-1 && budget.TryAcquire(1) {
			group.Go(func() error {
				defer budget.Release(1)
				results[i], errs[i] = d.deserialize(elementPath, element, target, budget)
				// Failures are collected in `errs`, the group must not cancel siblings.
				return nil
			})
			continue
		}
		results[i], errs[i] = d.deserialize(elementPath, element, target, budget)
	}
	_ = group.Wait()

	var failures []error
	var indices []int
	for i, err := range errs {
		if err != nil {
			failures = append(failures, err)
			indices = append(indices, i)
		}
	}
	if len(failures) > 0 {
		return nil, d.fail(&Error{
			Kind:     ArrayElementsError,
			Path:     path,
			Target:   target,
			Object:   nil,
			Wrapped:  nil,
			Elements: failures,
			Indices:  indices,
		})
	}
	return results, nil
}

func (d *Deserializer) unexpected(path string, v value.Value, target mapper.Target) error {
	return d.fail(&Error{
		Kind:     UnexpectedObject,
		Path:     path,
		Target:   target,
		Object:   v,
		Wrapped:  nil,
		Elements: nil,
		Indices:  nil,
	})
}

func (d *Deserializer) fail(err *Error) error {
	if !d.logger.Enabled(context.Background(), slog.LevelDebug) {
		return err
	}
	d.logger.Debug("deserialization failed",
		"path", err.Path,
		"target", err.Target.Name(),
		"kind", err.Kind.String(),
		"error", err.Error())
	return err
}

// Convert a result of the collaborator into a `*T`.
func instanceOf[T any](target mapper.Target, result any) (*T, error) {
	switch typed := result.(type) {
	case *T:
		return typed, nil
	case T:
		return &typed, nil
	default:
		return nil, fmt.Errorf("expected a single %s, got %T", target.Name(), result)
	}
}

// `true` for `nil` and for typed nil pointers, maps, slices, ... wrapped in an `any`.
func isNil(instance any) bool {
	if instance == nil {
		return true
	}
	reflected := reflect.ValueOf(instance)
	switch reflected.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return reflected.IsNil()
	default:
		return false
	}
}
