package mapper

import (
	"encoding"
	"fmt"
	"reflect"

	tagsPkg "github.com/pasqal-io/modelclass/deserialize/tags"
	"github.com/pasqal-io/modelclass/deserialize/value"
	"github.com/pasqal-io/modelclass/validation"
)

// A deserializer writing into `slot`, which MUST be settable.
//
// `data` is `nil` if the value is missing from the input.
type reflectDeserializer func(slot reflect.Value, data value.Value) error

var initializerInterface = reflect.TypeOf((*validation.Initializer)(nil)).Elem()
var validatorInterface = reflect.TypeOf((*validation.Validator)(nil)).Elem()
var textUnmarshalerInterface = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// The state of one compilation.
type compiler struct {
	options innerOptions

	// Structs currently being compiled, used to tie the knot on recursive types.
	inProgress map[reflect.Type]*structBody
}

func makeCompiler(options innerOptions) compiler {
	return compiler{
		options:    options,
		inProgress: make(map[reflect.Type]*structBody),
	}
}

// Compile the deserializer for the outermost struct.
func (c compiler) outer(typ reflect.Type) (reflectDeserializer, error) {
	// The outer struct can't have any tags attached.
	noTags := tagsPkg.Empty()
	return c.field(typeName(typ), typ, &noTags, false)
}

// Compile a deserializer for any field.
//
//   - `path` the human-readable path into the data structure, used for error-reporting;
//   - `typ` the dynamic type for the field being compiled;
//   - `tags` the table of tags for this field;
//   - `preinitialized` if a missing value is acceptable, typically because of `Initializer`.
func (c compiler) field(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	var result reflectDeserializer
	var err error
	switch {
	case reflect.PointerTo(typ).Implements(textUnmarshalerInterface):
		result, err = c.text(path, typ, tags, preinitialized)
	case typ.Kind() == reflect.Pointer:
		result, err = c.pointer(path, typ, tags, preinitialized)
	case typ.Kind() == reflect.Slice, typ.Kind() == reflect.Array:
		result, err = c.slice(path, typ, tags, preinitialized)
	case typ.Kind() == reflect.Struct:
		result, err = c.structure(path, typ, tags, preinitialized)
	case typ.Kind() == reflect.Map:
		result, err = c.dictionary(path, typ, tags, preinitialized)
	case typ.Kind() == reflect.Interface:
		result, err = c.dynamic(path, typ, tags, preinitialized)
	default:
		result, err = c.flat(path, typ, tags, preinitialized)
	}
	if err != nil {
		return nil, fmt.Errorf("could not generate a deserializer for %s with type %s:\n\t * %w", path, typeName(typ), err)
	}
	return result, nil
}

// The fields of a struct, compiled once per type and per compilation.
type structBody struct {
	typ           reflect.Type
	fields        []fieldDeserializer
	canInitialize bool
	canValidate   bool
}

type fieldDeserializer struct {
	// The index of the field in the struct.
	index int

	// The key used to look up the field in the input.
	publicName string

	// If `true`, the field is an embedded struct read from the same map as its container.
	flattened bool

	deserializer reflectDeserializer
}

// Compile the fields of a struct.
func (c compiler) body(path string, typ reflect.Type) (*structBody, error) {
	if body, ok := c.inProgress[typ]; ok {
		// Recursive type, `body` will be complete by the time we use it.
		return body, nil
	}
	canInitialize, err := canInterface(typ, initializerInterface)
	if err != nil {
		return nil, err
	}
	canValidate, err := canInterface(typ, validatorInterface)
	if err != nil {
		return nil, err
	}
	body := &structBody{
		typ:           typ,
		fields:        make([]fieldDeserializer, 0, typ.NumField()),
		canInitialize: canInitialize,
		canValidate:   canValidate,
	}
	c.inProgress[typ] = body
	defer delete(c.inProgress, typ)

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tags, err := tagsPkg.Parse(field.Tag, c.options.renamingTagName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tags at %s.%s:\n\t * %w", path, field.Name, err)
		}
		preinitialized := canInitialize || tags.IsPreinitialized()

		// By Go convention, a field with lower-case name or renamed to "-" is private
		// and never reads external data.
		if !field.IsExported() || tags.IsSkipped() {
			if !field.IsExported() && !preinitialized {
				return nil, fmt.Errorf("struct %s contains a field \"%s\" that is not public, you should either make it public or implement `Initializer`", path, field.Name)
			}
			continue
		}
		publicName := tags.PublicFieldName(field.Name)
		flattened := field.Anonymous && field.Type.Kind() == reflect.Struct && publicName == field.Name
		fieldPath := path + "." + publicName
		if flattened {
			fieldPath = path
		}
		deserializer, err := c.field(fieldPath, field.Type, &tags, preinitialized)
		if err != nil {
			return nil, err
		}
		body.fields = append(body.fields, fieldDeserializer{
			index:        i,
			publicName:   publicName,
			flattened:    flattened,
			deserializer: deserializer,
		})
	}
	return body, nil
}

// Fill in the struct pointed to by `resultPtr`.
func (body *structBody) fill(path string, resultPtr reflect.Value, inMap value.Map, options innerOptions) error {
	if body.canInitialize {
		initializer, ok := resultPtr.Interface().(validation.Initializer)
		if !ok {
			panic("at this stage, we should have an Initializer") // Checked by `canInterface`.
		}
		if err := initializer.Initialize(); err != nil {
			err = fmt.Errorf("at %s, encountered an error while initializing optional fields:\n\t * %w", path, err)
			options.logger.Error("Internal error during deserialization", "error", err)
			return CustomDeserializerError{
				Operation: "initializer",
				Structure: "struct",
				Wrapped:   err,
			}
		}
	}

	result := resultPtr.Elem()
	for _, field := range body.fields {
		var fieldValue value.Value
		if field.flattened {
			fieldValue = inMap
		} else if found, ok := inMap.Lookup(field.publicName); ok {
			fieldValue = orNull(found)
		}
		if err := field.deserializer(result.Field(field.index), fieldValue); err != nil {
			return err
		}
	}

	if body.canValidate {
		validator, ok := resultPtr.Interface().(validation.Validator)
		if !ok {
			panic("at this stage, we should have a Validator") // Checked by `canInterface`.
		}
		if err := validator.Validate(); err != nil {
			return validation.WrapError(path, err)
		}
	}
	return nil
}

// Construct a dynamically-typed deserializer for structs.
func (c compiler) structure(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	body, err := c.body(path, typ)
	if err != nil {
		return nil, err
	}

	// True if this struct has a default value of {}.
	isEmptyDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource != "{}" {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for structs is \"{}\", got: %s", path, *defaultSource)
		}
		isEmptyDefault = true
	}

	options := c.options
	return func(slot reflect.Value, data value.Value) error {
		switch {
		case data != nil:
			// We have all the data we need, proceed.
		case preinitialized:
			// No value? That's ok, we got a value from preinitialization.
			return nil
		case isEmptyDefault:
			data = value.Map{}
		default:
			return fmt.Errorf("missing object value at %s, expected %s", path, typeName(typ))
		}
		inMap, ok := data.AsDict()
		if !ok {
			return fmt.Errorf("invalid value at %s, expected an object of type %s, got %v", path, typeName(typ), data.Interface())
		}
		resultPtr := reflect.New(typ)
		if err := body.fill(path, resultPtr, inMap, options); err != nil {
			return err
		}
		slot.Set(resultPtr.Elem())
		return nil
	}, nil
}

// Construct a dynamically-typed deserializer for `map[string]T`.
func (c compiler) dictionary(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	if typ.Key().Kind() != reflect.String {
		return nil, fmt.Errorf("invalid map type at %s, only map[string]T can be converted into a deserializer", path)
	}
	subTags := tagsPkg.Empty()
	contentDeserializer, err := c.field(path+"[]", typ.Elem(), &subTags, false)
	if err != nil {
		return nil, err
	}

	// True if this map has a default value of {}.
	isEmptyDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource != "{}" {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for maps is \"{}\", got: %s", path, *defaultSource)
		}
		isEmptyDefault = true
	}

	return func(slot reflect.Value, data value.Value) error {
		switch {
		case data != nil:
			// We have all the data we need, proceed.
		case preinitialized:
			return nil
		case isEmptyDefault:
			data = value.Map{}
		default:
			return fmt.Errorf("missing object value at %s, expected %s", path, typeName(typ))
		}
		inMap, ok := data.AsDict()
		if !ok {
			return fmt.Errorf("invalid value at %s, expected an object of type %s, got %v", path, typeName(typ), data.Interface())
		}
		result := reflect.MakeMapWithSize(typ, len(inMap))
		for _, k := range inMap.Keys() {
			content := reflect.New(typ.Elem()).Elem()
			if err := contentDeserializer(content, orNull(inMap[k])); err != nil {
				return err
			}
			result.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), content)
		}
		slot.Set(result)
		return nil
	}, nil
}

// Construct a dynamically-typed deserializer for slices and arrays.
func (c compiler) slice(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	arrayPath := path + "[]"
	isEmptyDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource != "[]" || typ.Kind() == reflect.Array {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for slices is \"[]\", got: %s", path, *defaultSource)
		}
		isEmptyDefault = true
	}

	subTags := tagsPkg.Empty()
	elementDeserializer, err := c.field(arrayPath, typ.Elem(), &subTags, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a deserializer for %s\n\t * %w", path, err)
	}

	return func(slot reflect.Value, data value.Value) error {
		var input value.Sequence
		switch {
		case data != nil:
			var ok bool
			if input, ok = data.AsSlice(); !ok {
				return fmt.Errorf("invalid value at %s, expected an array, got %v", path, data.Interface())
			}
		case preinitialized:
			return nil
		case isEmptyDefault:
			input = value.Sequence{}
		default:
			return fmt.Errorf("missing value at %s, expected an array of %s", path, typeName(typ.Elem()))
		}

		var result reflect.Value
		if typ.Kind() == reflect.Array {
			if typ.Len() != len(input) {
				return fmt.Errorf("invalid array length at %s, expecting %d, got %d", path, typ.Len(), len(input))
			}
			result = reflect.New(typ).Elem()
		} else {
			result = reflect.MakeSlice(typ, len(input), len(input))
		}
		for i, element := range input {
			if err := elementDeserializer(result.Index(i), orNull(element)); err != nil {
				return fmt.Errorf("error while deserializing %s[%d]:\n\t * %w", path, i, err)
			}
		}
		slot.Set(result)
		return nil
	}, nil
}

// Construct a dynamically-typed deserializer for pointers.
//
// JSON `null` becomes a `nil` pointer.
func (c compiler) pointer(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	subTags := tagsPkg.Empty()
	elementDeserializer, err := c.field(path+"*", typ.Elem(), &subTags, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a deserializer for %s\n\t * %w", path, err)
	}

	// True if we support `nil` as default value.
	isNilDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource != "nil" {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for pointers is \"nil\", got: %s", path, *defaultSource)
		}
		isNilDefault = true
	}

	return func(slot reflect.Value, data value.Value) error {
		switch {
		case data != nil:
			if isNull(data) {
				slot.SetZero()
				return nil
			}
		case preinitialized:
			return nil
		case isNilDefault:
			slot.SetZero()
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", path, typeName(typ.Elem()))
		}

		resultPtr := reflect.New(typ.Elem())
		if err := elementDeserializer(resultPtr.Elem(), data); err != nil {
			return err
		}
		slot.Set(resultPtr)
		return nil
	}, nil
}

// Construct a deserializer for `any`.
//
// The decoded value is stored as is, e.g. a JSON object becomes a `map[string]any`.
func (c compiler) dynamic(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	if typ.NumMethod() != 0 {
		return nil, fmt.Errorf("cannot deserialize into interface %s at %s, only empty interfaces are supported", typ, path)
	}
	if tags.Default() != nil {
		return nil, fmt.Errorf("at %s, `default` is not supported for interfaces", path)
	}
	return func(slot reflect.Value, data value.Value) error {
		switch {
		case data != nil:
		case preinitialized:
			return nil
		default:
			return fmt.Errorf("missing value at %s", path)
		}
		if isNull(data) {
			slot.SetZero()
			return nil
		}
		slot.Set(reflect.ValueOf(data.Interface()))
		return nil
	}, nil
}

// Construct a deserializer for types that implement `encoding.TextUnmarshaler`.
func (c compiler) text(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	parse := func(source string) (reflect.Value, error) {
		resultPtr := reflect.New(typ)
		unmarshaler, ok := resultPtr.Interface().(encoding.TextUnmarshaler)
		if !ok {
			panic("at this stage, we should have a TextUnmarshaler")
		}
		if err := unmarshaler.UnmarshalText([]byte(source)); err != nil {
			return reflect.Value{}, fmt.Errorf("at %s, expected to be able to parse a %s:\n\t * %w", path, typeName(typ), err)
		}
		return resultPtr.Elem(), nil
	}

	var defaultValue *reflect.Value
	if defaultSource := tags.Default(); defaultSource != nil {
		parsed, err := parse(*defaultSource)
		if err != nil {
			return nil, fmt.Errorf("cannot parse default value at %s\n\t * %w", path, err)
		}
		defaultValue = &parsed
	}

	return func(slot reflect.Value, data value.Value) error {
		switch {
		case data != nil:
		case preinitialized:
			return nil
		case defaultValue != nil:
			slot.Set(*defaultValue)
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", path, typeName(typ))
		}
		source, ok := data.Interface().(string)
		if _, isScalar := data.(value.Scalar); !ok || !isScalar {
			return fmt.Errorf("invalid value at %s, expected %s, got %v", path, typeName(typ), data.Interface())
		}
		parsed, err := parse(source)
		if err != nil {
			return err
		}
		slot.Set(parsed)
		return nil
	}, nil
}

// Construct a deserializer for a flat field (string, int, etc.).
func (c compiler) flat(path string, typ reflect.Type, tags *tagsPkg.Tags, preinitialized bool) (reflectDeserializer, error) {
	parser := lookupParser(typ)
	if parser == nil {
		return nil, fmt.Errorf("at %s, type %s is not supported", path, typ)
	}

	// If a `default` tag is provided, the parsed default value.
	var defaultValue *reflect.Value
	if defaultSource := tags.Default(); defaultSource != nil {
		converted, err := parseInto(*defaultSource, typ, parser)
		if err != nil {
			return nil, fmt.Errorf("cannot parse default value at %s\n\t * %w", path, err)
		}
		defaultValue = &converted
	}

	return func(slot reflect.Value, data value.Value) error {
		switch {
		case data != nil:
		case preinitialized:
			return nil
		case defaultValue != nil:
			slot.Set(*defaultValue)
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", path, typeName(typ))
		}

		input := data.Interface()
		if _, isScalar := data.(value.Scalar); !isScalar || input == nil {
			if input == nil {
				input = "<nil>"
			}
			return fmt.Errorf("invalid value at %s, expected %s, got %v", path, typeName(typ), input)
		}
		if converted, ok := convertScalar(input, typ); ok {
			slot.Set(converted)
			return nil
		}
		// The input is represented as a string, but we're not looking for a string.
		// This can happen e.g. for numbers serialized as strings by a client.
		if source, ok := input.(string); ok {
			converted, err := parseInto(source, typ, parser)
			if err == nil {
				slot.Set(converted)
				return nil
			}
			return fmt.Errorf("invalid value at %s, expected %s, got %q\n\t * %w", path, typeName(typ), source, err)
		}
		return fmt.Errorf("invalid value at %s, expected %s, got %v", path, typeName(typ), input)
	}, nil
}

// Check that a type implements an interface *on pointers*.
func canInterface(typ reflect.Type, interfaceType reflect.Type) (bool, error) {
	if typ.Implements(interfaceType) {
		return false, fmt.Errorf("type %s implements %s - it should be implemented by pointer type *%s instead", typ, interfaceType, typ)
	}
	return reflect.PointerTo(typ).Implements(interfaceType), nil
}

// Hand-built maps and sequences may contain `nil`, treat it as `null`.
func orNull(v value.Value) value.Value {
	if v == nil {
		return value.NewScalar(nil)
	}
	return v
}

func isNull(v value.Value) bool {
	scalar, ok := v.(value.Scalar)
	return ok && scalar.IsNull()
}
