// Reading the struct tags that drive the default mapper.
//
// Supported tags:
//   - the renaming tag (`json` by default), e.g. `json:"name"` or `json:"-"`;
//   - `default:"..."`, a value to use when the field is missing from the input;
//   - `initialized:""`, to mark a field as already set up by `Initialize()`.
package tags

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/pasqal-io/modelclass/assertions/initialized"
)

const (
	defaultTag     = "default"
	initializedTag = "initialized"
)

// A representation of the tags for a given field.
type Tags struct {
	tags    reflect.StructTag
	renamed []string
	witness initialized.IsInitialized
}

// Tags for a value that doesn't carry any, e.g. the elements of a slice.
func Empty() Tags {
	return Tags{
		tags:    "",
		renamed: nil,
		witness: initialized.Make(),
	}
}

// Read the tags of a struct field.
//
// `renamingTagName` is the name of the tag used for renamings, e.g. "json".
func Parse(tag reflect.StructTag, renamingTagName string) (Tags, error) {
	if renamingTagName == "" {
		return Tags{}, errors.New("missing renaming tag name")
	}
	var renamed []string
	if source, ok := tag.Lookup(renamingTagName); ok {
		renamed = split(source)
		if strings.HasPrefix(source, "-,") {
			// `json:"-,"` is Go's way to name a field "-".
			renamed[0] = "-,"
		}
	}
	if _, ok := tag.Lookup(defaultTag); ok {
		if _, ok := tag.Lookup(initializedTag); ok {
			return Tags{}, fmt.Errorf("tags `%s` and `%s` cannot be combined", defaultTag, initializedTag)
		}
	}
	return Tags{
		tags:    tag,
		renamed: renamed,
		witness: initialized.Make(),
	}, nil
}

// Return the public name of a field, i.e. the key used to look it up
// in the input.
//
// e.g. for json, if there's a tag `json:"foo"`, this means that the field
// should be read from key `foo`. Falls back to `fieldName`.
func (tags Tags) PublicFieldName(fieldName string) string {
	tags.witness.Assert()
	switch {
	case len(tags.renamed) == 0 || tags.renamed[0] == "":
		return fieldName
	case tags.renamed[0] == "-,":
		return "-"
	default:
		return tags.renamed[0]
	}
}

// Return `true` if this field must never be read from the input (`json:"-"`).
func (tags Tags) IsSkipped() bool {
	tags.witness.Assert()
	return len(tags.renamed) == 1 && tags.renamed[0] == "-"
}

// Return the default value that may be used to initialize a
// field if no value is provided.
//
// This is tag `default`. Unlike other tags, its content is not split on commas.
func (tags Tags) Default() *string {
	tags.witness.Assert()
	result, ok := tags.tags.Lookup(defaultTag)
	if !ok {
		return nil
	}
	return &result
}

// Return `true` if this field should be considered pre-initialized, i.e.
// a missing value is not an error.
//
// This is tag `initialized`.
func (tags Tags) IsPreinitialized() bool {
	tags.witness.Assert()
	_, ok := tags.tags.Lookup(initializedTag)
	return ok
}

// Lookup a key, splitting its content on commas.
func (tags Tags) Lookup(key string) ([]string, bool) {
	tags.witness.Assert()
	source, ok := tags.tags.Lookup(key)
	if !ok {
		return nil, false
	}
	return split(source), true
}

// Split a comma-separated tag value, dropping blanks.
//
// The result always contains at least one entry, possibly "".
func split(source string) []string {
	result := make([]string, 0)
	for i, s := range strings.Split(source, ",") {
		trimmed := strings.TrimSpace(s)
		if trimmed != "" || i == 0 {
			result = append(result, trimmed)
		}
	}
	return result
}
