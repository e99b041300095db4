package tags_test

import (
	"reflect"
	"testing"

	"github.com/pasqal-io/modelclass/deserialize/tags"
	"gotest.tools/v3/assert"
)

type RandomStruct struct {
	ABC         string  `first:"1,2,3" second:"" third:"abc" fourth:"1,     2,3" fifth:"    abc  " `
	Renamed     string  `json:"renamed,omitempty"`
	OptionsOnly string  `json:",omitempty"`
	Skipped     string  `json:"-"`
	Dash        string  `json:"-,"`
	DefaultNil  *string `default:"nil"`
	Interesting string  `default:"abc, def" json:"interesting" initialized:"arbitrary content"`
	Initialized string  `initialized:""`
}

func parseField(t *testing.T, name string) (tags.Tags, error) {
	t.Helper()
	field, ok := reflect.TypeOf(RandomStruct{}).FieldByName(name) //nolint:exhaustruct
	assert.Assert(t, ok, "missing field %s", name)
	return tags.Parse(field.Tag, "json")
}

func TestReadTags(t *testing.T) {
	parsed, err := parseField(t, "ABC")
	assert.NilError(t, err)

	for key, expected := range map[string][]string{
		"first":  {"1", "2", "3"},
		"second": {""},
		"third":  {"abc"},
		"fourth": {"1", "2", "3"},
		"fifth":  {"abc"},
	} {
		found, ok := parsed.Lookup(key)
		assert.Assert(t, ok, "could not find key %s", key)
		assert.DeepEqual(t, found, expected)
	}

	_, ok := parsed.Lookup("absent")
	assert.Assert(t, !ok, "I should not have found a non-existent key")
	assert.Assert(t, !parsed.IsPreinitialized(), "This field is not preinitialized")
	assert.Assert(t, parsed.Default() == nil, "This field has no default")
	assert.Equal(t, parsed.PublicFieldName("ABC"), "ABC")
}

func TestRenaming(t *testing.T) {
	renamed, err := parseField(t, "Renamed")
	assert.NilError(t, err)
	assert.Equal(t, renamed.PublicFieldName("Renamed"), "renamed")
	assert.Assert(t, !renamed.IsSkipped())

	optionsOnly, err := parseField(t, "OptionsOnly")
	assert.NilError(t, err)
	assert.Equal(t, optionsOnly.PublicFieldName("OptionsOnly"), "OptionsOnly")

	skipped, err := parseField(t, "Skipped")
	assert.NilError(t, err)
	assert.Assert(t, skipped.IsSkipped())

	dash, err := parseField(t, "Dash")
	assert.NilError(t, err)
	assert.Assert(t, !dash.IsSkipped())
	assert.Equal(t, dash.PublicFieldName("Dash"), "-")
}

func TestDefaults(t *testing.T) {
	defaultNil, err := parseField(t, "DefaultNil")
	assert.NilError(t, err)
	assert.Equal(t, *defaultNil.Default(), "nil")

	initialized, err := parseField(t, "Initialized")
	assert.NilError(t, err)
	assert.Assert(t, initialized.IsPreinitialized())
	assert.Assert(t, initialized.Default() == nil)
}

func TestConflictingTags(t *testing.T) {
	_, err := parseField(t, "Interesting")
	assert.Error(t, err, "tags `default` and `initialized` cannot be combined")
}

func TestMissingTagName(t *testing.T) {
	_, err := tags.Parse(`json:"x"`, "")
	assert.Error(t, err, "missing renaming tag name")
}

func TestEmptyTags(t *testing.T) {
	empty := tags.Empty()
	assert.Equal(t, empty.PublicFieldName("Field"), "Field")
	assert.Assert(t, !empty.IsSkipped())
	assert.Assert(t, !empty.IsPreinitialized())
	assert.Assert(t, empty.Default() == nil)
}
