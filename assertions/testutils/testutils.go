// Helpers for writing tests against this module.
//
// Besides equality assertions, this package offers:
//   - a seeder for randomized tests (`SetUpSuite`, `SetUp`), see random.go;
//   - a polling assertion (`AssertTrueBeforeTimeout`), see poll.go;
//   - JSON fixtures (`DecodeJSON`).
package testutils

import (
	"fmt"
	"reflect"
	"regexp"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/go-cmp/cmp"
	"github.com/pasqal-io/modelclass/deserialize/value"
)

// Fail if two values are different.
//
// Does not stop the test.
func AssertEqual[T comparable](t testing.TB, actual, expected T, explanation string) {
	t.Helper()
	if expected != actual {
		t.Errorf("got: %+v; want: %+v (%s)", actual, expected, explanation)
		if reflect.ValueOf(expected).Kind() == reflect.Pointer {
			t.Error("Warning: you're comparing two pointers -- pointers are only equal if they point to the same physical object")
		}
	}
}

func AssertEqualArrays[T comparable](t testing.TB, actual, expected []T, explanation string) {
	t.Helper()
	AssertEqual(t, len(actual), len(expected), fmt.Sprintf("%s - invalid length", explanation))
	for i := 0; i < len(actual) && i < len(expected); i++ {
		AssertEqual(t, actual[i], expected[i], fmt.Sprintf("%s - invalid item %d", explanation, i))
	}
}

// Fail if two values are structurally different, printing a diff.
//
// Does not stop the test.
func AssertDeepEqual(t testing.TB, actual, expected any, explanation string, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		t.Errorf("unexpected value (%s), -want +got:\n%s", explanation, diff)
	}
}

func AssertRegexp(t testing.TB, actual string, pattern *regexp.Regexp, explanation string) {
	t.Helper()
	if pattern.MatchString(actual) {
		return
	}
	t.Errorf("got: %+v; expected: %+v (%s)", actual, pattern, explanation)
}

// Decode a JSON fixture into a `value.Value`.
//
// Stops the test if the fixture is not valid JSON.
func DecodeJSON(t testing.TB, payload string) value.Value {
	t.Helper()
	var decoded any
	if err := sonic.UnmarshalString(payload, &decoded); err != nil {
		t.Fatalf("payload is invalid JSON, got %s\n\t * %s", payload, err)
	}
	return value.FromAny(decoded)
}
