package initialized_test

import (
	"testing"

	"github.com/pasqal-io/modelclass/assertions/initialized"
	"gotest.tools/v3/assert"
)

type guarded struct {
	witness initialized.IsInitialized
}

func TestWitness(t *testing.T) {
	good := guarded{witness: initialized.Make()}
	assert.Assert(t, good.witness.Ok())
	good.witness.Assert()

	bad := guarded{} //nolint:exhaustruct
	assert.Assert(t, !bad.witness.Ok())
	defer func() {
		recovered := recover()
		assert.Equal(t, recovered, "struct was not initialized, please use its constructor")
	}()
	bad.witness.Assert()
	t.Fatal("Assert should have panicked")
}
