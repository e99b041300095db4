package testutils

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Set this environment variable to replay a randomized test with a given seed,
// e.g. `MODELCLASS_TEST_SEED=1234 go test ./... -run TestFoo`.
const SeedEnvironmentVariable = "MODELCLASS_TEST_SEED"

// The suite-wide source of per-test seeds.
var suite struct {
	mu     sync.Mutex
	source *rand.Rand
}

// Reseed the suite-wide seed source from a non-deterministic entropy source.
//
// Call it once per test binary, typically from `TestMain`:
//
//	func TestMain(m *testing.M) {
//		testutils.SetUpSuite()
//		os.Exit(m.Run())
//	}
//
// Each call reseeds from fresh entropy. `SetUp` calls it lazily if you forget.
func SetUpSuite() {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	suite.source = rand.New(rand.NewSource(entropySeed())) //nolint:gosec
}

// Prepare a randomized test case.
//
// Draws a fresh seed, logs it so that a failing run can be reproduced, and
// returns a generator seeded with it. Each test case owns its generator, so
// tests running in parallel cannot interfere with each other's sequence.
//
// If `SeedEnvironmentVariable` is set, its value is used as the seed instead.
func SetUp(t testing.TB) *RNG {
	t.Helper()
	seed, fromEnvironment, err := drawSeed()
	if err != nil {
		t.Fatalf("invalid %s:\n\t * %s", SeedEnvironmentVariable, err)
	}
	if fromEnvironment {
		t.Logf("random seed: %d (from %s)", seed, SeedEnvironmentVariable)
	} else {
		t.Logf("random seed: %d (rerun with %s=%d to reproduce)", seed, SeedEnvironmentVariable, seed)
	}
	return NewRNG(seed)
}

func drawSeed() (int64, bool, error) {
	if source, ok := os.LookupEnv(SeedEnvironmentVariable); ok && source != "" {
		seed, err := strconv.ParseInt(source, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("expected an integer, got %q", source)
		}
		return seed, true, nil
	}
	suite.mu.Lock()
	defer suite.mu.Unlock()
	if suite.source == nil {
		suite.source = rand.New(rand.NewSource(entropySeed())) //nolint:gosec
	}
	return suite.source.Int63(), false, nil
}

func entropySeed() int64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// A seeded pseudo-random generator for one test case.
//
// It is safe for concurrent use.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// Create a generator with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		mu:   sync.Mutex{},
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec
		seed: seed,
	}
}

// The seed this generator was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Restart the sequence from the initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// A non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// A non-negative pseudo-random 63-bit integer.
func (r *RNG) Int63() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63()
}

// A pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

func (r *RNG) Bool() bool {
	return r.Intn(2) == 1
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// A pseudo-random string of `n` ASCII letters.
func (r *RNG) String(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = letters[r.rand.Intn(len(letters))]
	}
	return string(buf)
}

// Fill `p` with pseudo-random bytes, implementing `io.Reader`.
func (r *RNG) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Read(p) //nolint:wrapcheck
}

// A version 4 UUID drawn from this generator, reproducible with the seed.
func (r *RNG) UUID() uuid.UUID {
	return uuid.Must(uuid.NewRandomFromReader(r))
}
