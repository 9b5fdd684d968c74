package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: The process-wide PRNG used for advertising jitter.
 *
 * spec.md 9: the [0,10)ms advertising delay comes from the
 * process-wide PRNG, seeded at start; it must not be replaced with a
 * cryptographic source, and tests that need determinism inject a
 * seed. Grounded on the teacher's own use of an unseeded math/rand
 * for jitter/backoff timing (beacon.go, digipeater.go slot delays).
 *
 *------------------------------------------------------------------*/

import (
	"math/rand"
	"sync"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(1))
)

// SeedRand reseeds the shared jitter PRNG. Call once at startup with
// a time-derived seed in production; tests call it with a fixed
// value for determinism.
func SeedRand(seed int64) {
	randMu.Lock()
	defer randMu.Unlock()

	randSource = rand.New(rand.NewSource(seed))
}

// pseudoRandBelow returns a value in [0, n).
func pseudoRandBelow(n int) int {
	randMu.Lock()
	defer randMu.Unlock()

	return randSource.Intn(n)
}
