package sampling

import (
	"math/rand/v2"
	"time"
)

// RandSource draws window start offsets. IntN returns a value in [0, n).
type RandSource interface {
	IntN(n int) int
}

// pcgStream is a fixed second PCG word so a single seed fully determines the stream
const pcgStream = 0x9e3779b97f4a7c15

// NewRandSource returns a PCG-backed source and the seed it was built from.
// A zero seed is replaced by one derived from the clock.
func NewRandSource(seed uint64) (RandSource, uint64) {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
		if seed == 0 {
			seed = 1
		}
	}
	return rand.New(rand.NewPCG(seed, pcgStream)), seed
}
