// Package synth generates synthetic load batches for demos and tests.
//
// Generation is driven by an injectable Rand so the same seed always
// yields the same batch.
package synth

import "math/rand/v2"

// Rand is the randomness a policy draws from. It is also the
// rand.Source behind the faker that fills text columns.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
	Uint64() uint64
}

// NewRand returns a PCG-backed Rand seeded with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
