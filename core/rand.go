package core

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// All randomized operations in this package draw from one process-wide
// source. Reproducible scenario generation requires calling SeedRandom
// before the first randomized operation; without it the source is seeded
// from the global generator.
var randSrc rand.Source = rand.NewPCG(rand.Uint64(), rand.Uint64())

// SeedRandom replaces the package source with a deterministically seeded
// one.
func SeedRandom(seed uint64) {
	randSrc = rand.NewPCG(seed, seed)
}

// normalFactor draws a multiplicative perturbation from N(1, sigma^2).
func normalFactor(sigma float64) float64 {
	return distuv.Normal{Mu: 1, Sigma: sigma, Src: randSrc}.Rand()
}

// uniformBetween draws uniformly from [lo, hi].
func uniformBetween(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: randSrc}.Rand()
}

// randIntN draws a uniform integer in [0, n).
func randIntN(n int) int {
	return rand.New(randSrc).IntN(n)
}
