// Package sampler generates low-discrepancy point sets for quasi-random
// Monte-Carlo integration.
package sampler

import (
	"math"
	"math/rand/v2"

	"pdfint/internal/errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"
)

// DefaultSeed fixes the scrambling permutations when no seed is configured
const DefaultSeed uint64 = 0x5eed

// MaxDimensions is the largest dimension the scrambled Halton sequence supports
const MaxDimensions = 999

// Halton produces Owen-scrambled Halton points. The scrambling permutations
// are drawn from a PCG stream seeded with Seed, so identical calls produce
// identical point sets.
type Halton struct {
	seed uint64
}

// NewHalton creates a sampler; a zero seed selects DefaultSeed
func NewHalton(seed uint64) *Halton {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &Halton{seed: seed}
}

func (h *Halton) Seed() uint64 { return h.seed }

// Sample implements ports.PointSampler
func (h *Halton) Sample(n int, minima, maxima []float64) (points *mat.Dense, err error) {
	dim := len(minima)
	if n <= 0 {
		return nil, errors.ConfigInvalidf("sample count must be positive, got %d", n)
	}
	if dim == 0 || dim != len(maxima) {
		return nil, errors.ConfigInvalidf("sampling needs matching non-empty bounds, got %d and %d", len(minima), len(maxima))
	}
	if dim > MaxDimensions {
		return nil, errors.ConfigInvalidf("halton sampling supports at most %d dimensions, got %d", MaxDimensions, dim)
	}

	bounds := make([]r1.Interval, dim)
	for i := range minima {
		lo, hi := minima[i], maxima[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo > hi {
			return nil, errors.ConfigInvalidf("invalid sampling range [%g, %g] in dimension %d", lo, hi, i)
		}
		bounds[i] = r1.Interval{Min: lo, Max: hi}
	}

	defer func() {
		if r := recover(); r != nil {
			points = nil
			err = errors.ConfigInvalidf("halton sampling failed: %v", r)
		}
	}()

	// Sample accumulates into the batch, so it must start zeroed
	points = mat.NewDense(n, dim, nil)
	samplemv.Halton{
		Kind: samplemv.Owen,
		Q:    distmv.NewUniform(bounds, nil),
		Src:  rand.NewPCG(h.seed, h.seed^0x9e3779b97f4a7c15),
	}.Sample(points)
	return points, nil
}
