package ports

import (
	"gonum.org/v1/gonum/mat"
)

// PointSampler draws deterministic sample points inside an axis-aligned box
type PointSampler interface {
	// Sample returns an n x len(minima) matrix whose rows lie in [minima, maxima).
	// The same sampler configuration always yields the same rows.
	Sample(n int, minima, maxima []float64) (*mat.Dense, error)
}
