package quadrature

import (
	"math"

	"pdfint/internal/errors"

	"gonum.org/v1/gonum/integrate/quad"
)

// DefaultGaussNodes is the Gauss-Legendre order used when none is configured
const DefaultGaussNodes = 64

// Function is a single-variable integrand that can fail
type Function func(x float64) (float64, error)

// OneDim integrates one-dimensional functions with fixed-order Gauss-Legendre quadrature
type OneDim struct {
	nodes int
}

// NewOneDim creates a one-dimensional integrator; nodes <= 0 selects DefaultGaussNodes
func NewOneDim(nodes int) *OneDim {
	if nodes <= 0 {
		nodes = DefaultGaussNodes
	}
	return &OneDim{nodes: nodes}
}

// Nodes returns the quadrature order
func (o *OneDim) Nodes() int {
	return o.nodes
}

// Integrate returns the integral of f over [min, max]. Infinite bounds are
// handled by gonum's variable substitution. The first evaluation error stops
// the integral and is returned unchanged.
func (o *OneDim) Integrate(f Function, min, max float64) (float64, error) {
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return 0, errors.ConfigInvalidf("invalid integration range [%g, %g]", min, max)
	}
	if min == max {
		return 0, nil
	}

	var evalErr error
	g := func(x float64) float64 {
		if evalErr != nil {
			return 0
		}
		v, err := f(x)
		if err != nil {
			evalErr = err
			return 0
		}
		return v
	}

	var rule quad.FixedLocationer = quad.Legendre{}
	if math.IsInf(min, 0) || math.IsInf(max, 0) {
		rule = nil
	}
	result := quad.Fixed(g, min, max, o.nodes, rule, 0)
	if evalErr != nil {
		return 0, evalErr
	}
	return result, nil
}
