package ports

import (
	"pdfint/domain/phasespace"
)

// Integrand is a fittable function the integrator normalises. The engine
// never inspects an integrand's internals; everything it needs goes through
// this contract.
type Integrand interface {
	// Name identifies the integrand in diagnostics and errors
	Name() string

	// Observables lists the dimensions the integrand depends on
	Observables() []string

	// Evaluate returns the (unnormalised) function value at the point
	Evaluate(point *phasespace.DataPoint) (float64, error)

	// AnalyticIntegral returns the integrand's own integral over the boundary
	// for the discrete assignment of point. Integrands without one return
	// core.ErrNoAnalyticIntegral.
	AnalyticIntegral(point *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error)

	// NonIntegrable lists dimensions that must never be integrated numerically
	NonIntegrable() []string

	// NumericalOnly is true when the integrand relies purely on numerical normalisation
	NumericalOnly() bool

	CachingEnabled() bool
	CacheValid(point *phasespace.DataPoint, boundary *phasespace.Boundary) bool
	CachedIntegral() float64
	SetCache(value float64, point *phasespace.DataPoint, boundary *phasespace.Boundary)
}

// Cloner is implemented by integrands that can be evaluated concurrently.
// Clone must return a deep copy sharing no mutable state (scratch buffers,
// caches) with the receiver; parameters are copied by value.
type Cloner interface {
	Clone() Integrand
}

// Versioned is implemented by integrands that can fingerprint their current
// parameter values. The fingerprint changes whenever a parameter changes.
type Versioned interface {
	ParameterFingerprint() string
}
