// Package pdf provides reference integrands with closed-form integrals. They
// drive the command line tool and exercise every path of the integrator.
package pdf

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"pdfint/domain/phasespace"
	"pdfint/internal/errors"
)

// base carries the bookkeeping every reference integrand shares: identity,
// parameters and the normalisation cache
type base struct {
	*phasespace.NormalisationCache

	name          string
	observables   []string
	nonIntegrable []string
	numericalOnly bool

	mu     sync.RWMutex
	params map[string]float64
}

func newBase(name string, observables []string, params map[string]float64) *base {
	p := make(map[string]float64, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &base{
		NormalisationCache: phasespace.NewNormalisationCache(),
		name:               name,
		observables:        observables,
		params:             p,
	}
}

// cloneBase copies parameters and gives the copy an empty cache of its own
func (b *base) cloneBase() *base {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c := newBase(b.name, b.observables, b.params)
	c.NormalisationCache = b.NormalisationCache.Reset()
	c.nonIntegrable = b.nonIntegrable
	c.numericalOnly = b.numericalOnly
	return c
}

func (b *base) Name() string            { return b.name }
func (b *base) Observables() []string   { return append([]string(nil), b.observables...) }
func (b *base) NonIntegrable() []string { return append([]string(nil), b.nonIntegrable...) }
func (b *base) NumericalOnly() bool     { return b.numericalOnly }

// SetNumericalOnly makes the integrand hide its analytic integral from the engine
func (b *base) SetNumericalOnly(numerical bool) { b.numericalOnly = numerical }

// SetNonIntegrable marks dimensions the engine must hold fixed
func (b *base) SetNonIntegrable(names ...string) {
	b.nonIntegrable = append([]string(nil), names...)
}

// Parameter returns the named parameter, NaN when unknown
func (b *base) Parameter(name string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.params[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// SetParameter updates a known parameter and drops the cached integral
func (b *base) SetParameter(name string, value float64) error {
	b.mu.Lock()
	if _, ok := b.params[name]; !ok {
		b.mu.Unlock()
		return errors.InvalidInput(fmt.Sprintf("unknown parameter %q", name)).ForIntegrand(b.name)
	}
	b.params[name] = value
	b.mu.Unlock()
	b.Invalidate()
	return nil
}

// Parameters lists the parameter names, sorted
func (b *base) Parameters() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.params))
	for k := range b.params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParameterFingerprint implements ports.Versioned
func (b *base) ParameterFingerprint() string {
	names := b.Parameters()
	b.mu.RLock()
	defer b.mu.RUnlock()
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%x", k, math.Float64bits(b.params[k]))
	}
	return strings.Join(parts, ";")
}

// continuousRange returns the bounds of a continuous observable, or ok=false
// when the boundary treats it as discrete
func continuousRange(boundary *phasespace.Boundary, name string) (lo, hi float64, ok bool, err error) {
	c, err := boundary.Constraint(name)
	if err != nil {
		return 0, 0, false, err
	}
	if c.IsDiscrete() {
		return 0, 0, false, nil
	}
	return c.Minimum(), c.Maximum(), true, nil
}
