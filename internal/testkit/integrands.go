package testkit

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"pdfint/domain/core"
	"pdfint/domain/phasespace"
	"pdfint/ports"
)

// ErrInjected is returned by integrands configured to fail
var ErrInjected = errors.New("injected evaluation failure")

// EvalFunc computes the value of a FakeIntegrand at a point
type EvalFunc func(point *phasespace.DataPoint) (float64, error)

// AnalyticFunc computes the analytic integral of a FakeIntegrand
type AnalyticFunc func(point *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error)

// Counters are shared between an integrand and all of its clones so tests can
// observe the total work done across workers
type Counters struct {
	Evaluations     atomic.Int64
	AnalyticCalls   atomic.Int64
	Clones          atomic.Int64
	ConcurrentPeak  atomic.Int64
	concurrentEvals atomic.Int64
}

// FakeIntegrand is a configurable, instrumented integrand. It is clonable and
// versioned; use NonClonable to hide the Clone method.
type FakeIntegrand struct {
	*phasespace.NormalisationCache

	name          string
	observables   []string
	nonIntegrable []string
	numericalOnly bool
	eval          EvalFunc
	analytic      AnalyticFunc
	failAfter     int64

	mu     sync.RWMutex
	params map[string]float64

	counters *Counters
}

// NewFakeIntegrand creates an integrand over the given observables. Without
// an analytic function it reports core.ErrNoAnalyticIntegral.
func NewFakeIntegrand(name string, observables []string, eval EvalFunc) *FakeIntegrand {
	return &FakeIntegrand{
		NormalisationCache: phasespace.NewNormalisationCache(),
		name:               name,
		observables:        append([]string(nil), observables...),
		eval:               eval,
		failAfter:          -1,
		params:             make(map[string]float64),
		counters:           &Counters{},
	}
}

// WithAnalytic sets the analytic integral
func (f *FakeIntegrand) WithAnalytic(analytic AnalyticFunc) *FakeIntegrand {
	f.analytic = analytic
	return f
}

// WithNonIntegrable marks dimensions that must never be integrated numerically
func (f *FakeIntegrand) WithNonIntegrable(names ...string) *FakeIntegrand {
	f.nonIntegrable = append([]string(nil), names...)
	return f
}

// WithNumericalOnly marks the integrand as relying on numerical normalisation
func (f *FakeIntegrand) WithNumericalOnly() *FakeIntegrand {
	f.numericalOnly = true
	return f
}

// WithCaching toggles the normalisation cache
func (f *FakeIntegrand) WithCaching(enabled bool) *FakeIntegrand {
	f.SetCachingEnabled(enabled)
	return f
}

// FailAfter makes every evaluation after the first n return ErrInjected
func (f *FakeIntegrand) FailAfter(n int64) *FakeIntegrand {
	f.failAfter = n
	return f
}

func (f *FakeIntegrand) Name() string            { return f.name }
func (f *FakeIntegrand) Observables() []string   { return append([]string(nil), f.observables...) }
func (f *FakeIntegrand) NonIntegrable() []string { return append([]string(nil), f.nonIntegrable...) }
func (f *FakeIntegrand) NumericalOnly() bool     { return f.numericalOnly }
func (f *FakeIntegrand) Counters() *Counters     { return f.counters }

// Evaluate counts the call and delegates to the configured function
func (f *FakeIntegrand) Evaluate(point *phasespace.DataPoint) (float64, error) {
	n := f.counters.Evaluations.Add(1)
	active := f.counters.concurrentEvals.Add(1)
	defer f.counters.concurrentEvals.Add(-1)
	for {
		peak := f.counters.ConcurrentPeak.Load()
		if active <= peak || f.counters.ConcurrentPeak.CompareAndSwap(peak, active) {
			break
		}
	}

	if f.failAfter >= 0 && n > f.failAfter {
		return 0, ErrInjected
	}
	return f.eval(point)
}

// AnalyticIntegral counts the call and delegates to the configured function
func (f *FakeIntegrand) AnalyticIntegral(point *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	f.counters.AnalyticCalls.Add(1)
	if f.analytic == nil {
		return 0, core.ErrNoAnalyticIntegral
	}
	return f.analytic(point, boundary)
}

// SetParameter changes a parameter and drops the cached integral
func (f *FakeIntegrand) SetParameter(name string, value float64) {
	f.mu.Lock()
	f.params[name] = value
	f.mu.Unlock()
	f.Invalidate()
}

// Parameter returns a parameter value, 0 when unset
func (f *FakeIntegrand) Parameter(name string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.params[name]
}

// ParameterFingerprint implements ports.Versioned
func (f *FakeIntegrand) ParameterFingerprint() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.params))
	for k := range f.params {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%x", k, math.Float64bits(f.params[k]))
	}
	return strings.Join(parts, ";")
}

// Clone implements ports.Cloner. The clone gets its own cache and parameter
// copy but shares the counters.
func (f *FakeIntegrand) Clone() ports.Integrand {
	f.counters.Clones.Add(1)
	f.mu.RLock()
	params := make(map[string]float64, len(f.params))
	for k, v := range f.params {
		params[k] = v
	}
	f.mu.RUnlock()

	return &FakeIntegrand{
		NormalisationCache: f.NormalisationCache.Reset(),
		name:               f.name,
		observables:        f.observables,
		nonIntegrable:      f.nonIntegrable,
		numericalOnly:      f.numericalOnly,
		eval:               f.eval,
		analytic:           f.analytic,
		failAfter:          f.failAfter,
		params:             params,
		counters:           f.counters,
	}
}

type nonClonable struct {
	ports.Integrand
}

// NonClonable hides every optional capability of the integrand
func NonClonable(integrand ports.Integrand) ports.Integrand {
	return nonClonable{integrand}
}

// Constant returns an integrand equal to value everywhere with the exact
// integral value × Π widths of its continuous observables
func Constant(name string, value float64, observables ...string) *FakeIntegrand {
	return NewFakeIntegrand(name, observables, func(*phasespace.DataPoint) (float64, error) {
		return value, nil
	}).WithAnalytic(func(_ *phasespace.DataPoint, b *phasespace.Boundary) (float64, error) {
		volume := value
		for _, obs := range observables {
			c, err := b.Constraint(obs)
			if err != nil {
				return 0, err
			}
			if !c.IsDiscrete() {
				volume *= c.Width()
			}
		}
		return volume, nil
	})
}

// Sum returns f = Σ x_i over the observables, without an analytic integral
func Sum(name string, observables ...string) *FakeIntegrand {
	return NewFakeIntegrand(name, observables, func(p *phasespace.DataPoint) (float64, error) {
		var total float64
		for _, obs := range observables {
			v, err := p.Value(obs)
			if err != nil {
				return 0, err
			}
			total += v
		}
		return total, nil
	})
}

// Negative returns an integrand that is -1 everywhere
func Negative(name string, observables ...string) *FakeIntegrand {
	return NewFakeIntegrand(name, observables, func(*phasespace.DataPoint) (float64, error) {
		return -1, nil
	})
}

// Failing returns an integrand whose every evaluation fails
func Failing(name string, observables ...string) *FakeIntegrand {
	return NewFakeIntegrand(name, observables, func(*phasespace.DataPoint) (float64, error) {
		return 0, ErrInjected
	})
}

// Panicking returns an integrand that panics on evaluation
func Panicking(name string, observables ...string) *FakeIntegrand {
	return NewFakeIntegrand(name, observables, func(*phasespace.DataPoint) (float64, error) {
		panic("integrand exploded")
	})
}
