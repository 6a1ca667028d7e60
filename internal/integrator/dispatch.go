package integrator

import (
	"context"
	"sort"

	"pdfint/domain/phasespace"
	"pdfint/internal/config"
	"pdfint/internal/errors"
)

// IntegratePoint integrates the integrand numerically over its continuous
// dimensions for the discrete combination of point. Observables named in
// exclude are held at the point's values.
func (e *Engine) IntegratePoint(ctx context.Context, point *phasespace.DataPoint, boundary *phasespace.Boundary, exclude ...string) (v float64, err error) {
	defer e.recoverPanic(&v, &err)
	if point == nil || boundary == nil {
		return 0, errors.InvalidInput("numerical integration needs a point and a boundary").ForIntegrand(e.integrand.Name())
	}
	if err := e.checkBoundary(boundary); err != nil {
		return 0, err
	}
	p := point.Bind(boundary)
	return e.numerical(ctx, []*phasespace.DataPoint{p}, boundary, exclude)
}

// IntegratePhaseSpace integrates numerically over the whole boundary: the
// continuous integral is summed over every discrete combination.
func (e *Engine) IntegratePhaseSpace(ctx context.Context, boundary *phasespace.Boundary, exclude ...string) (v float64, err error) {
	defer e.recoverPanic(&v, &err)
	if boundary == nil {
		return 0, errors.InvalidInput("numerical integration needs a boundary").ForIntegrand(e.integrand.Name())
	}
	if err := e.checkBoundary(boundary); err != nil {
		return 0, err
	}
	return e.numerical(ctx, boundary.DiscreteCombinations(), boundary, exclude)
}

func (e *Engine) numerical(ctx context.Context, combos []*phasespace.DataPoint, boundary *phasespace.Boundary, exclude []string) (float64, error) {
	e.memoiseExclusions(combos[0])
	skip := e.excluded(exclude)

	fixed, err := e.allDiscrete(boundary, skip)
	if err != nil {
		return 0, err
	}

	var dims []string
	if !fixed {
		dims, err = e.integratedDimensions(boundary, skip)
		if err != nil {
			return 0, err
		}
	}

	var total float64
	for _, combo := range combos {
		var v float64
		if len(dims) == 0 {
			v, err = e.integrand.Evaluate(combo)
			if err != nil {
				return 0, e.evaluationError(err)
			}
		} else {
			v, err = e.integrateCombination(ctx, combo, boundary, dims)
			if err != nil {
				return 0, err
			}
		}
		total += v
	}
	return total, nil
}

// allDiscrete reports whether every observable of the integrand is discrete
// in the boundary; such integrals are plain sums of evaluations. Excluded
// observables may lack a constraint.
func (e *Engine) allDiscrete(boundary *phasespace.Boundary, skip map[string]struct{}) (bool, error) {
	for _, obs := range e.integrand.Observables() {
		c, err := boundary.Constraint(obs)
		if err != nil {
			if _, ok := skip[obs]; ok {
				continue
			}
			return false, e.missingConstraint(obs, err)
		}
		if !c.IsDiscrete() {
			return false, nil
		}
	}
	return true, nil
}

// Exclusions returns the memoised do-not-integrate set, computing it from
// point on first use
func (e *Engine) Exclusions(point *phasespace.DataPoint) []string {
	e.memoiseExclusions(point)
	names := make([]string, 0, len(e.exclusions))
	for name := range e.exclusions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) memoiseExclusions(point *phasespace.DataPoint) {
	if e.exclusions != nil {
		return
	}
	e.exclusions = make(map[string]struct{})
	for _, name := range e.integrand.NonIntegrable() {
		e.exclusions[name] = struct{}{}
	}
	if point == nil {
		return
	}
	known := make(map[string]struct{})
	for _, obs := range e.integrand.Observables() {
		known[obs] = struct{}{}
	}
	for _, name := range point.Names() {
		if _, ok := known[name]; !ok {
			e.exclusions[name] = struct{}{}
		}
	}
}

// excluded merges the memoised exclusions with the caller's
func (e *Engine) excluded(exclude []string) map[string]struct{} {
	skip := make(map[string]struct{}, len(e.exclusions)+len(exclude))
	for name := range e.exclusions {
		skip[name] = struct{}{}
	}
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	return skip
}

// integratedDimensions lists the integrand observables that are continuous in
// the boundary and not excluded, in the integrand's declaration order
func (e *Engine) integratedDimensions(boundary *phasespace.Boundary, skip map[string]struct{}) ([]string, error) {
	var dims []string
	for _, obs := range e.integrand.Observables() {
		if _, ok := skip[obs]; ok {
			continue
		}
		c, err := boundary.Constraint(obs)
		if err != nil {
			return nil, e.missingConstraint(obs, err)
		}
		if !c.IsDiscrete() {
			dims = append(dims, obs)
		}
	}
	return dims, nil
}

func (e *Engine) integrateCombination(ctx context.Context, point *phasespace.DataPoint, boundary *phasespace.Boundary, dims []string) (float64, error) {
	minima, maxima, err := e.bounds(boundary, dims)
	if err != nil {
		return 0, err
	}

	if len(dims) == 1 {
		return e.integrateOneDim(point, dims[0], minima[0], maxima[0])
	}
	if e.strategy == config.StrategyQuasiRandom {
		return e.monteCarlo(ctx, point, dims, minima, maxima)
	}
	return e.integrateAdaptive(point, dims, minima, maxima)
}

func (e *Engine) bounds(boundary *phasespace.Boundary, dims []string) ([]float64, []float64, error) {
	minima := make([]float64, len(dims))
	maxima := make([]float64, len(dims))
	for i, name := range dims {
		c, err := boundary.Constraint(name)
		if err != nil {
			return nil, nil, e.missingConstraint(name, err)
		}
		minima[i], maxima[i] = c.Minimum(), c.Maximum()
	}
	return minima, maxima, nil
}

func (e *Engine) integrateOneDim(point *phasespace.DataPoint, dim string, min, max float64) (float64, error) {
	v, err := e.oneDim.Integrate(func(x float64) (float64, error) {
		return e.integrand.Evaluate(point.With(dim, x))
	}, min, max)
	if err != nil {
		return 0, e.evaluationError(err)
	}
	return v, nil
}

func (e *Engine) integrateAdaptive(point *phasespace.DataPoint, dims []string, minima, maxima []float64) (float64, error) {
	est, err := e.adaptive.Integrate(func(x []float64) (float64, error) {
		return e.integrand.Evaluate(point.WithCoordinates(dims, x))
	}, minima, maxima)
	if err != nil {
		return 0, e.evaluationError(err)
	}
	if !est.Converged {
		e.logger.Warn("adaptive integral of %s did not converge in %d evaluations (%s mode): %g +- %g",
			e.integrand.Name(), est.Evaluations, e.adaptive.Mode(), est.Value, est.Error)
	}
	return est.Value, nil
}

func (e *Engine) missingConstraint(dim string, cause error) error {
	return errors.ConfigInvalid("no constraint for an integrated dimension").
		ForIntegrand(e.integrand.Name()).
		ForDimension(dim).
		WithCause(cause)
}
