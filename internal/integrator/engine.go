// Package integrator normalises integrands over a phase space. An Engine
// decides once whether to trust an integrand's analytic integral and
// otherwise integrates numerically, choosing between Gauss-Legendre
// quadrature, adaptive cubature and quasi-random Monte-Carlo by the number
// of continuous dimensions left to integrate.
package integrator

import (
	"context"
	stderrors "errors"
	"fmt"

	"pdfint/adapters/quadrature"
	"pdfint/adapters/sampler"
	"pdfint/domain/core"
	"pdfint/domain/phasespace"
	"pdfint/internal"
	"pdfint/internal/config"
	"pdfint/internal/errors"
	"pdfint/internal/parallel"
	"pdfint/ports"
)

// Engine integrates one integrand. An Engine is not safe for concurrent use;
// the only concurrency it introduces is the worker pool of the threaded
// Monte-Carlo path, which is joined before any call returns.
type Engine struct {
	id        core.EngineID
	integrand ports.Integrand
	cfg       config.Config
	logger    *internal.Logger

	oneDim   *quadrature.OneDim
	adaptive *quadrature.Adaptive
	sampler  ports.PointSampler
	pool     *parallel.Pool

	strategy       config.Strategy
	forceNumerical bool

	state      State
	ratio      float64
	testedWith string

	// memoised on first use: NonIntegrable plus point observables the integrand ignores
	exclusions map[string]struct{}
}

// Option customises an Engine at construction
type Option func(*Engine)

// WithSampler replaces the default scrambled Halton sampler
func WithSampler(s ports.PointSampler) Option {
	return func(e *Engine) {
		if s != nil {
			e.sampler = s
		}
	}
}

// New creates an engine for the integrand. A nil cfg selects config.Default().
func New(integrand ports.Integrand, cfg *config.Config, logger *internal.Logger, opts ...Option) (*Engine, error) {
	if integrand == nil {
		return nil, errors.ConfigInvalid("cannot integrate a nil integrand")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid integrator configuration for %s", integrand.Name())
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	id := core.NewEngineID()
	e := &Engine{
		id:        id,
		integrand: integrand,
		cfg:       *cfg,
		logger:    logger.WithComponent("Integrator " + id.Short()),
		oneDim:    quadrature.NewOneDim(cfg.Integrator.GaussNodes),
		adaptive: quadrature.NewAdaptive(quadrature.Tolerance{
			Absolute:       cfg.Integrator.AbsTolerance,
			Relative:       cfg.Integrator.RelTolerance,
			MaxEvaluations: cfg.Integrator.MaxEvaluations,
		}),
		sampler:        sampler.NewHalton(cfg.MonteCarlo.Seed),
		strategy:       cfg.Integrator.Strategy,
		forceNumerical: cfg.Integrator.ForceNumerical,
		ratio:          -1,
	}

	if cfg.MonteCarlo.Threaded {
		pool, err := parallel.New(cfg.MonteCarlo.Workers, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot start workers for %s", integrand.Name())
		}
		e.pool = pool
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger.Debug("created for %s (strategy=%s, threaded=%t, force-numerical=%t)",
		integrand.Name(), e.strategy, e.pool != nil, e.forceNumerical)
	return e, nil
}

func (e *Engine) ID() core.EngineID          { return e.id }
func (e *Engine) Integrand() ports.Integrand { return e.integrand }
func (e *Engine) State() State               { return e.state }

// RatioOfIntegrals is numerical/analytic from the last validation, -1 until measured
func (e *Engine) RatioOfIntegrals() float64 {
	return e.ratio
}

// ForceRetest reopens the engine so the next Integral runs validation again
func (e *Engine) ForceRetest() {
	e.state = Untested
	e.ratio = -1
	e.testedWith = ""
}

// SetTested marks the engine tested without running validation; the engine
// then follows the numerical fallback path. SetTested(false) is ForceRetest.
func (e *Engine) SetTested(tested bool) {
	if !tested {
		e.ForceRetest()
		return
	}
	e.markTested(TestedNumericFallback)
}

// UseProjectionSettings switches the adaptive integrator to the fast
// projection tolerances for every later call
func (e *Engine) UseProjectionSettings() {
	e.adaptive.SetMode(quadrature.Projection)
}

// UseAccurateSettings restores the configured normalisation tolerances
func (e *Engine) UseAccurateSettings() {
	e.adaptive.SetMode(quadrature.Accurate)
}

// SetStrategy selects the integrator used for two or more dimensions
func (e *Engine) SetStrategy(strategy config.Strategy) error {
	switch strategy {
	case config.StrategyAdaptive, config.StrategyQuasiRandom:
		e.strategy = strategy
		return nil
	}
	return errors.ConfigInvalidf("unknown integration strategy %q", strategy).ForIntegrand(e.integrand.Name())
}

func (e *Engine) Strategy() config.Strategy { return e.strategy }

// Integral returns the normalisation integral of the integrand over the
// boundary for the discrete assignment of point. The first call runs the
// validation protocol; later calls use its decision.
func (e *Engine) Integral(ctx context.Context, point *phasespace.DataPoint, boundary *phasespace.Boundary) (v float64, err error) {
	if point == nil || boundary == nil {
		return 0, errors.InvalidInput("integral needs a point and a boundary").ForIntegrand(e.integrand.Name())
	}
	if err := e.checkBoundary(boundary); err != nil {
		return 0, err
	}
	p := point.Bind(boundary)

	e.applyRetestPolicy()
	untested := e.state == Untested
	defer func() {
		// a failed first integral decides nothing
		if err != nil && untested {
			e.state = Untested
		}
	}()
	defer e.recoverPanic(&v, &err)

	if e.state == Untested {
		if !e.integrand.NumericalOnly() {
			return e.validate(ctx, p, boundary)
		}
		e.markTested(TestedNumericFallback)
	}

	if e.state == TestedAnalytic && !e.forceNumerical {
		v, err = e.integrand.AnalyticIntegral(p, boundary)
		if err != nil {
			return 0, errors.EvaluationFailed(e.integrand.Name(), err)
		}
		return v, nil
	}

	if e.integrand.CacheValid(p, boundary) {
		return e.integrand.CachedIntegral(), nil
	}
	v, err = e.IntegratePoint(ctx, p, boundary)
	if err != nil {
		return 0, err
	}
	if e.integrand.CachingEnabled() {
		e.integrand.SetCache(v, p, boundary)
	}
	return v, nil
}

// validate compares the analytic integral with a numerical one over the same
// point. A strictly positive analytic value is trusted; anything else sends
// the engine to the numerical fallback. Integrand failures leave the engine
// untested.
func (e *Engine) validate(ctx context.Context, p *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	analytic, aerr := e.integrand.AnalyticIntegral(p, boundary)
	hasAnalytic := aerr == nil
	if aerr != nil && !stderrors.Is(aerr, core.ErrNoAnalyticIntegral) {
		return 0, errors.EvaluationFailed(e.integrand.Name(), aerr)
	}

	numerical, err := e.IntegratePoint(ctx, p, boundary)
	if err != nil {
		return 0, err
	}

	reported := "none"
	if hasAnalytic {
		reported = fmt.Sprintf("%g", analytic)
	}
	e.logger.Info("integration test: numerical : analytic  %7g : %s  %s  %s",
		numerical, reported, p.DescribeDiscrete(), e.integrand.Name())

	if hasAnalytic && analytic > 0 {
		e.ratio = numerical / analytic
		e.markTested(TestedAnalytic)
		e.integrand.SetCache(analytic, p, boundary)
		return analytic, nil
	}

	e.markTested(TestedNumericFallback)
	if e.integrand.CachingEnabled() {
		e.integrand.SetCache(numerical, p, boundary)
	}
	return numerical, nil
}

func (e *Engine) markTested(state State) {
	e.state = state
	if v, ok := e.integrand.(ports.Versioned); ok {
		e.testedWith = v.ParameterFingerprint()
	}
}

// applyRetestPolicy reopens a tested engine whose versioned integrand has
// changed parameters since validation, when the policy asks for it
func (e *Engine) applyRetestPolicy() {
	if e.cfg.Integrator.RetestPolicy != config.RetestParameters || !e.state.IsTested() {
		return
	}
	v, ok := e.integrand.(ports.Versioned)
	if !ok {
		return
	}
	if fp := v.ParameterFingerprint(); fp != e.testedWith {
		e.logger.Debug("parameters of %s changed since validation, retesting", e.integrand.Name())
		e.ForceRetest()
	}
}

// recoverPanic turns a panicking integrand into an evaluation error naming it
func (e *Engine) recoverPanic(v *float64, err *error) {
	if r := recover(); r != nil {
		e.logger.Error("%s panicked: %v", e.integrand.Name(), r)
		*v = 0
		*err = errors.EvaluationFailed(e.integrand.Name(), fmt.Errorf("panicked: %v", r))
	}
}

func (e *Engine) checkBoundary(boundary *phasespace.Boundary) error {
	if boundary.Len() == 0 {
		return errors.ConfigInvalid("cannot integrate over an empty boundary").
			ForIntegrand(e.integrand.Name()).
			WithCause(core.ErrEmptyBoundary)
	}
	return nil
}

// evaluationError names the integrand unless the error already carries a code
func (e *Engine) evaluationError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.EvaluationFailed(e.integrand.Name(), err)
}
