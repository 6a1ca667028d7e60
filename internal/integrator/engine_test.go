package integrator

import (
	"bytes"
	"context"
	stderrors "errors"
	"log"
	"math"
	"testing"

	"pdfint/adapters/quadrature"
	"pdfint/domain/core"
	"pdfint/domain/phasespace"
	"pdfint/internal"
	"pdfint/internal/config"
	"pdfint/internal/errors"
	"pdfint/internal/testkit"
	"pdfint/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var bg = context.Background()

func quietLogger() *internal.Logger {
	return internal.NewLoggerTo(internal.LogLevelError, log.New(&bytes.Buffer{}, "", 0))
}

func capturingLogger(buf *bytes.Buffer) *internal.Logger {
	return internal.NewLoggerTo(internal.LogLevelDebug, log.New(buf, "", 0))
}

func newEngine(t *testing.T, integrand ports.Integrand, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(integrand, cfg, quietLogger(), opts...)
	require.NoError(t, err)
	return e
}

func rectangle() *phasespace.Boundary {
	return phasespace.NewBoundary(
		phasespace.MustContinuous("x", 0, 2),
		phasespace.MustContinuous("y", 0, 3),
	)
}

func unitSquare() *phasespace.Boundary {
	return phasespace.NewBoundary(
		phasespace.MustContinuous("x", 0, 1),
		phasespace.MustContinuous("y", 0, 1),
	)
}

func origin() *phasespace.DataPoint {
	return phasespace.NewDataPoint(map[string]float64{"x": 0, "y": 0})
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, nil, quietLogger())
	assert.True(t, stderrors.Is(err, core.ErrConfiguration))

	cfg := config.Default()
	cfg.MonteCarlo.Threaded = true
	cfg.MonteCarlo.Workers = 0
	_, err = New(testkit.Sum("sum", "x"), cfg, quietLogger())
	assert.True(t, stderrors.Is(err, core.ErrConfiguration))

	e, err := New(testkit.Sum("sum", "x"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Untested, e.State())
	assert.Equal(t, -1.0, e.RatioOfIntegrals())
	assert.False(t, e.ID().String() == "")
}

func TestConstantOverRectangle(t *testing.T) {
	integrand := testkit.Constant("flat", 1, "x", "y")
	e := newEngine(t, integrand, nil)

	area, err := e.IntegratePoint(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.InDelta(t, 6.0, area, 1e-12)

	line, err := e.IntegratePoint(bg, origin(), rectangle(), "y")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, line, 1e-12)
}

func TestAnalyticIntegralIsTrustedAfterValidation(t *testing.T) {
	integrand := testkit.Constant("flat", 1, "x", "y")
	e := newEngine(t, integrand, nil)

	v, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
	assert.Equal(t, TestedAnalytic, e.State())
	assert.InDelta(t, 1.0, e.RatioOfIntegrals(), 1e-9)

	evals := integrand.Counters().Evaluations.Load()
	assert.Positive(t, evals, "validation integrates numerically")

	v, err = e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)
	assert.Equal(t, evals, integrand.Counters().Evaluations.Load(), "no numerical work once trusted")
	assert.Equal(t, int64(2), integrand.Counters().AnalyticCalls.Load())
}

func TestGaussianRatioWithinTolerance(t *testing.T) {
	integrand := testkit.NewFakeIntegrand("gauss", []string{"x"}, func(p *phasespace.DataPoint) (float64, error) {
		x, err := p.Value("x")
		return math.Exp(-0.5 * x * x), err
	}).WithAnalytic(func(_ *phasespace.DataPoint, b *phasespace.Boundary) (float64, error) {
		c, err := b.Constraint("x")
		if err != nil {
			return 0, err
		}
		n := distuv.UnitNormal
		return math.Sqrt(2*math.Pi) * (n.CDF(c.Maximum()) - n.CDF(c.Minimum())), nil
	})
	e := newEngine(t, integrand, nil)

	boundary := phasespace.NewBoundary(phasespace.MustContinuous("x", -3, 4))
	_, err := e.Integral(bg, phasespace.NewDataPoint(map[string]float64{"x": 0}), boundary)
	require.NoError(t, err)
	assert.Equal(t, TestedAnalytic, e.State())
	assert.InDelta(t, 1.0, e.RatioOfIntegrals(), 1e-9)
}

func TestMissingAnalyticFallsBackToNumerical(t *testing.T) {
	integrand := testkit.Sum("sum", "x", "y")
	e := newEngine(t, integrand, nil)

	v, err := e.Integral(bg, origin(), unitSquare())
	require.NoError(t, err)
	assert.Equal(t, TestedNumericFallback, e.State())
	assert.Equal(t, -1.0, e.RatioOfIntegrals())

	independent, err := quadrature.NewAdaptive(quadrature.AccurateTolerance).Integrate(func(x []float64) (float64, error) {
		return x[0] + x[1], nil
	}, []float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, independent.Value, v, 1e-12)
	assert.InDelta(t, 1.0, v, 1e-12)
}

func TestNonPositiveAnalyticIsDistrusted(t *testing.T) {
	for _, analytic := range []float64{0, -2, math.NaN()} {
		integrand := testkit.Constant("flat", 1, "x", "y").
			WithAnalytic(func(*phasespace.DataPoint, *phasespace.Boundary) (float64, error) { return analytic, nil })
		e := newEngine(t, integrand, nil)

		v, err := e.Integral(bg, origin(), rectangle())
		require.NoError(t, err)
		assert.Equal(t, TestedNumericFallback, e.State(), "analytic %g", analytic)
		assert.InDelta(t, 6.0, v, 1e-12)
		assert.Equal(t, -1.0, e.RatioOfIntegrals())
	}
}

func TestCachedFallbackIsIdempotent(t *testing.T) {
	integrand := testkit.Sum("sum", "x", "y")
	e := newEngine(t, integrand, nil)

	first, err := e.Integral(bg, origin(), unitSquare())
	require.NoError(t, err)
	evals := integrand.Counters().Evaluations.Load()

	second, err := e.Integral(bg, phasespace.NewDataPoint(map[string]float64{"x": 0.7, "y": 0.1}), unitSquare())
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(first), math.Float64bits(second))
	assert.Equal(t, evals, integrand.Counters().Evaluations.Load())
}

func TestFallbackWithoutCachingRecomputes(t *testing.T) {
	integrand := testkit.Sum("sum", "x", "y").WithCaching(false)
	e := newEngine(t, integrand, nil)

	first, err := e.Integral(bg, origin(), unitSquare())
	require.NoError(t, err)
	evals := integrand.Counters().Evaluations.Load()

	second, err := e.Integral(bg, origin(), unitSquare())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2*evals, integrand.Counters().Evaluations.Load())
}

func TestCacheMissOnNewBoundaryRecomputes(t *testing.T) {
	integrand := testkit.Sum("sum", "x", "y")
	e := newEngine(t, integrand, nil)

	_, err := e.Integral(bg, origin(), unitSquare())
	require.NoError(t, err)

	wider := unitSquare()
	wider.SetConstraint(phasespace.MustContinuous("x", 0, 2))
	v, err := e.Integral(bg, origin(), wider)
	require.NoError(t, err)
	// ∫0^2∫0^1 (x+y) dy dx = 2 + 1
	assert.InDelta(t, 3.0, v, 1e-12)
	assert.InDelta(t, 3.0, integrand.CachedIntegral(), 1e-12)
}

func TestIntegrandFailuresAreEvaluationErrors(t *testing.T) {
	analyticFails := testkit.Constant("broken-analytic", 1, "x", "y").
		WithAnalytic(func(*phasespace.DataPoint, *phasespace.Boundary) (float64, error) { return 0, testkit.ErrInjected })
	e := newEngine(t, analyticFails, nil)
	_, err := e.Integral(bg, origin(), rectangle())
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))
	assert.ErrorIs(t, err, testkit.ErrInjected)
	assert.Contains(t, err.Error(), "broken-analytic")
	assert.Equal(t, Untested, e.State())

	evalFails := testkit.Failing("broken-eval", "x", "y")
	e = newEngine(t, evalFails, nil)
	_, err = e.Integral(bg, origin(), rectangle())
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, Untested, e.State())
}

func TestPanickingIntegrandIsEvaluationError(t *testing.T) {
	e := newEngine(t, testkit.Panicking("boom", "x", "y"), nil)

	v, err := e.Integral(bg, origin(), unitSquare())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "panicked")
	assert.Zero(t, v)
	assert.Equal(t, Untested, e.State())

	_, err = e.IntegratePhaseSpace(bg, unitSquare())
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))
	_, err = e.ProjectObservable(bg, origin(), unitSquare(), "x")
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))

	numericalOnly := newEngine(t, testkit.Panicking("boom", "x", "y").WithNumericalOnly(), nil)
	_, err = numericalOnly.Integral(bg, origin(), unitSquare())
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))
	assert.Equal(t, Untested, numericalOnly.State())
}

func TestPanickingAnalyticIntegralIsEvaluationError(t *testing.T) {
	integrand := testkit.Constant("analytic-boom", 1, "x", "y").
		WithAnalytic(func(*phasespace.DataPoint, *phasespace.Boundary) (float64, error) { panic("no closed form") })
	e := newEngine(t, integrand, nil)

	_, err := e.Integral(bg, origin(), rectangle())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, core.ErrEvaluation))
	assert.Contains(t, err.Error(), "analytic-boom")
	assert.Equal(t, Untested, e.State())
}

func TestEmptyBoundaryIsConfigurationError(t *testing.T) {
	e := newEngine(t, testkit.Sum("sum", "x"), nil)
	empty := phasespace.NewBoundary()

	_, err := e.Integral(bg, origin(), empty)
	assert.True(t, stderrors.Is(err, core.ErrConfiguration))
	assert.True(t, stderrors.Is(err, core.ErrEmptyBoundary))

	_, err = e.IntegratePoint(bg, origin(), empty)
	assert.True(t, stderrors.Is(err, core.ErrEmptyBoundary))
	_, err = e.IntegratePhaseSpace(bg, empty)
	assert.True(t, stderrors.Is(err, core.ErrEmptyBoundary))
	_, err = e.ProjectObservable(bg, origin(), empty, "x")
	assert.True(t, stderrors.Is(err, core.ErrEmptyBoundary))
	assert.Equal(t, Untested, e.State())
}

func TestNumericalOnlySkipsValidation(t *testing.T) {
	integrand := testkit.Constant("flat", 1, "x", "y").WithNumericalOnly()
	e := newEngine(t, integrand, nil)

	v, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.InDelta(t, 6.0, v, 1e-12)
	assert.Equal(t, TestedNumericFallback, e.State())
	assert.Zero(t, integrand.Counters().AnalyticCalls.Load())
}

func TestForceNumericalReusesValidatedCache(t *testing.T) {
	cfg := config.Default()
	cfg.Integrator.ForceNumerical = true
	integrand := testkit.Constant("flat", 2, "x", "y")
	e := newEngine(t, integrand, cfg)

	v, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.Equal(t, TestedAnalytic, e.State())
	evals := integrand.Counters().Evaluations.Load()

	v, err = e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	assert.Equal(t, int64(1), integrand.Counters().AnalyticCalls.Load(), "forced numerical never asks for the analytic value again")
	assert.Equal(t, evals, integrand.Counters().Evaluations.Load())
}

func TestAllDiscreteDomainSumsEvaluations(t *testing.T) {
	boundary := phasespace.NewBoundary(
		phasespace.MustDiscrete("tag", -1, 1),
		phasespace.MustDiscrete("category", 0, 1, 2),
	)
	integrand := testkit.NewFakeIntegrand("table", []string{"tag", "category"}, func(p *phasespace.DataPoint) (float64, error) {
		tag, _ := p.Value("tag")
		cat, _ := p.Value("category")
		return 0.1*tag + 0.37*cat + 1, nil
	})
	e := newEngine(t, integrand, nil)

	var expected float64
	for _, combo := range boundary.DiscreteCombinations() {
		v, err := integrand.Evaluate(combo)
		require.NoError(t, err)
		expected += v
	}
	integrand.Counters().Evaluations.Store(0)

	got, err := e.IntegratePhaseSpace(bg, boundary)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
	assert.Equal(t, int64(6), integrand.Counters().Evaluations.Load(), "one evaluation per combination")

	point := phasespace.NewDataPoint(map[string]float64{"tag": 1, "category": 2})
	single, err := e.Integral(bg, point, boundary)
	require.NoError(t, err)
	direct, _ := integrand.Evaluate(point)
	assert.Equal(t, direct, single)
}

func TestPhaseSpaceSumsEveryCombination(t *testing.T) {
	boundary := phasespace.NewBoundary(
		phasespace.MustContinuous("x", 0, 2),
		phasespace.MustDiscrete("tag", -1, 1),
	)
	integrand := testkit.NewFakeIntegrand("asym", []string{"x", "tag"}, func(p *phasespace.DataPoint) (float64, error) {
		tag, _ := p.Value("tag")
		return 1 + 0.5*tag, nil
	})
	e := newEngine(t, integrand, nil)

	total, err := e.IntegratePhaseSpace(bg, boundary)
	require.NoError(t, err)
	// 2*(1-0.5) + 2*(1+0.5)
	assert.InDelta(t, 4.0, total, 1e-12)

	one, err := e.IntegratePoint(bg, phasespace.NewDataPoint(map[string]float64{"x": 1, "tag": 1}), boundary)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, one, 1e-12)
}

func TestExcludedDimensionsAreEvaluatedDirectly(t *testing.T) {
	integrand := testkit.Sum("sum", "x", "y").WithNonIntegrable("x", "y")
	e := newEngine(t, integrand, nil)

	point := phasespace.NewDataPoint(map[string]float64{"x": 0.25, "y": 0.5, "run": 7})
	v, err := e.Integral(bg, point, unitSquare())
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)
	assert.Equal(t, int64(1), integrand.Counters().Evaluations.Load())
	assert.Equal(t, []string{"run", "x", "y"}, e.Exclusions(nil))
}

func TestMissingConstraintNamesIntegrandAndDimension(t *testing.T) {
	e := newEngine(t, testkit.Sum("sum", "x", "y"), nil)
	boundary := phasespace.NewBoundary(phasespace.MustContinuous("x", 0, 1))

	_, err := e.IntegratePoint(bg, origin(), boundary)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, core.ErrConfiguration))
	assert.True(t, stderrors.Is(err, core.ErrMissingConstraint))

	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "sum", appErr.Integrand)
	assert.Equal(t, "y", appErr.Dimension)
}

func TestInvalidArgumentsAreRejected(t *testing.T) {
	e := newEngine(t, testkit.Sum("sum", "x"), nil)

	_, err := e.Integral(bg, nil, unitSquare())
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	_, err = e.IntegratePhaseSpace(bg, nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Error(t, e.SetStrategy("vegas"))
}

func TestAdaptiveBudgetExhaustionWarns(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Integrator.MaxEvaluations = 100
	integrand := testkit.NewFakeIntegrand("cusp", []string{"x", "y"}, func(p *phasespace.DataPoint) (float64, error) {
		x, _ := p.Value("x")
		return math.Sqrt(math.Abs(x - 0.3)), nil
	})
	e, err := New(integrand, cfg, capturingLogger(&buf))
	require.NoError(t, err)

	_, err = e.IntegratePoint(bg, origin(), unitSquare())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "did not converge")
}

func TestValidationLogsDiagnosticLine(t *testing.T) {
	var buf bytes.Buffer
	integrand := testkit.Constant("flat", 1, "x", "tag")
	e, err := New(integrand, nil, capturingLogger(&buf))
	require.NoError(t, err)

	boundary := phasespace.NewBoundary(phasespace.MustContinuous("x", 0, 2), phasespace.MustDiscrete("tag", -1, 1))
	_, err = e.Integral(bg, phasespace.NewDataPoint(map[string]float64{"x": 1, "tag": 1}), boundary)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "integration test: numerical : analytic")
	assert.Contains(t, out, "tag=1")
	assert.Contains(t, out, "flat")
	assert.Contains(t, out, e.ID().Short())
}

func TestStateControl(t *testing.T) {
	integrand := testkit.Constant("flat", 1, "x", "y")
	e := newEngine(t, integrand, nil)

	e.SetTested(true)
	assert.Equal(t, TestedNumericFallback, e.State())
	v, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.InDelta(t, 6.0, v, 1e-12)
	assert.Zero(t, integrand.Counters().AnalyticCalls.Load())

	e.ForceRetest()
	assert.Equal(t, Untested, e.State())
	_, err = e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, TestedAnalytic, e.State())
	assert.InDelta(t, 1.0, e.RatioOfIntegrals(), 1e-9)

	e.SetTested(false)
	assert.Equal(t, Untested, e.State())
	assert.Equal(t, -1.0, e.RatioOfIntegrals())
}

func TestProjectionSettingsSwitchAdaptiveMode(t *testing.T) {
	e := newEngine(t, testkit.Sum("sum", "x", "y"), nil)
	assert.Equal(t, quadrature.Accurate, e.adaptive.Mode())

	e.UseProjectionSettings()
	assert.Equal(t, quadrature.ProjectionTolerance, e.adaptive.Tolerance())

	e.UseAccurateSettings()
	assert.Equal(t, quadrature.AccurateTolerance, e.adaptive.Tolerance())
}

// rescaled returns an integrand whose analytic integral is the "norm"
// parameter, so changing the parameter breaks or fixes the analytic claim
func rescaled() *testkit.FakeIntegrand {
	var integrand *testkit.FakeIntegrand
	integrand = testkit.NewFakeIntegrand("rescaled", []string{"x", "y"}, func(*phasespace.DataPoint) (float64, error) {
		return 1, nil
	}).WithAnalytic(func(*phasespace.DataPoint, *phasespace.Boundary) (float64, error) {
		return integrand.Parameter("norm"), nil
	})
	integrand.SetParameter("norm", 6)
	return integrand
}

func TestRetestPolicyLifetimeKeepsDecision(t *testing.T) {
	integrand := rescaled()
	e := newEngine(t, integrand, nil)

	_, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	require.Equal(t, TestedAnalytic, e.State())

	integrand.SetParameter("norm", 0)
	v, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, TestedAnalytic, e.State())
	assert.Equal(t, 0.0, v, "the stale decision is kept for the engine lifetime")
}

func TestRetestPolicyParametersRevalidates(t *testing.T) {
	cfg := config.Default()
	cfg.Integrator.RetestPolicy = config.RetestParameters
	integrand := rescaled()
	e := newEngine(t, integrand, cfg)

	_, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	require.Equal(t, TestedAnalytic, e.State())
	evals := integrand.Counters().Evaluations.Load()

	_, err = e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, evals, integrand.Counters().Evaluations.Load(), "unchanged parameters do not retest")

	integrand.SetParameter("norm", 0)
	v, err := e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, TestedNumericFallback, e.State())
	assert.InDelta(t, 6.0, v, 1e-12)

	integrand.SetParameter("norm", 3)
	_, err = e.Integral(bg, origin(), rectangle())
	require.NoError(t, err)
	assert.Equal(t, TestedAnalytic, e.State())
	assert.InDelta(t, 2.0, e.RatioOfIntegrals(), 1e-9)
}

type brokenSampler struct{}

func (brokenSampler) Sample(int, []float64, []float64) (*mat.Dense, error) {
	return nil, stderrors.New("cannot allocate sampler")
}

func TestSamplerFailureIsConfigurationError(t *testing.T) {
	cfg := config.Default()
	cfg.Integrator.Strategy = config.StrategyQuasiRandom
	e := newEngine(t, testkit.Sum("sum", "x", "y"), cfg, WithSampler(brokenSampler{}))

	_, err := e.IntegratePoint(bg, origin(), unitSquare())
	assert.True(t, stderrors.Is(err, core.ErrConfiguration))
	assert.Contains(t, err.Error(), "cannot allocate sampler")
}
