package integrator

import (
	stderrors "errors"
	"math"
	"testing"

	"pdfint/domain/core"
	"pdfint/domain/phasespace"
	"pdfint/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bump() *testkit.FakeIntegrand {
	return testkit.NewFakeIntegrand("bump", []string{"x"}, func(p *phasespace.DataPoint) (float64, error) {
		x, err := p.Value("x")
		return math.Exp(-x * x), err
	})
}

func TestProjectingTheOnlyDimensionEvaluates(t *testing.T) {
	integrand := bump()
	e := newEngine(t, integrand, nil)
	boundary := phasespace.NewBoundary(phasespace.MustContinuous("x", -2, 2))
	point := phasespace.NewDataPoint(map[string]float64{"x": 0.3})

	v, err := e.ProjectObservable(bg, point, boundary, "x")
	require.NoError(t, err)
	direct, _ := integrand.Evaluate(point)
	assert.Equal(t, direct, v)
}

func TestProjectingAwayTheOnlyDimensionIsUsageError(t *testing.T) {
	e := newEngine(t, bump(), nil)
	boundary := phasespace.NewBoundary(phasespace.MustContinuous("x", -2, 2), phasespace.MustContinuous("y", 0, 1))

	_, err := e.ProjectObservable(bg, phasespace.NewDataPoint(map[string]float64{"x": 0, "y": 0}), boundary, "y")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, core.ErrUsage))
	assert.Contains(t, err.Error(), "bump")
}

func TestProjectionIntegratesTheOtherDimensions(t *testing.T) {
	e := newEngine(t, testkit.Sum("sum", "x", "y"), nil)
	point := phasespace.NewDataPoint(map[string]float64{"x": 0.25, "y": 0.9})

	// ∫0^1 (0.25 + y) dy
	v, err := e.ProjectObservable(bg, point, unitSquare(), "x")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 1e-12)

	three := testkit.NewFakeIntegrand("product", []string{"x", "y", "z"}, func(p *phasespace.DataPoint) (float64, error) {
		x, _ := p.Value("x")
		y, _ := p.Value("y")
		z, _ := p.Value("z")
		return x * y * z, nil
	})
	e = newEngine(t, three, nil)
	cube := phasespace.NewBoundary(
		phasespace.MustContinuous("x", 0, 1),
		phasespace.MustContinuous("y", 0, 2),
		phasespace.MustContinuous("z", 0, 3),
	)
	// 2 × ∫0^2 y dy × ∫0^3 z dz
	v, err = e.ProjectObservable(bg, phasespace.NewDataPoint(map[string]float64{"x": 2, "y": 0, "z": 0}), cube, "x")
	require.NoError(t, err)
	assert.InDelta(t, 2*2*4.5, v, 1e-9)
}

func TestProjectionRespectsNonIntegrableDimensions(t *testing.T) {
	integrand := testkit.Sum("sum", "x", "y").WithNonIntegrable("y")
	e := newEngine(t, integrand, nil)
	point := phasespace.NewDataPoint(map[string]float64{"x": 0.5, "y": 0.25})

	v, err := e.ProjectObservable(bg, point, unitSquare(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)

	_, err = e.ProjectObservable(bg, point, unitSquare(), "y")
	assert.True(t, stderrors.Is(err, core.ErrUsage))
}
