package integrator

import (
	"context"
	"fmt"
	"math"

	"pdfint/domain/phasespace"
	"pdfint/internal/errors"
	"pdfint/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// monteCarlo estimates the integral as mean(f) × volume over a scrambled
// Halton point set. Points are generated in full before any evaluation; the
// threaded path then hands contiguous chunks to the worker pool.
func (e *Engine) monteCarlo(ctx context.Context, point *phasespace.DataPoint, dims []string, minima, maxima []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := e.cfg.MonteCarlo.Samples
	if e.pool != nil {
		n = e.cfg.MonteCarlo.ThreadedSamples
	}

	points, err := e.sampler.Sample(n, minima, maxima)
	if err != nil {
		return 0, errors.ConfigInvalidf("cannot generate %d sample points", n).
			ForIntegrand(e.integrand.Name()).
			WithCause(err)
	}

	widths := make([]float64, len(dims))
	floats.SubTo(widths, maxima, minima)
	volume := floats.Prod(widths)

	var sum float64
	if e.pool != nil {
		res, err := e.pool.Sum(ctx, e.integrand, points, func(integrand ports.Integrand, row []float64) (float64, error) {
			return integrand.Evaluate(point.WithCoordinates(dims, row))
		})
		if err != nil {
			return 0, err
		}
		sum = res.Sum
		e.logSpread(res.Means(), volume)
	} else {
		for i := 0; i < n; i++ {
			if i%4096 == 0 && ctx.Err() != nil {
				return 0, ctx.Err()
			}
			v, err := e.integrand.Evaluate(point.WithCoordinates(dims, points.RawRowView(i)))
			if err != nil {
				return 0, e.evaluationError(err)
			}
			sum += v
		}
	}

	estimate := sum * volume / float64(n)
	if estimate < 0 || math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		e.logger.Error("calculated an unusable integral %g for %s over %v", estimate, e.integrand.Name(), dims)
		return 0, errors.NumericInstability(fmt.Sprintf("monte-carlo integral %g is negative or not finite", estimate)).
			ForIntegrand(e.integrand.Name())
	}
	return estimate, nil
}

// logSpread reports how far the per-worker estimates disagree
func (e *Engine) logSpread(means []float64, volume float64) {
	if len(means) < 2 {
		return
	}
	spread, err := stats.StandardDeviationSample(stats.Float64Data(means))
	if err != nil {
		return
	}
	e.logger.Debug("per-worker estimates of %s spread by %g over %d workers", e.integrand.Name(), spread*volume, len(means))
}
