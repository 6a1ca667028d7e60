package integrator

import (
	"context"
	"fmt"

	"pdfint/domain/phasespace"
	"pdfint/internal/errors"
)

// ProjectObservable integrates over every integrable dimension except name,
// leaving a function of name evaluated at the point. An integrand with a
// single integrable dimension can only be projected onto that dimension,
// which is a plain evaluation.
func (e *Engine) ProjectObservable(ctx context.Context, point *phasespace.DataPoint, boundary *phasespace.Boundary, name string) (v float64, err error) {
	defer e.recoverPanic(&v, &err)
	if point == nil || boundary == nil {
		return 0, errors.InvalidInput("projection needs a point and a boundary").ForIntegrand(e.integrand.Name())
	}
	if err := e.checkBoundary(boundary); err != nil {
		return 0, err
	}

	exclude := e.integrand.NonIntegrable()
	skip := make(map[string]struct{}, len(exclude))
	for _, n := range exclude {
		skip[n] = struct{}{}
	}
	var integrable []string
	for _, obs := range e.integrand.Observables() {
		if _, ok := skip[obs]; !ok {
			integrable = append(integrable, obs)
		}
	}

	if len(integrable) == 1 {
		if integrable[0] != name {
			return 0, errors.UsageError(fmt.Sprintf("can only integrate %s, cannot project onto %s", integrable[0], name)).
				ForIntegrand(e.integrand.Name()).
				ForDimension(name)
		}
		v, err = e.integrand.Evaluate(point.Bind(boundary))
		if err != nil {
			return 0, e.evaluationError(err)
		}
		return v, nil
	}

	return e.IntegratePoint(ctx, point, boundary, append(exclude, name)...)
}
