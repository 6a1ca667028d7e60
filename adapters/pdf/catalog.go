package pdf

import (
	"fmt"
	"sort"

	"pdfint/domain/phasespace"
	"pdfint/internal/errors"
	"pdfint/ports"
)

// Model is a reference integrand together with the phase space it is
// normally integrated over
type Model struct {
	Integrand ports.Integrand
	Boundary  *phasespace.Boundary
	Point     *phasespace.DataPoint
}

type builder func() Model

var catalog = map[string]builder{
	"constant": func() Model {
		return Model{
			Integrand: NewConstant(1, "x", "y"),
			Boundary: phasespace.NewBoundary(
				phasespace.MustContinuous("x", 0, 2),
				phasespace.MustContinuous("y", 0, 3),
			),
			Point: phasespace.NewDataPoint(map[string]float64{"x": 1, "y": 1.5}),
		}
	},
	"linear": func() Model {
		return Model{
			Integrand: NewLinearSum(0.5, "x", "y", "z"),
			Boundary: phasespace.NewBoundary(
				phasespace.MustContinuous("x", 0, 1),
				phasespace.MustContinuous("y", 0, 1),
				phasespace.MustContinuous("z", -1, 1),
			),
			Point: phasespace.NewDataPoint(map[string]float64{"x": 0.5, "y": 0.5, "z": 0}),
		}
	},
	"gaussian": func() Model {
		return Model{
			Integrand: NewGaussian("mass", 5.28, 0.02),
			Boundary:  phasespace.NewBoundary(phasespace.MustContinuous("mass", 5.2, 5.4)),
			Point:     phasespace.NewDataPoint(map[string]float64{"mass": 5.28}),
		}
	},
	"exponential": func() Model {
		return Model{
			Integrand: NewExponential("time", 1.5),
			Boundary:  phasespace.NewBoundary(phasespace.MustContinuous("time", 0.2, 10)),
			Point:     phasespace.NewDataPoint(map[string]float64{"time": 1}),
		}
	},
	"mixture": func() Model {
		return Model{
			Integrand: NewTaggedMixture("mass", "time", "tag", 5.28, 0.02, 1.5, 0.3),
			Boundary: phasespace.NewBoundary(
				phasespace.MustContinuous("mass", 5.2, 5.4),
				phasespace.MustContinuous("time", 0.2, 10),
				phasespace.MustDiscrete("tag", -1, 1),
			),
			Point: phasespace.NewDataPoint(map[string]float64{"mass": 5.28, "time": 1, "tag": 1}),
		}
	},
}

// Names lists the models Build knows, sorted
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns a fresh instance of the named model
func Build(name string) (Model, error) {
	b, ok := catalog[name]
	if !ok {
		return Model{}, errors.InvalidInput(fmt.Sprintf("unknown model %q, expected one of %v", name, Names()))
	}
	return b(), nil
}
