package phasespace

import (
	"fmt"
	"sort"
	"strings"

	"pdfint/domain/core"
)

// DataPoint is an immutable snapshot of observable values. Modifying
// operations return copies, so a point can be shared read-only between
// goroutines.
type DataPoint struct {
	values   map[string]float64
	boundary *Boundary
}

// NewDataPoint creates an unbound point from observable values
func NewDataPoint(values map[string]float64) *DataPoint {
	vals := make(map[string]float64, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return &DataPoint{values: vals}
}

// Value returns the observable value or ErrMissingObservable
func (p *DataPoint) Value(name string) (float64, error) {
	v, ok := p.values[name]
	if !ok {
		return 0, core.NewMissingObservableError(name)
	}
	return v, nil
}

// Has reports whether the observable is present
func (p *DataPoint) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Names returns the observable names, sorted
func (p *DataPoint) Names() []string {
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of all observable values
func (p *DataPoint) Values() map[string]float64 {
	vals := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		vals[k] = v
	}
	return vals
}

// Boundary returns the bound phase space, nil when unbound
func (p *DataPoint) Boundary() *Boundary {
	return p.boundary
}

// Bind returns a copy bound to the boundary
func (p *DataPoint) Bind(b *Boundary) *DataPoint {
	return &DataPoint{values: p.Values(), boundary: b}
}

// With returns a copy with one observable set
func (p *DataPoint) With(name string, value float64) *DataPoint {
	vals := p.Values()
	vals[name] = value
	return &DataPoint{values: vals, boundary: p.boundary}
}

// WithValues returns a copy with several observables set
func (p *DataPoint) WithValues(values map[string]float64) *DataPoint {
	vals := p.Values()
	for k, v := range values {
		vals[k] = v
	}
	return &DataPoint{values: vals, boundary: p.boundary}
}

// WithCoordinates returns a copy with names[i] set to coords[i]. It copies
// the values once, so it is the cheap way to move a point inside an integral.
func (p *DataPoint) WithCoordinates(names []string, coords []float64) *DataPoint {
	vals := p.Values()
	for i, name := range names {
		vals[name] = coords[i]
	}
	return &DataPoint{values: vals, boundary: p.boundary}
}

// DiscreteFingerprint hashes the observables that are discrete in the bound
// boundary. Integrals over the same boundary depend only on these values.
func (p *DataPoint) DiscreteFingerprint() (core.PointHash, error) {
	if p.boundary == nil {
		return "", core.ErrUnboundPoint
	}
	discrete := make(map[string]float64)
	for _, name := range p.boundary.DiscreteNames() {
		if v, ok := p.values[name]; ok {
			discrete[name] = v
		}
	}
	return core.ComputePointHash(discrete), nil
}

// DescribeDiscrete renders the discrete assignment, e.g. "tag=1, category=2"
func (p *DataPoint) DescribeDiscrete() string {
	if p.boundary == nil {
		return ""
	}
	var parts []string
	for _, name := range p.boundary.DiscreteNames() {
		if v, ok := p.values[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%g", name, v))
		}
	}
	return strings.Join(parts, ", ")
}
