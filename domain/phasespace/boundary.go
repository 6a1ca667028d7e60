package phasespace

import (
	"pdfint/domain/core"
)

// Boundary is the phase space an integral runs over: an ordered set of named
// constraints. The engine treats a Boundary as read-only; only the owning
// configuration calls SetConstraint, and only between integration calls.
type Boundary struct {
	order       []string
	constraints map[string]*Constraint
}

// NewBoundary creates a boundary from constraints in declaration order.
// A later constraint with the same name replaces the earlier one in place.
func NewBoundary(constraints ...*Constraint) *Boundary {
	b := &Boundary{constraints: make(map[string]*Constraint, len(constraints))}
	for _, c := range constraints {
		b.SetConstraint(c)
	}
	return b
}

// SetConstraint adds a constraint, or replaces the one with the same name keeping its position
func (b *Boundary) SetConstraint(c *Constraint) {
	if c == nil {
		return
	}
	if _, exists := b.constraints[c.Name()]; !exists {
		b.order = append(b.order, c.Name())
	}
	b.constraints[c.Name()] = c
}

// Constraint returns the named constraint or ErrMissingConstraint
func (b *Boundary) Constraint(name string) (*Constraint, error) {
	c, ok := b.constraints[name]
	if !ok {
		return nil, core.NewMissingConstraintError(name)
	}
	return c, nil
}

// Has reports whether a constraint with that name exists
func (b *Boundary) Has(name string) bool {
	_, ok := b.constraints[name]
	return ok
}

// Names returns constraint names in declaration order
func (b *Boundary) Names() []string {
	names := make([]string, len(b.order))
	copy(names, b.order)
	return names
}

// DiscreteNames returns the discrete constraint names in declaration order
func (b *Boundary) DiscreteNames() []string {
	var names []string
	for _, name := range b.order {
		if b.constraints[name].IsDiscrete() {
			names = append(names, name)
		}
	}
	return names
}

// ContinuousNames returns the continuous constraint names in declaration order
func (b *Boundary) ContinuousNames() []string {
	var names []string
	for _, name := range b.order {
		if !b.constraints[name].IsDiscrete() {
			names = append(names, name)
		}
	}
	return names
}

// NumberOfCombinations is the product of the discrete set sizes, 1 when nothing is discrete
func (b *Boundary) NumberOfCombinations() int {
	n := 1
	for _, name := range b.order {
		c := b.constraints[name]
		if c.IsDiscrete() {
			n *= len(c.values)
		}
	}
	return n
}

// Fingerprint identifies the full constraint set
func (b *Boundary) Fingerprint() core.BoundaryHash {
	parts := make([]string, 0, len(b.order))
	for _, name := range b.order {
		parts = append(parts, b.constraints[name].String())
	}
	return core.ComputeBoundaryHash(parts)
}

// Len returns the number of constraints
func (b *Boundary) Len() int {
	return len(b.order)
}
