package phasespace

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"pdfint/domain/core"
)

// Constraint bounds one named dimension of a phase space. It is either
// continuous (a closed interval) or discrete (a finite value set).
type Constraint struct {
	name     string
	unit     string
	discrete bool
	minimum  float64
	maximum  float64
	values   []float64
}

// NewContinuous creates a continuous constraint over [minimum, maximum]
func NewContinuous(name string, minimum, maximum float64, unit string) (*Constraint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, core.NewConstraintError("<unnamed>", "name cannot be empty")
	}
	if math.IsNaN(minimum) || math.IsNaN(maximum) {
		return nil, core.NewConstraintError(name, "bounds cannot be NaN")
	}
	if minimum > maximum {
		return nil, core.NewConstraintError(name, fmt.Sprintf("minimum %g exceeds maximum %g", minimum, maximum))
	}
	return &Constraint{name: name, unit: unit, minimum: minimum, maximum: maximum}, nil
}

// NewDiscrete creates a discrete constraint over a non-empty value set.
// Values keep their declared order.
func NewDiscrete(name string, values []float64, unit string) (*Constraint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, core.NewConstraintError("<unnamed>", "name cannot be empty")
	}
	if len(values) == 0 {
		return nil, core.NewConstraintError(name, "discrete value set is empty")
	}
	vals := make([]float64, len(values))
	copy(vals, values)

	minimum, maximum := vals[0], vals[0]
	for _, v := range vals[1:] {
		minimum = math.Min(minimum, v)
		maximum = math.Max(maximum, v)
	}
	return &Constraint{name: name, unit: unit, discrete: true, minimum: minimum, maximum: maximum, values: vals}, nil
}

// MustContinuous is NewContinuous for fixtures whose bounds are known to be valid
func MustContinuous(name string, minimum, maximum float64) *Constraint {
	c, err := NewContinuous(name, minimum, maximum, "")
	if err != nil {
		panic(err)
	}
	return c
}

// MustDiscrete is NewDiscrete for fixtures whose value sets are known to be valid
func MustDiscrete(name string, values ...float64) *Constraint {
	c, err := NewDiscrete(name, values, "")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Constraint) Name() string     { return c.name }
func (c *Constraint) Unit() string     { return c.unit }
func (c *Constraint) IsDiscrete() bool { return c.discrete }
func (c *Constraint) Minimum() float64 { return c.minimum }
func (c *Constraint) Maximum() float64 { return c.maximum }

// Values returns a copy of the discrete value set, nil for continuous constraints
func (c *Constraint) Values() []float64 {
	if !c.discrete {
		return nil
	}
	vals := make([]float64, len(c.values))
	copy(vals, c.values)
	return vals
}

// Width is maximum-minimum for continuous constraints and 0 for discrete ones
func (c *Constraint) Width() float64 {
	if c.discrete {
		return 0
	}
	return c.maximum - c.minimum
}

// Midpoint is the representative value used when a combination needs a continuous value
func (c *Constraint) Midpoint() float64 {
	if c.discrete {
		return c.values[0]
	}
	return c.minimum + 0.5*(c.maximum-c.minimum)
}

// Contains reports whether v lies inside the constraint
func (c *Constraint) Contains(v float64) bool {
	if c.discrete {
		for _, d := range c.values {
			if d == v {
				return true
			}
		}
		return false
	}
	return v >= c.minimum && v <= c.maximum
}

// String renders the constraint; the rendering is part of the boundary fingerprint
func (c *Constraint) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	if c.discrete {
		b.WriteString("{")
		for i, v := range c.values {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteString("}")
	} else {
		b.WriteString("[")
		b.WriteString(strconv.FormatFloat(c.minimum, 'g', -1, 64))
		b.WriteString(",")
		b.WriteString(strconv.FormatFloat(c.maximum, 'g', -1, 64))
		b.WriteString("]")
	}
	if c.unit != "" {
		b.WriteString(" ")
		b.WriteString(c.unit)
	}
	return b.String()
}
