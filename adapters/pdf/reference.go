package pdf

import (
	"math"

	"pdfint/domain/core"
	"pdfint/domain/phasespace"
	"pdfint/ports"

	"gonum.org/v1/gonum/stat/distuv"
)

// Constant is level everywhere on its observables
type Constant struct {
	*base
}

func NewConstant(level float64, observables ...string) *Constant {
	return &Constant{newBase("constant", observables, map[string]float64{"level": level})}
}

func (c *Constant) Evaluate(*phasespace.DataPoint) (float64, error) {
	return c.Parameter("level"), nil
}

// AnalyticIntegral is level times the volume of the continuous observables
func (c *Constant) AnalyticIntegral(_ *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	v := c.Parameter("level")
	for _, obs := range c.observables {
		lo, hi, ok, err := continuousRange(boundary, obs)
		if err != nil {
			return 0, err
		}
		if ok {
			v *= hi - lo
		}
	}
	return v, nil
}

func (c *Constant) Clone() ports.Integrand { return &Constant{c.cloneBase()} }

// LinearSum is offset + Σ x_i over its observables
type LinearSum struct {
	*base
}

func NewLinearSum(offset float64, observables ...string) *LinearSum {
	return &LinearSum{newBase("linear", observables, map[string]float64{"offset": offset})}
}

func (l *LinearSum) Evaluate(point *phasespace.DataPoint) (float64, error) {
	total := l.Parameter("offset")
	for _, obs := range l.observables {
		v, err := point.Value(obs)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// AnalyticIntegral integrates term by term. Discrete observables contribute
// their point value.
func (l *LinearSum) AnalyticIntegral(point *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	volume := 1.0
	var lo, hi []float64
	var fixed float64
	for _, obs := range l.observables {
		a, b, ok, err := continuousRange(boundary, obs)
		if err != nil {
			return 0, err
		}
		if !ok {
			v, err := point.Value(obs)
			if err != nil {
				return 0, err
			}
			fixed += v
			continue
		}
		volume *= b - a
		lo = append(lo, a)
		hi = append(hi, b)
	}

	total := (l.Parameter("offset") + fixed) * volume
	for i := range lo {
		width := hi[i] - lo[i]
		if width == 0 {
			continue
		}
		// ∫ x dx over dimension i times the width of the others
		total += 0.5 * (hi[i]*hi[i] - lo[i]*lo[i]) * volume / width
	}
	return total, nil
}

func (l *LinearSum) Clone() ports.Integrand { return &LinearSum{l.cloneBase()} }

// Gaussian is an unnormalised normal density in one observable
type Gaussian struct {
	*base
	observable string
}

func NewGaussian(observable string, mean, sigma float64) *Gaussian {
	return &Gaussian{
		base:       newBase("gaussian", []string{observable}, map[string]float64{"mean": mean, "sigma": sigma}),
		observable: observable,
	}
}

func (g *Gaussian) Evaluate(point *phasespace.DataPoint) (float64, error) {
	x, err := point.Value(g.observable)
	if err != nil {
		return 0, err
	}
	z := (x - g.Parameter("mean")) / g.Parameter("sigma")
	return math.Exp(-0.5 * z * z), nil
}

// AnalyticIntegral uses the normal CDF; a non-positive width has none
func (g *Gaussian) AnalyticIntegral(_ *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	sigma := g.Parameter("sigma")
	if sigma <= 0 {
		return 0, core.ErrNoAnalyticIntegral
	}
	lo, hi, ok, err := continuousRange(boundary, g.observable)
	if err != nil || !ok {
		return 0, core.ErrNoAnalyticIntegral
	}
	n := distuv.Normal{Mu: g.Parameter("mean"), Sigma: sigma}
	return sigma * math.Sqrt(2*math.Pi) * (n.CDF(hi) - n.CDF(lo)), nil
}

func (g *Gaussian) Clone() ports.Integrand {
	return &Gaussian{base: g.cloneBase(), observable: g.observable}
}

// Exponential is exp(-t/tau) for a decay-time observable
type Exponential struct {
	*base
	observable string
}

func NewExponential(observable string, tau float64) *Exponential {
	return &Exponential{
		base:       newBase("exponential", []string{observable}, map[string]float64{"tau": tau}),
		observable: observable,
	}
}

func (x *Exponential) Evaluate(point *phasespace.DataPoint) (float64, error) {
	t, err := point.Value(x.observable)
	if err != nil {
		return 0, err
	}
	return math.Exp(-t / x.Parameter("tau")), nil
}

// AnalyticIntegral is tau × (CDF(max) - CDF(min)) of the matching exponential
// distribution; ranges reaching below zero have none
func (x *Exponential) AnalyticIntegral(_ *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	tau := x.Parameter("tau")
	lo, hi, ok, err := continuousRange(boundary, x.observable)
	if err != nil || !ok || tau <= 0 || lo < 0 {
		return 0, core.ErrNoAnalyticIntegral
	}
	d := distuv.Exponential{Rate: 1 / tau}
	return tau * (d.CDF(hi) - d.CDF(lo)), nil
}

func (x *Exponential) Clone() ports.Integrand {
	return &Exponential{base: x.cloneBase(), observable: x.observable}
}

// TaggedMixture is (1 + tag × asymmetry) × Gaussian(mass) × exp(-time/tau):
// a discrete tag crossed with two continuous observables
type TaggedMixture struct {
	*base
	mass, time, tag string
}

func NewTaggedMixture(mass, time, tag string, mean, sigma, tau, asymmetry float64) *TaggedMixture {
	return &TaggedMixture{
		base: newBase("mixture", []string{mass, time, tag}, map[string]float64{
			"mean": mean, "sigma": sigma, "tau": tau, "asymmetry": asymmetry,
		}),
		mass: mass,
		time: time,
		tag:  tag,
	}
}

func (m *TaggedMixture) Evaluate(point *phasespace.DataPoint) (float64, error) {
	x, err := point.Value(m.mass)
	if err != nil {
		return 0, err
	}
	t, err := point.Value(m.time)
	if err != nil {
		return 0, err
	}
	q, err := point.Value(m.tag)
	if err != nil {
		return 0, err
	}
	z := (x - m.Parameter("mean")) / m.Parameter("sigma")
	return (1 + q*m.Parameter("asymmetry")) * math.Exp(-0.5*z*z) * math.Exp(-t/m.Parameter("tau")), nil
}

// AnalyticIntegral factorises into the Gaussian and exponential integrals for
// the point's tag value
func (m *TaggedMixture) AnalyticIntegral(point *phasespace.DataPoint, boundary *phasespace.Boundary) (float64, error) {
	q, err := point.Value(m.tag)
	if err != nil {
		return 0, core.ErrNoAnalyticIntegral
	}
	g := NewGaussian(m.mass, m.Parameter("mean"), m.Parameter("sigma"))
	gi, err := g.AnalyticIntegral(point, boundary)
	if err != nil {
		return 0, err
	}
	e := NewExponential(m.time, m.Parameter("tau"))
	ei, err := e.AnalyticIntegral(point, boundary)
	if err != nil {
		return 0, err
	}
	return (1 + q*m.Parameter("asymmetry")) * gi * ei, nil
}

func (m *TaggedMixture) Clone() ports.Integrand {
	return &TaggedMixture{base: m.cloneBase(), mass: m.mass, time: m.time, tag: m.tag}
}
