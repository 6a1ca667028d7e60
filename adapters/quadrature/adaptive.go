package quadrature

import (
	"container/heap"
	"math"

	"pdfint/internal/errors"
)

// Mode selects the tolerance profile of the adaptive integrator
type Mode int

const (
	// Accurate is used for normalisation integrals that gate the likelihood
	Accurate Mode = iota
	// Projection is used for projections where exactness is not required
	Projection
)

func (m Mode) String() string {
	switch m {
	case Accurate:
		return "accurate"
	case Projection:
		return "projection"
	default:
		return "unknown"
	}
}

// Tolerance bounds the adaptive search
type Tolerance struct {
	Absolute       float64
	Relative       float64
	MaxEvaluations int
}

var (
	AccurateTolerance   = Tolerance{Absolute: 1e-9, Relative: 1e-9, MaxEvaluations: 1_000_000}
	ProjectionTolerance = Tolerance{Absolute: 1e-4, Relative: 1e-4, MaxEvaluations: 10_000}
)

// MultiFunction is a multi-variable integrand. The slice passed in is reused
// between calls and must not be retained.
type MultiFunction func(x []float64) (float64, error)

// Estimate is the outcome of an adaptive integration
type Estimate struct {
	Value       float64
	Error       float64
	Evaluations int
	Regions     int
	Converged   bool
}

// Adaptive performs globally adaptive cubature with the degree-7 Genz-Malik
// rule and its embedded degree-5 error estimate. The region with the largest
// error is bisected along the axis with the largest fourth difference until
// the error meets the tolerance or the evaluation budget is spent.
type Adaptive struct {
	accurate Tolerance
	tol      Tolerance
	mode     Mode
}

// NewAdaptive creates an integrator in Accurate mode using the given accurate tolerance.
// A zero Tolerance selects AccurateTolerance.
func NewAdaptive(accurate Tolerance) *Adaptive {
	if accurate == (Tolerance{}) {
		accurate = AccurateTolerance
	}
	return &Adaptive{accurate: accurate, tol: accurate, mode: Accurate}
}

// SetMode switches the tolerance profile for every subsequent call
func (a *Adaptive) SetMode(mode Mode) {
	a.mode = mode
	if mode == Projection {
		a.tol = ProjectionTolerance
		return
	}
	a.tol = a.accurate
}

func (a *Adaptive) Mode() Mode           { return a.mode }
func (a *Adaptive) Tolerance() Tolerance { return a.tol }

const (
	gmLambda2  = 0.3585685828003180919906451539079374954541 // sqrt(9/70)
	gmLambda4  = 0.9486832980505137995996680633298155601160 // sqrt(9/10)
	gmLambda5  = 0.6882472016116852977216287342936235251269 // sqrt(9/19)
	gmWeight2  = 980.0 / 6561.0
	gmWeight4  = 200.0 / 19683.0
	gmWeightE2 = 245.0 / 486.0
	gmWeightE4 = 25.0 / 729.0
	gmRatio    = (gmLambda2 * gmLambda2) / (gmLambda4 * gmLambda4)
)

type region struct {
	center []float64
	half   []float64
	value  float64
	err    float64
	split  int
}

type regionHeap []*region

func (h regionHeap) Len() int            { return len(h) }
func (h regionHeap) Less(i, j int) bool  { return h[i].err > h[j].err }
func (h regionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *regionHeap) Push(x interface{}) { *h = append(*h, x.(*region)) }
func (h *regionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}

// EvaluationsPerRegion is the number of integrand calls one Genz-Malik rule application costs
func EvaluationsPerRegion(dim int) int {
	return 1 + 4*dim + 2*dim*(dim-1) + (1 << dim)
}

// Integrate integrates f over the box [minima, maxima]. At least two
// dimensions are required. When the budget runs out before convergence the
// best estimate is returned with Converged=false.
func (a *Adaptive) Integrate(f MultiFunction, minima, maxima []float64) (Estimate, error) {
	dim := len(minima)
	if dim < 2 || dim != len(maxima) {
		return Estimate{}, errors.ConfigInvalidf("adaptive cubature needs matching bounds of at least two dimensions, got %d and %d", len(minima), len(maxima))
	}
	if dim > 30 {
		return Estimate{}, errors.ConfigInvalidf("adaptive cubature supports at most 30 dimensions, got %d", dim)
	}

	root := &region{center: make([]float64, dim), half: make([]float64, dim)}
	for i := range minima {
		if math.IsNaN(minima[i]) || math.IsNaN(maxima[i]) || math.IsInf(minima[i], 0) || math.IsInf(maxima[i], 0) || minima[i] > maxima[i] {
			return Estimate{}, errors.ConfigInvalidf("invalid integration range [%g, %g] in dimension %d", minima[i], maxima[i], i)
		}
		if minima[i] == maxima[i] {
			return Estimate{Converged: true}, nil
		}
		root.center[i] = 0.5 * (minima[i] + maxima[i])
		root.half[i] = 0.5 * (maxima[i] - minima[i])
	}

	rule := newGenzMalik(dim)
	if err := rule.apply(f, root); err != nil {
		return Estimate{}, err
	}
	est := Estimate{Value: root.value, Error: root.err, Evaluations: rule.perRegion, Regions: 1}

	regions := &regionHeap{root}
	for !a.converged(est) && est.Evaluations+2*rule.perRegion <= a.tol.MaxEvaluations {
		worst := heap.Pop(regions).(*region)
		left, right := bisect(worst)
		if err := rule.apply(f, left); err != nil {
			return Estimate{}, err
		}
		if err := rule.apply(f, right); err != nil {
			return Estimate{}, err
		}
		est.Evaluations += 2 * rule.perRegion
		est.Value += left.value + right.value - worst.value
		est.Error += left.err + right.err - worst.err
		est.Regions++
		heap.Push(regions, left)
		heap.Push(regions, right)
	}

	// re-add to shed the drift of the running sums
	est.Value, est.Error = 0, 0
	for _, r := range *regions {
		est.Value += r.value
		est.Error += r.err
	}
	est.Converged = a.converged(est)
	return est, nil
}

func (a *Adaptive) converged(est Estimate) bool {
	return est.Error <= math.Max(a.tol.Absolute, a.tol.Relative*math.Abs(est.Value))
}

func bisect(r *region) (*region, *region) {
	d := r.split
	left := &region{center: append([]float64(nil), r.center...), half: append([]float64(nil), r.half...)}
	right := &region{center: append([]float64(nil), r.center...), half: append([]float64(nil), r.half...)}
	h := 0.5 * r.half[d]
	left.half[d], right.half[d] = h, h
	left.center[d] = r.center[d] - h
	right.center[d] = r.center[d] + h
	return left, right
}

type genzMalik struct {
	dim       int
	perRegion int
	weight1   float64
	weight3   float64
	weight5   float64
	weightE1  float64
	weightE3  float64
	x         []float64
	diff      []float64
}

func newGenzMalik(dim int) *genzMalik {
	n := float64(dim)
	return &genzMalik{
		dim:       dim,
		perRegion: EvaluationsPerRegion(dim),
		weight1:   (12824 - 9120*n + 400*n*n) / 19683,
		weight3:   (1820 - 400*n) / 19683,
		weight5:   6859.0 / 19683.0 / float64(int(1)<<dim),
		weightE1:  (729 - 950*n + 50*n*n) / 729,
		weightE3:  (265 - 100*n) / 1458,
		x:         make([]float64, dim),
		diff:      make([]float64, dim),
	}
}

func (g *genzMalik) eval(f MultiFunction) (float64, error) {
	return f(g.x)
}

// apply fills r.value, r.err and r.split
func (g *genzMalik) apply(f MultiFunction, r *region) error {
	copy(g.x, r.center)
	f0, err := g.eval(f)
	if err != nil {
		return err
	}

	var sum2, sum3, sum4, sum5 float64
	for i := 0; i < g.dim; i++ {
		c, h := r.center[i], r.half[i]

		g.x[i] = c - gmLambda2*h
		a1, err := g.eval(f)
		if err != nil {
			return err
		}
		g.x[i] = c + gmLambda2*h
		a2, err := g.eval(f)
		if err != nil {
			return err
		}
		g.x[i] = c - gmLambda4*h
		b1, err := g.eval(f)
		if err != nil {
			return err
		}
		g.x[i] = c + gmLambda4*h
		b2, err := g.eval(f)
		if err != nil {
			return err
		}
		g.x[i] = c

		sum2 += a1 + a2
		sum3 += b1 + b2
		g.diff[i] = math.Abs((a1 + a2 - 2*f0) - gmRatio*(b1+b2-2*f0))
	}

	for i := 0; i < g.dim-1; i++ {
		for j := i + 1; j < g.dim; j++ {
			for _, si := range [2]float64{-1, 1} {
				for _, sj := range [2]float64{-1, 1} {
					g.x[i] = r.center[i] + si*gmLambda4*r.half[i]
					g.x[j] = r.center[j] + sj*gmLambda4*r.half[j]
					v, err := g.eval(f)
					if err != nil {
						return err
					}
					sum4 += v
				}
			}
			g.x[i] = r.center[i]
			g.x[j] = r.center[j]
		}
	}

	for mask := 0; mask < 1<<g.dim; mask++ {
		for i := 0; i < g.dim; i++ {
			if mask&(1<<i) != 0 {
				g.x[i] = r.center[i] + gmLambda5*r.half[i]
			} else {
				g.x[i] = r.center[i] - gmLambda5*r.half[i]
			}
		}
		v, err := g.eval(f)
		if err != nil {
			return err
		}
		sum5 += v
	}

	vol := 1.0
	for _, h := range r.half {
		vol *= 2 * h
	}

	r.value = vol * (g.weight1*f0 + gmWeight2*sum2 + g.weight3*sum3 + gmWeight4*sum4 + g.weight5*sum5)
	fifth := vol * (g.weightE1*f0 + gmWeightE2*sum2 + g.weightE3*sum3 + gmWeightE4*sum4)
	r.err = math.Abs(r.value - fifth)

	r.split = 0
	for i := 1; i < g.dim; i++ {
		if g.diff[i] > g.diff[r.split] || (g.diff[i] == g.diff[r.split] && r.half[i] > r.half[r.split]) {
			r.split = i
		}
	}
	return nil
}
