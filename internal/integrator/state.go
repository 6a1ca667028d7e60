package integrator

// State records how an engine has decided to normalise its integrand
type State int

const (
	// Untested means the validation protocol has not run yet
	Untested State = iota
	// TestedAnalytic means the integrand's own integral passed validation
	TestedAnalytic
	// TestedNumericFallback means integrals are computed numerically and cached
	TestedNumericFallback
)

func (s State) String() string {
	switch s {
	case Untested:
		return "untested"
	case TestedAnalytic:
		return "tested-analytic"
	case TestedNumericFallback:
		return "tested-numeric-fallback"
	default:
		return "unknown"
	}
}

// IsTested reports whether the validation decision has been taken
func (s State) IsTested() bool {
	return s != Untested
}
