package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Failure categories; internal/errors.AppError matches these through errors.Is
	ErrConfiguration      = errors.New("integration misconfigured")
	ErrEvaluation         = errors.New("integrand evaluation failed")
	ErrNumericInstability = errors.New("numerically unstable integral")
	ErrUsage              = errors.New("invalid integrator usage")

	// Phase-space errors
	ErrInvalidConstraint = errors.New("invalid constraint")
	ErrMissingConstraint = errors.New("constraint not found")
	ErrEmptyBoundary     = errors.New("boundary has no constraints")
	ErrUnboundPoint      = errors.New("data point is not bound to a boundary")
	ErrMissingObservable = errors.New("observable missing from data point")

	// Integrand capability errors
	ErrNoAnalyticIntegral = errors.New("integrand has no analytic integral")
	ErrNotClonable        = errors.New("integrand cannot be cloned")
)

// Error constructors with context
func NewConstraintError(name string, reason string) error {
	return fmt.Errorf("%w %s: %s", ErrInvalidConstraint, name, reason)
}

func NewMissingConstraintError(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingConstraint, name)
}

func NewMissingObservableError(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingObservable, name)
}

// Error checking helpers
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrEvaluation) ||
		errors.Is(err, ErrNumericInstability) ||
		errors.Is(err, ErrUsage)
}
