package errors

import (
	stderrors "errors"
	"fmt"

	"pdfint/domain/core"
)

// AppError represents a structured integration error
type AppError struct {
	Code      string
	Message   string
	Integrand string
	Dimension string
	Cause     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Integrand != "" {
		msg = fmt.Sprintf("%s [integrand %s]", msg, e.Integrand)
	}
	if e.Dimension != "" {
		msg = fmt.Sprintf("%s [dimension %s]", msg, e.Dimension)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the domain sentinel that corresponds to the error code, so callers
// can use errors.Is(err, core.ErrConfiguration) without knowing about AppError.
func (e *AppError) Is(target error) bool {
	switch target {
	case core.ErrConfiguration:
		return e.Code == CodeConfigInvalid
	case core.ErrEvaluation:
		return e.Code == CodeEvaluationFailed
	case core.ErrNumericInstability:
		return e.Code == CodeNumericInstability
	case core.ErrUsage:
		return e.Code == CodeUsageError
	}
	return false
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// ForIntegrand names the integrand the error belongs to
func (e *AppError) ForIntegrand(name string) *AppError {
	e.Integrand = name
	return e
}

// ForDimension names the dimension the error belongs to
func (e *AppError) ForDimension(name string) *AppError {
	e.Dimension = name
	return e
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:      appErr.Code,
			Message:   message,
			Integrand: appErr.Integrand,
			Dimension: appErr.Dimension,
			Cause:     err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeEvaluationFailed   = "EVALUATION_FAILED"
	CodeNumericInstability = "NUMERIC_INSTABILITY"
	CodeUsageError         = "USAGE_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ConfigInvalidf(format string, args ...interface{}) *AppError {
	return New(CodeConfigInvalid, fmt.Sprintf(format, args...))
}

// EvaluationFailed reports an integrand that failed to evaluate or integrate itself
func EvaluationFailed(integrand string, cause error) *AppError {
	return &AppError{
		Code:      CodeEvaluationFailed,
		Message:   "integrand evaluation failed",
		Integrand: integrand,
		Cause:     cause,
	}
}

func NumericInstability(message string) *AppError {
	return New(CodeNumericInstability, message)
}

func UsageError(message string) *AppError {
	return New(CodeUsageError, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
