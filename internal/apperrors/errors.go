// Package apperrors names the error taxonomy of the simulation core by
// kind rather than by Go type, so callers can branch on Kind without
// importing every producer package.
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies a taxonomy entry from the error-handling design.
type Kind string

const (
	KindConfig            Kind = "ConfigError"
	KindDataLoad           Kind = "DataLoadError"
	KindInvalidTransition  Kind = "InvalidTransition"
	KindCapacityViolation  Kind = "CapacityViolation"
	KindUnknownStation     Kind = "UnknownStation"
	KindUnknownVehicle     Kind = "UnknownVehicle"
	KindUnknownPassenger   Kind = "UnknownPassenger"
	KindTimeRegression     Kind = "TimeRegression"
	KindInvalidTime        Kind = "InvalidTime"
	KindMatrixShapeMismatch Kind = "MatrixShapeMismatch"
)

// Recoverable reports whether the engine may continue after an error of
// this kind. Only CapacityViolation from optimizer output is recoverable.
func (k Kind) Recoverable() bool {
	return k == KindCapacityViolation
}

// SimError is a structured error carrying a taxonomy Kind and optional
// detail fields, in the shape of draymaster-tms's AppError.
type SimError struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *SimError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SimError) Unwrap() error { return e.Err }

// New creates a SimError of the given kind.
func New(kind Kind, message string) *SimError {
	return &SimError{Kind: kind, Message: message, Details: make(map[string]any)}
}

// Wrap attaches a taxonomy Kind to an underlying error, preserving its
// stack trace via github.com/pkg/errors when the source crosses an I/O
// boundary (loaders).
func Wrap(err error, kind Kind, message string) *SimError {
	return &SimError{Kind: kind, Message: message, Err: errors.WithStack(err), Details: make(map[string]any)}
}

// WithDetail attaches a detail key/value and returns the receiver for chaining.
func (e *SimError) WithDetail(key string, value any) *SimError {
	e.Details[key] = value
	return e
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if se, ok := err.(*SimError); ok {
			return se.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
