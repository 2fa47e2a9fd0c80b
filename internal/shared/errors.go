// Package shared contains the error kinds used across the scheduling packages.
// It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be checked with errors.Is().
var (
	// ErrInvalidArgument marks caller misuse: a rating outside 1..4, a negative
	// session size, negative weights. Never clamped silently.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDataError marks non-finite or out-of-range input signals that must be
	// rejected before they reach a priority computation.
	ErrDataError = errors.New("data error")

	// ErrNotFound is returned by repositories for missing rows.
	ErrNotFound = errors.New("not found")
)

// ScheduleError represents a scheduling error with context.
type ScheduleError struct {
	Component string // e.g., "fsrs", "mastery", "priority", "queue"
	Op        string // Operation that failed, e.g., "Schedule"
	Kind      error  // Base error kind for errors.Is() checking
	Message   string // Human-readable message
	Err       error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *ScheduleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *ScheduleError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching on the kind and the wrapped error.
func (e *ScheduleError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewError creates a new scheduling error.
func NewError(component, op string, kind error, message string) *ScheduleError {
	return &ScheduleError{
		Component: component,
		Op:        op,
		Kind:      kind,
		Message:   message,
	}
}

// Invalid builds an ErrInvalidArgument error with a formatted message.
func Invalid(component, op, format string, args ...interface{}) *ScheduleError {
	return NewError(component, op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// BadData builds an ErrDataError error with a formatted message.
func BadData(component, op, format string, args ...interface{}) *ScheduleError {
	return NewError(component, op, ErrDataError, fmt.Sprintf(format, args...))
}

// IsInvalidArgument reports whether err is caller misuse.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsDataError reports whether err is a rejected input signal.
func IsDataError(err error) bool {
	return errors.Is(err, ErrDataError)
}

// IsNotFound reports whether err is a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
