// Package util provides logging and the error taxonomy shared by every pssctl package.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per failure kind
var (
	ErrTransport            = errors.New("transport failure")
	ErrPreconditionFailed   = errors.New("precondition not met")
	ErrConditionUnsatisfied = errors.New("condition not satisfied")
	ErrMalformedConditional = errors.New("malformed conditional")
	ErrValidationFailed     = errors.New("validation failed")
)

// ErrorKind classifies an error for callers that need to tell designed-for
// outcomes (an unsatisfied wait) apart from truly fatal ones.
type ErrorKind string

const (
	KindTransport    ErrorKind = "transport"
	KindPrecondition ErrorKind = "precondition"
	KindUnsatisfied  ErrorKind = "unsatisfied"
	KindMalformed    ErrorKind = "malformed"
	KindValidation   ErrorKind = "validation"
	KindUnknown      ErrorKind = "unknown"
)

// KindOf returns the kind of err, or KindUnknown for nil and foreign errors.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrPreconditionFailed):
		return KindPrecondition
	case errors.Is(err, ErrConditionUnsatisfied):
		return KindUnsatisfied
	case errors.Is(err, ErrMalformedConditional):
		return KindMalformed
	case errors.Is(err, ErrValidationFailed):
		return KindValidation
	}
	return KindUnknown
}

// TransportError is a session-level failure: disconnect, timeout, or an
// error pattern reported by the device.
type TransportError struct {
	Device  string
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport")
	if e.Device != "" {
		b.WriteString(" " + e.Device)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " (%s)", e.Command)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// NewTransportError wraps err as a transport failure
func NewTransportError(device, command string, err error) *TransportError {
	return &TransportError{Device: device, Command: command, Err: err}
}

// DeviceError is raised when command output matches one of the CLI error
// patterns. It is always delivered wrapped in a TransportError.
type DeviceError struct {
	Command string
	Pattern string
	Output  string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected %q: %s", e.Command, strings.TrimSpace(e.Output))
}

// PreconditionError represents a failed precondition check with context
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// UnsatisfiedError reports wait conditions that did not converge before the
// retry count or timeout ran out.
type UnsatisfiedError struct {
	Message    string
	Conditions []string
}

func (e *UnsatisfiedError) Error() string {
	if len(e.Conditions) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Conditions, "; "))
}

func (e *UnsatisfiedError) Unwrap() error {
	return ErrConditionUnsatisfied
}

// NewUnsatisfiedError creates an unsatisfied-condition error
func NewUnsatisfiedError(message string, conditions ...string) *UnsatisfiedError {
	return &UnsatisfiedError{Message: message, Conditions: conditions}
}

// ConditionalError is returned when a wait condition cannot be parsed
type ConditionalError struct {
	Input  string
	Reason string
}

func (e *ConditionalError) Error() string {
	return fmt.Sprintf("failed to parse conditional %q: %s", e.Input, e.Reason)
}

func (e *ConditionalError) Unwrap() error {
	return ErrMalformedConditional
}

// NewConditionalError creates a malformed-conditional error
func NewConditionalError(input, reason string) *ConditionalError {
	return &ConditionalError{Input: input, Reason: reason}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
