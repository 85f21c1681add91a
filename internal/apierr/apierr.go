// Package apierr defines the stable error-kind taxonomy shared by the
// engine, the API surface, and the CLI exit-code mapping.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is a stable identifier for one class of error, independent of the
// Go error type that carries it.
type Kind string

const (
	NotFound             Kind = "NOT_FOUND"
	Validation           Kind = "VALIDATION"
	TransitionNotAllowed Kind = "TRANSITION_NOT_ALLOWED"
	HardEnforcement      Kind = "HARD_ENFORCEMENT"
	CycleDetected        Kind = "CYCLE_DETECTED"
	Conflict             Kind = "CONFLICT"
	MigrationFailed      Kind = "MIGRATION_FAILED"
	TemplateParse        Kind = "TEMPLATE_PARSE"
	IOError              Kind = "IO_ERROR"
	Internal             Kind = "INTERNAL"
)

// Error is the typed error carried across component boundaries. Fields
// beyond Kind/Message are populated only by the kinds that need them.
type Error struct {
	Kind    Kind
	Message string

	// HardEnforcement details.
	From            string
	To              string
	Type            string
	MissingFields   []string
	ValidTransitions []string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// New builds a plain error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf is a convenience constructor for the common not-found case.
func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

// Validationf is a convenience constructor for validation failures.
func Validationf(format string, args ...interface{}) *Error {
	return New(Validation, format, args...)
}

// HardEnforcementError constructs the HARD_ENFORCEMENT error, carrying
// the hint data so callers (CLI, API surface) can self-correct.
func HardEnforcementError(typ, from, to string, missing, validTransitions []string) *Error {
	return &Error{
		Kind:             HardEnforcement,
		Message:          fmt.Sprintf("transition %s -> %s blocked: missing required fields %v", from, to, missing),
		Type:             typ,
		From:             from,
		To:               to,
		MissingFields:    missing,
		ValidTransitions: validTransitions,
	}
}

// CycleError constructs the CYCLE_DETECTED error.
func CycleError(from, to string) *Error {
	return &Error{Kind: CycleDetected, Message: fmt.Sprintf("adding dependency %s -> %s would create a cycle", from, to)}
}

// ConflictError constructs the CONFLICT error (optimistic-locking loss).
func ConflictError(format string, args ...interface{}) *Error {
	return New(Conflict, format, args...)
}

// As extracts an *Error from err, if any wraps one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the HTTP status the API surface should use.
func HTTPStatus(k Kind) int {
	switch k {
	case NotFound:
		return 404
	case Validation, TransitionNotAllowed, HardEnforcement, CycleDetected, TemplateParse:
		return 400
	case Conflict:
		return 409
	default:
		return 500
	}
}

// CLIExitCode maps a Kind to the CLI exit-code taxonomy from spec §6:
// 0 success, 1 user error, 2 internal error.
func CLIExitCode(k Kind) int {
	switch k {
	case NotFound, Validation, TransitionNotAllowed, HardEnforcement, CycleDetected, Conflict, TemplateParse:
		return 1
	default:
		return 2
	}
}
