// Package domain defines the error kinds shared by all telemetry subsystems.
// Services surface these typed errors; the HTTP layer translates them to
// transport status codes in exactly one place.
package domain

import (
	"errors"
	"fmt"
)

// Kind categorizes a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidRequest
	KindInvalidState
	KindPermissionDenied
	KindConstraintViolation
	KindTransientFailure
	KindDependencyGone
)

// Sentinel errors for the common cases where no detail is needed.
var (
	ErrNotFound       = &Error{kind: KindNotFound, msg: "not found"}
	ErrOptimisticLock = &Error{kind: KindConstraintViolation, msg: "concurrent modification detected"}
)

// Error is a domain error carrying a kind and a human-readable message.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

// Is matches errors of the same kind, so callers can use
// errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.kind == de.kind
	}
	return false
}

// NewNotFoundError reports that a record does not exist for this principal.
func NewNotFoundError(resource, id string) *Error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf("%s %s not found", resource, id)}
}

// NewInvalidRequestError reports input that failed validation.
func NewInvalidRequestError(msg string) *Error {
	return &Error{kind: KindInvalidRequest, msg: msg}
}

// NewInvalidStateError reports a lifecycle transition violation.
func NewInvalidStateError(current, attempted string) *Error {
	return &Error{
		kind: KindInvalidState,
		msg:  fmt.Sprintf("invalid state transition from %s to %s", current, attempted),
	}
}

// NewPermissionDeniedError reports a failed authorization or ownership check.
func NewPermissionDeniedError(msg string) *Error {
	return &Error{kind: KindPermissionDenied, msg: msg}
}

// NewConstraintViolationError reports a broken cross-entity constraint.
func NewConstraintViolationError(msg string) *Error {
	return &Error{kind: KindConstraintViolation, msg: msg}
}

// NewTransientFailureError wraps a temporarily unavailable outbound dependency.
func NewTransientFailureError(msg string, err error) *Error {
	return &Error{kind: KindTransientFailure, msg: msg, err: err}
}

// NewDependencyGoneError reports a permanently invalidated outbound resource,
// e.g. a push subscription the provider no longer recognizes.
func NewDependencyGoneError(msg string) *Error {
	return &Error{kind: KindDependencyGone, msg: msg}
}

// KindOf extracts the kind from any error, returning KindUnknown for
// non-domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	return KindUnknown
}
