package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates no authenticated actor, or an actor
	// lacking the role required for the requested operation.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeInvalidTransition indicates a domain precondition violation,
	// e.g. reserving a table that is already occupied.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeNotFound indicates the referenced entity is absent from the
	// entity cache at call time.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeRemoteUnavailable indicates a network or remote-store failure.
	// This is the only retryable code: the synchronizer stalls the affected
	// entity group and retries on the next drain trigger.
	ErrCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"

	// ErrCodeStorageUnavailable indicates the local durable log rejected an
	// append. The optimistic cache patch still applies for the session, but
	// the action is not durably queued.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeConflictingRemap indicates a temp-ID remap target collided
	// with an already-committed real ID. Treated as a fatal integrity
	// error: the stalled action is discarded with an audit record.
	ErrCodeConflictingRemap ErrorCode = "CONFLICTING_REMAP"
)

// Error is the structured error type used across the engine.
//
// Code drives retry policy; the remaining fields carry diagnostics.
// Domain and authorization errors are rejected synchronously at the
// dispatcher boundary and never enter the action log.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Collection names the affected entity collection, if any.
	Collection string

	// EntityID identifies the affected entity, if any.
	EntityID string

	// ActionID identifies the pending action involved, if any.
	ActionID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.EntityID != "" && e.Collection != "":
		return fmt.Sprintf("%s: %s (collection=%s, entity=%s)", e.Code, e.Message, e.Collection, e.EntityID)
	case e.EntityID != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// codeOf extracts the ErrorCode from err, or "" if err is not a *Error.
func codeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool { return codeOf(err) == ErrCodeUnauthorized }

// IsInvalidTransition reports whether err is a domain precondition failure.
func IsInvalidTransition(err error) bool { return codeOf(err) == ErrCodeInvalidTransition }

// IsNotFound reports whether err is an entity lookup failure.
func IsNotFound(err error) bool { return codeOf(err) == ErrCodeNotFound }

// IsRetryable reports whether err should stall its entity group for a
// later drain instead of being surfaced as fatal. Only remote-store
// failures are retryable.
func IsRetryable(err error) bool { return codeOf(err) == ErrCodeRemoteUnavailable }

// IsStorageUnavailable reports whether err is a local persistence failure.
func IsStorageUnavailable(err error) bool { return codeOf(err) == ErrCodeStorageUnavailable }

// NewUnauthorized creates an authorization error.
func NewUnauthorized(message string) *Error {
	return &Error{Code: ErrCodeUnauthorized, Message: message}
}

// NewInvalidTransition creates a precondition error for an entity.
func NewInvalidTransition(collection, entityID, message string) *Error {
	return &Error{
		Code:       ErrCodeInvalidTransition,
		Message:    message,
		Collection: collection,
		EntityID:   entityID,
	}
}

// NewNotFound creates a lookup error for an entity.
func NewNotFound(collection, entityID string) *Error {
	return &Error{
		Code:       ErrCodeNotFound,
		Message:    "entity not found",
		Collection: collection,
		EntityID:   entityID,
	}
}

// NewRemoteUnavailable wraps a remote-store failure.
func NewRemoteUnavailable(err error) *Error {
	return &Error{
		Code:    ErrCodeRemoteUnavailable,
		Message: "remote store unavailable",
		Err:     err,
	}
}

// NewStorageUnavailable wraps a local log persistence failure.
func NewStorageUnavailable(err error) *Error {
	return &Error{
		Code:    ErrCodeStorageUnavailable,
		Message: "local action log unavailable",
		Err:     err,
	}
}

// NewConflictingRemap creates a remap integrity error.
func NewConflictingRemap(collection, oldID, newID string) *Error {
	return &Error{
		Code:       ErrCodeConflictingRemap,
		Message:    fmt.Sprintf("remap target %q already present", newID),
		Collection: collection,
		EntityID:   oldID,
	}
}
