// Package domain defines the business logic of the fittracker backend: the
// workout aggregate, accounts, goals, user exercises and stats.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every *Error unwraps to exactly one of these so callers can
// branch with errors.Is without inspecting message text.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidReference    = errors.New("invalid exercise reference")
	ErrUpstreamUnavailable = errors.New("exercise catalog unavailable")
	ErrConflict            = errors.New("conflict")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// Error carries a client-safe message alongside its kind.
type Error struct {
	Kind    error
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// Validation reports malformed or missing input.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an owned resource that does not exist for the caller.
func NotFound(resource string) error {
	return &Error{Kind: ErrNotFound, Message: resource + " not found"}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func invalidReference(ref string, cause error) error {
	return &Error{Kind: ErrInvalidReference, Message: fmt.Sprintf("exercise %q does not exist in the catalog", ref), cause: cause}
}

func upstreamUnavailable(cause error) error {
	return &Error{Kind: ErrUpstreamUnavailable, Message: "exercise catalog is unavailable", cause: cause}
}

// PublicMessage returns the message safe to show to API clients.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
