package apperrors

import (
	"errors"
	"fmt"
)

// Store-level sentinels. Repositories return these (optionally wrapped) and
// services translate them into a typed Error.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("metadata repository unavailable")
)

// Kind is the closed error taxonomy exposed to callers.
type Kind string

const (
	// KindInvalidParameter marks malformed, missing or conflicting input. Not retryable.
	KindInvalidParameter Kind = "InvalidParameter"
	// KindUnrecognizedGUID marks a reference to a missing or wrong-type element.
	KindUnrecognizedGUID Kind = "UnrecognizedGUID"
	// KindUserNotAuthorized marks a denied or missing caller identity.
	KindUserNotAuthorized Kind = "UserNotAuthorized"
	// KindPropertyServer marks a repository fault. Callers may retry after backoff.
	KindPropertyServer Kind = "PropertyServerException"
)

// Code returns the snake_case code used in HTTP error envelopes.
func (k Kind) Code() string {
	switch k {
	case KindInvalidParameter:
		return "invalid_parameter"
	case KindUnrecognizedGUID:
		return "unrecognized_guid"
	case KindUserNotAuthorized:
		return "user_not_authorized"
	default:
		return "property_server_error"
	}
}

// Error is the single error type returned by governance services.
type Error struct {
	Kind         Kind
	Message      string
	SystemAction string
	UserAction   string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two Errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is checks, e.g. errors.Is(err, apperrors.UnrecognizedGUIDError).
var (
	InvalidParameterError  = &Error{Kind: KindInvalidParameter}
	UnrecognizedGUIDError  = &Error{Kind: KindUnrecognizedGUID}
	UserNotAuthorizedError = &Error{Kind: KindUserNotAuthorized}
	PropertyServerError    = &Error{Kind: KindPropertyServer}
)

// InvalidParameter builds an InvalidParameter error.
func InvalidParameter(format string, args ...any) *Error {
	return &Error{
		Kind:         KindInvalidParameter,
		Message:      fmt.Sprintf(format, args...),
		SystemAction: "The request was rejected and no metadata was changed.",
		UserAction:   "Correct the request parameters and retry.",
	}
}

// UnrecognizedGUID builds an UnrecognizedGUID error for the named parameter.
func UnrecognizedGUID(paramName, guid, expectedType string) *Error {
	msg := fmt.Sprintf("%s %q does not identify a known element", paramName, guid)
	if expectedType != "" {
		msg = fmt.Sprintf("%s %q does not identify a known %s", paramName, guid, expectedType)
	}
	return &Error{
		Kind:         KindUnrecognizedGUID,
		Message:      msg,
		SystemAction: "The request was rejected and no metadata was changed.",
		UserAction:   "Re-resolve the identifier and retry with a GUID of the expected type.",
	}
}

// UserNotAuthorized builds a UserNotAuthorized error.
func UserNotAuthorized(format string, args ...any) *Error {
	return &Error{
		Kind:         KindUserNotAuthorized,
		Message:      fmt.Sprintf(format, args...),
		SystemAction: "The request was rejected because the caller could not be authorized.",
		UserAction:   "Retry with valid credentials.",
	}
}

// PropertyServer wraps a repository fault.
func PropertyServer(err error, format string, args ...any) *Error {
	return &Error{
		Kind:         KindPropertyServer,
		Message:      fmt.Sprintf(format, args...),
		SystemAction: "The metadata repository reported a fault. The operation was not applied.",
		UserAction:   "Retry after a short backoff; contact the server operator if the fault persists.",
		Err:          err,
	}
}

// KindOf classifies err. Anything that is not an *Error is a PropertyServerException.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPropertyServer
}

// Classify returns err as an *Error, reclassifying unexpected faults as
// PropertyServerException. Returns nil for a nil err.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrUnavailable) {
		return PropertyServer(err, "the metadata repository is not available")
	}
	return PropertyServer(err, "unexpected metadata repository fault")
}
