package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// predefined error still match it through errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Workflow and client-side validation errors. These are raised before any
// network call is made.
var (
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "transition not allowed")
	ErrMissingComment    = New("MISSING_COMMENT", http.StatusBadRequest, "a comment is required for this action")
	ErrNotEnoughVersions = New("NOT_ENOUGH_VERSIONS", http.StatusUnprocessableEntity, "at least two versions are required to compare")
	ErrMissingSyllabusID = New("MISSING_SYLLABUS_ID", http.StatusBadRequest, "save the syllabus before adding comments")
	ErrActionInFlight    = New("ACTION_IN_FLIGHT", http.StatusConflict, "another action is already in progress")
	ErrDraftNotFound     = New("DRAFT_NOT_FOUND", http.StatusNotFound, "no local draft stored")
)

// Transport and polling errors.
var (
	ErrUpstreamUnavailable = New("UPSTREAM_UNAVAILABLE", http.StatusBadGateway, "backend service unavailable")
	ErrUpstreamRejected    = New("UPSTREAM_REJECTED", http.StatusBadGateway, "backend rejected the request")
	ErrPollTimeout         = New("POLL_TIMEOUT", http.StatusGatewayTimeout, "not completed within the time budget")
	ErrJobFailed           = New("JOB_FAILED", http.StatusBadGateway, "job failed")
	ErrJobCanceled         = New("JOB_CANCELED", http.StatusConflict, "job was canceled")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// CodeOf returns the application code carried by err, or "" when err is not
// an application error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
