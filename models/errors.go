package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeLaunch        = "LAUNCH_FAILED"
	ErrCodeCapture       = "CAPTURE_FAILED"
	ErrCodePlanning      = "PLANNING_FAILED"
	ErrCodeActorNotFound = "ACTOR_NOT_FOUND"
	ErrCodeActorExists   = "ACTOR_EXISTS"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternal      = "INTERNAL_ERROR"

	// LLM-related error codes surfaced by the planner.
	ErrCodeLLMFailure     = "LLM_FAILURE"
	ErrCodeLLMAuthFailure = "LLM_AUTH_FAILURE"
	ErrCodeLLMRateLimited = "LLM_RATE_LIMITED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type Error struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *Error) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// NewLaunchError reports that the browser process could not be started.
// It is a configuration problem and is never retried.
func NewLaunchError(message string, err error) *Error {
	return NewError(ErrCodeLaunch, message, err)
}

// NewPlanningError reports a malformed or unusable planner answer.
func NewPlanningError(message string, err error) *Error {
	return NewError(ErrCodePlanning, message, err)
}

// NewActorNotFoundError reports that an actor id or namespace did not resolve.
func NewActorNotFoundError(ref string) *Error {
	return NewError(ErrCodeActorNotFound, fmt.Sprintf("actor %q not found", ref), nil)
}

// CaptureError is returned when navigation or interception fails. Partial holds
// every response gathered before the failure so callers can tell "nothing
// matched" apart from "the capture itself failed".
type CaptureError struct {
	Cause   *Error
	Partial []*CapturedResponse
}

// NewCaptureError creates a CaptureError carrying the partial response set.
func NewCaptureError(message string, err error, partial []*CapturedResponse) *CaptureError {
	return &CaptureError{
		Cause:   NewError(ErrCodeCapture, message, err),
		Partial: partial,
	}
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s (%d partial responses)", e.Cause.Error(), len(e.Partial))
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// AsError returns err as an *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrCodeInternal, err.Error(), err)
}

// CodeOf returns the error code carried by err, or "" when err is nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}
