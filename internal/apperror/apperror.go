// Package apperror defines the domain errors returned by the service layer.
//
// Each constructor wraps one sentinel. Handlers translate the sentinel to an
// HTTP status with errors.Is, and send Message to the client as-is, so the
// messages here are part of the API.
package apperror

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrDuplicate          = errors.New("duplicate")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AppError struct {
	Err      error  // sentinel
	Message  string // Human-readable error message
	Field    string // Optional: field causing the error
	Resource string // Optional: resource kind for NotFound, e.g. "post"
	ID       string // Optional: id that was looked up
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing record. The message is always "not found";
// resource and id are kept on the error for logging.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:      ErrNotFound,
		Message:  "not found",
		Resource: resource,
		ID:       id,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Duplicate reports a uniqueness violation, e.g. a taken username.
func Duplicate(field, message string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: message,
		Field:   field,
	}
}

// Unauthenticated reports a missing or unknown bearer token.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// InvalidCredentials reports a failed username/password match.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "invalid credentials",
	}
}
