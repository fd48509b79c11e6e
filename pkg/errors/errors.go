// Package errors defines the application error type rendered by the HTTP
// layer and the sentinels repositories and services wrap.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for the outcomes every layer may report.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
)

// AppError carries the HTTP status and machine readable code of a failure
// together with a message safe to show to clients.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError builds an error with a caller-defined code.
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return NewAppError(http.StatusNotFound, "NOT_FOUND",
		fmt.Sprintf("%s %s not found", resource, id), ErrNotFound)
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(resource, field, value string) *AppError {
	return NewAppError(http.StatusConflict, "ALREADY_EXISTS",
		fmt.Sprintf("%s with %s %q already exists", resource, field, value), ErrAlreadyExists)
}

// InvalidInput reports a request the caller has to correct.
func InvalidInput(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "INVALID_INPUT", message, ErrInvalidInput)
}

// Unauthorized reports missing or wrong credentials.
func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", message, ErrUnauthorized)
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", err)
}

// Classify returns the AppError in err's chain. Bare sentinels are mapped to
// their generic form; anything else is internal.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, "NOT_FOUND", "resource not found", err)
	case errors.Is(err, ErrAlreadyExists):
		return NewAppError(http.StatusConflict, "ALREADY_EXISTS", "resource already exists", err)
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(http.StatusBadRequest, "INVALID_INPUT", err.Error(), err)
	case errors.Is(err, ErrUnauthorized):
		return NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", err)
	case errors.Is(err, ErrForbidden):
		return NewAppError(http.StatusForbidden, "FORBIDDEN", "forbidden", err)
	default:
		return Internal(err)
	}
}
