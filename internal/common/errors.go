package common

import (
	"errors"
	"net/http"
)

// AppError carries an error code, a user-facing message and the HTTP status
// the handler layer should render.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFound builds the canonical not-found error.
func NotFound(code, message string) *AppError {
	return NewAppError(code, message, http.StatusNotFound, nil)
}

// ValidationError builds the canonical bad-request error.
func ValidationError(code, message string) *AppError {
	return NewAppError(code, message, http.StatusBadRequest, nil)
}

// Conflict builds the canonical conflict error.
func Conflict(code, message string) *AppError {
	return NewAppError(code, message, http.StatusConflict, nil)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
