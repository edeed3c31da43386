package types

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is implemented by every error that knows its HTTP status
type StatusError interface {
	error
	HTTPStatus() int
	ErrorType() string
}

// AppError is the base application error carrying an HTTP status
type AppError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d: %s [type: %s]: %v", e.Status, e.Message, e.Type, e.Cause)
	}
	return fmt.Sprintf("%d: %s [type: %s]", e.Status, e.Message, e.Type)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code to respond with
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// ErrorType returns the machine readable error type
func (e *AppError) ErrorType() string {
	return e.Type
}

// NewAppError creates an AppError
func NewAppError(status int, message, errorType string) *AppError {
	return &AppError{Status: status, Message: message, Type: errorType}
}

// Wrap creates an AppError around a cause
func Wrap(err error, status int, message, errorType string) *AppError {
	return &AppError{Status: status, Message: message, Type: errorType, Cause: err}
}

// BadRequest creates a 400 AppError
func BadRequest(message, errorType string) *AppError {
	return NewAppError(http.StatusBadRequest, message, errorType)
}

// NotFound creates a 404 AppError
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, message, "not_found")
}

// Conflict creates a 409 AppError
func Conflict(message, errorType string) *AppError {
	return NewAppError(http.StatusConflict, message, errorType)
}

// FileError reports a rejected upload or a storage failure
type FileError struct {
	*AppError
}

// NewFileError creates a 400 FileError
func NewFileError(message string) *FileError {
	return &FileError{AppError: NewAppError(http.StatusBadRequest, message, "file")}
}

// ConfigError reports missing or invalid configuration
type ConfigError struct {
	*AppError
	Key string
}

// NewConfigError creates a 500 ConfigError for the given configuration key
func NewConfigError(key, message string) *ConfigError {
	return &ConfigError{
		AppError: NewAppError(http.StatusInternalServerError, message, "config"),
		Key:      key,
	}
}

// AsStatusError finds the first StatusError in the chain
func AsStatusError(err error) (StatusError, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
