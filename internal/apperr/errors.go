// Package apperr defines the fault taxonomy shared by the pipeline and
// the HTTP layer. Every error carries the HTTP status it maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeUnknownProvider Code = "UNKNOWN_PROVIDER"
	CodeProviderLoad    Code = "PROVIDER_LOAD_FAILED"
	CodePersistence     Code = "PERSISTENCE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL"
)

// AppError is the unified application error type.
type AppError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// New creates an AppError.
func New(code Code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Validation reports a malformed, oversized or unsupported upload.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// UnknownProvider reports a provider name nobody registered.
func UnknownProvider(name string) *AppError {
	return New(CodeUnknownProvider, fmt.Sprintf("Unknown provider %q", name), http.StatusBadRequest)
}

// ProviderLoad reports that a known provider could not be initialized.
func ProviderLoad(name string, cause error) *AppError {
	return New(CodeProviderLoad, fmt.Sprintf("Provider %q failed to load: %v", name, cause), http.StatusInternalServerError).
		WithCause(cause)
}

// Persistence reports an unreachable or failing record store.
func Persistence(op string, cause error) *AppError {
	return New(CodePersistence, fmt.Sprintf("Failed to %s transcription", op), http.StatusInternalServerError).
		WithCause(cause)
}

// NotFound reports a missing record.
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError).WithCause(cause)
}

// StatusCoder is implemented by errors that know their HTTP status, such
// as provider invocation failures carrying the remote status code.
type StatusCoder interface {
	StatusCode() int
}

// As converts err to an AppError if possible.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status err maps to. Errors that carry no
// status are server faults.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
