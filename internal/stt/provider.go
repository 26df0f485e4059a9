// Package stt holds the speech-to-text backends and the registry that
// constructs them on first use.
package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"scribe/internal/storage"
)

// Capability is the transcription operation every backend exposes.
type Capability interface {
	// Name returns the registered provider name (e.g. "openai").
	Name() string

	// Transcribe transcribes a staged upload. It returns a complete Result
	// or an error, never a partial result.
	Transcribe(ctx context.Context, audio *storage.Staged) (*Result, error)
}

// Result is what a backend produced for one upload.
type Result struct {
	Text     string   // may be empty
	Duration *float64 // seconds, nil when the backend does not report it
	Language string   // detected language, if reported
}

// InvocationError is a failed backend call. StatusHint carries the remote
// HTTP status when there was one.
type InvocationError struct {
	Provider   string
	StatusHint int
	Message    string
	Err        error
}

func (e *InvocationError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s error %d", e.Provider, e.StatusHint)
	}
}

func (e *InvocationError) Unwrap() error { return e.Err }

// StatusCode returns the remote status, or 0 if the call never got one.
func (e *InvocationError) StatusCode() int { return e.StatusHint }

// IsRateLimited reports whether the remote answered 429.
func (e *InvocationError) IsRateLimited() bool { return e.StatusHint == http.StatusTooManyRequests }

// IsRateLimited reports whether err is a rate-limited invocation failure.
func IsRateLimited(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie) && ie.IsRateLimited()
}

// remoteFailure builds an InvocationError for a non-2xx response.
func remoteFailure(provider string, status int, message string) *InvocationError {
	if message == "" {
		message = fmt.Sprintf("%s error %d", provider, status)
	}
	return &InvocationError{Provider: provider, StatusHint: status, Message: message}
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }
