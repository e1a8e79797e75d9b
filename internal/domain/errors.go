package domain

import (
	"errors"
)

// Common domain errors
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrMissingToken  = errors.New("response has no token")
	ErrNoLocation    = errors.New("response has no media location")
	ErrEmptyManifest = errors.New("manifest lists no segments")
	ErrUnexpected    = errors.New("unexpected status")
)

// ErrorKind names the pipeline stage an error came from
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindResolution ErrorKind = "resolution"
	KindTransient  ErrorKind = "transient"
	KindAssembly   ErrorKind = "assembly"
	KindExhausted  ErrorKind = "exhausted"
	KindUnknown    ErrorKind = "unknown"
)

// AuthError is returned when the authorization exchange fails or returns
// malformed data.
type AuthError struct {
	Key string
	Err error
}

// Error returns the error message
func (e *AuthError) Error() string {
	return "authorization failed for " + e.Key + ": " + errString(e.Err)
}

// Unwrap returns the underlying error
func (e *AuthError) Unwrap() error {
	return e.Err
}

// ResolutionError is returned when the location service fails or returns no
// usable location.
type ResolutionError struct {
	ID  string
	Err error
}

// Error returns the error message
func (e *ResolutionError) Error() string {
	return "resolving " + e.ID + ": " + errString(e.Err)
}

// Unwrap returns the underlying error
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// TransientError wraps a network failure during manifest or segment retrieval
type TransientError struct {
	URL string
	Err error
}

// Error returns the error message
func (e *TransientError) Error() string {
	if e.URL == "" {
		return "transfer failed: " + errString(e.Err)
	}
	return "transfer of " + e.URL + " failed: " + errString(e.Err)
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// AssemblyError is returned when the remux step fails. It is never retried
// within an attempt.
type AssemblyError struct {
	Output string
	Stderr string
	Err    error
}

// Error returns the error message
func (e *AssemblyError) Error() string {
	msg := "assembling " + e.Output + ": " + errString(e.Err)
	if e.Stderr != "" {
		msg += " (" + e.Stderr + ")"
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// ExhaustedError describes a task still pending after the last round. It is
// reported, not returned.
type ExhaustedError struct {
	Name   string
	Rounds int
	Last   error
}

// Error returns the error message
func (e *ExhaustedError) Error() string {
	return e.Name + " still failing after rounds: " + errString(e.Last)
}

// Unwrap returns the last error seen for the task
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsRetryable returns true if another in-round attempt may succeed.
// Assembly failures and unclassified errors end the task's round.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindResolution, KindTransient:
		return true
	}
	return false
}

// KindOf classifies err by the stage that produced it
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var (
		authErr      *AuthError
		resolveErr   *ResolutionError
		transientErr *TransientError
		assemblyErr  *AssemblyError
		exhausted    *ExhaustedError
	)
	switch {
	case errors.As(err, &assemblyErr):
		return KindAssembly
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &resolveErr):
		return KindResolution
	case errors.As(err, &transientErr):
		return KindTransient
	case errors.As(err, &exhausted):
		return KindExhausted
	}
	return KindUnknown
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
