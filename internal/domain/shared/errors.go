// Package shared contains the error taxonomy used across the leaderboard
// engine. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be checked with errors.Is().
var (
	// ErrFetchFailed indicates a backend read failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrWriteFailed indicates a backend write failed.
	ErrWriteFailed = errors.New("write failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidationFailed indicates a malformed leaderboard or entry.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDependencyUnavailable indicates the rating engine or social graph
	// timed out or errored.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrCacheCorruption indicates an inconsistency inside the cache.
	// It never surfaces to callers; the cache treats it as a miss.
	ErrCacheCorruption = errors.New("cache corruption")
)

// EngineError carries component and operation context around a base kind.
type EngineError struct {
	Component string // e.g. "cache", "engine", "store"
	Op        string // operation that failed, e.g. "SubmitEntry"
	Kind      error  // base kind for errors.Is() checking
	Message   string // human-readable message
	Err       error  // underlying error (optional)
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *EngineError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *EngineError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewError creates a new EngineError without an underlying cause.
func NewError(component, op string, kind error, message string) *EngineError {
	return &EngineError{Component: component, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an underlying error with engine context.
func WrapError(component, op string, kind error, message string, err error) *EngineError {
	return &EngineError{Component: component, Op: op, Kind: kind, Message: message, Err: err}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsFetchFailed checks if the error is a backend read failure.
func IsFetchFailed(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}

// IsWriteFailed checks if the error is a backend write failure.
func IsWriteFailed(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}

// IsDependencyUnavailable checks if the error came from an external
// collaborator (rating engine, social graph).
func IsDependencyUnavailable(err error) bool {
	return errors.Is(err, ErrDependencyUnavailable)
}

// IsRetryable reports whether the operation that produced the error can be
// safely retried. Only reads qualify; writes are never retried automatically
// to avoid duplicate entries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFetchFailed) || errors.Is(err, ErrDependencyUnavailable)
}
