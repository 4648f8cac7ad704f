package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrQuotaExhausted means the provider call budget for the current
	// window is spent and collection should be deferred.
	ErrQuotaExhausted = errors.New("provider quota exhausted")
)

// ProviderTransientError is a retryable provider failure (timeout, 429, 5xx)
// surfaced after the retry budget is exhausted.
type ProviderTransientError struct {
	Endpoint   string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ProviderTransientError) Error() string {
	return fmt.Sprintf("provider transient failure on %s after %d attempts (status %d): %v", e.Endpoint, e.Attempts, e.StatusCode, e.Err)
}

func (e *ProviderTransientError) Unwrap() error { return e.Err }

func (e *ProviderTransientError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// ProviderFatalError is a non-retryable provider failure (401, 403, 404, ...).
type ProviderFatalError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ProviderFatalError) Error() string {
	return fmt.Sprintf("provider fatal failure on %s (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *ProviderFatalError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// ValidationError marks one malformed record inside an otherwise usable
// payload. The record is skipped; the batch continues.
type ValidationError struct {
	EntityKind string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: field %q %s", e.EntityKind, e.Field, e.Reason)
}

// DanglingReferenceError rejects a child record whose parent row has not
// been persisted yet.
type DanglingReferenceError struct {
	EntityKind string
	ParentKind string
	ParentKey  string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s record references missing %s %q", e.EntityKind, e.ParentKind, e.ParentKey)
}

// PersistenceError wraps store failures. Fatal to the current run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
