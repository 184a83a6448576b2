// Package errors provides custom error types for the rostersync system.
// These errors enable programmatic error checking and preserve enough
// context (record ids, batch tokens, field names) for every skipped or
// failed operation to be reproduced from the logs.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
// It's an alias for the standard library errors.Is.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// It's an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors for the rostersync system
var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates that a record already exists downstream
	ErrDuplicate = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotAuthorized indicates the platform rejected our credentials
	ErrNotAuthorized = errors.New("not authorized")

	// ErrConnection indicates an endpoint could not be reached
	ErrConnection = errors.New("connection failed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrSizeLimit indicates a batch exceeded the platform maximum
	ErrSizeLimit = errors.New("size limit exceeded")

	// ErrIncompleteRecord indicates a source record is missing a required field
	ErrIncompleteRecord = errors.New("incomplete record")
)

// NotFoundError represents an error when a record is not found downstream.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError represents a field the platform rejected.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents an error response from the platform or SIS API.
type APIError struct {
	System     string // "platform" or "sis"
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.System, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.System, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return target == ErrNotAuthorized
	}
	if e.StatusCode == 404 {
		return target == ErrNotFound
	}
	if e.StatusCode == 409 {
		return target == ErrDuplicate
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(system string, statusCode int, message string) *APIError {
	return &APIError{
		System:     system,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConnectionError indicates an endpoint could not be reached at all.
type ConnectionError struct {
	System   string
	Endpoint string
	Err      error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not reach %s endpoint %s: %v", e.System, e.Endpoint, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// NewConnectionError creates a new ConnectionError
func NewConnectionError(system, endpoint string, err error) *ConnectionError {
	return &ConnectionError{System: system, Endpoint: endpoint, Err: err}
}

// MalformedResponseError represents a payload in an unexpected shape.
type MalformedResponseError struct {
	System  string
	Body    string
	Message string
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("malformed response from %s: %s", e.System, e.Message)
	}
	return fmt.Sprintf("malformed response from %s: %s", e.System, e.Body)
}

// Is implements errors.Is support
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewMalformedResponseError creates a new MalformedResponseError
func NewMalformedResponseError(system, body string) *MalformedResponseError {
	return &MalformedResponseError{System: system, Body: body}
}

// IncompleteRecordError represents a source record missing a required field,
// such as a classroom without product codes or a person without an email.
type IncompleteRecordError struct {
	Kind  string
	ID    string
	Field string
}

// Error implements the error interface
func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("%s %s is missing required field %s", e.Kind, e.ID, e.Field)
}

// Is implements errors.Is support
func (e *IncompleteRecordError) Is(target error) bool {
	return target == ErrIncompleteRecord
}

// NewIncompleteRecordError creates a new IncompleteRecordError
func NewIncompleteRecordError(kind, id, field string) *IncompleteRecordError {
	return &IncompleteRecordError{Kind: kind, ID: id, Field: field}
}

// SizeLimitError indicates a batch exceeded the per-entity maximum and was
// rejected before any network call was made.
type SizeLimitError struct {
	Kind    string
	Size    int
	MaxSize int
}

// Error implements the error interface
func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("batch of %d %s records exceeds the maximum of %d", e.Size, e.Kind, e.MaxSize)
}

// Is implements errors.Is support
func (e *SizeLimitError) Is(target error) bool {
	return target == ErrSizeLimit
}

// NewSizeLimitError creates a new SizeLimitError
func NewSizeLimitError(kind string, size, maxSize int) *SizeLimitError {
	return &SizeLimitError{Kind: kind, Size: size, MaxSize: maxSize}
}

// BatchTimeoutError indicates a batch poll deadline elapsed while the remote
// job was still processing. The token is retained so the caller can check the
// batch again later; the remote job is not cancelled.
type BatchTimeoutError struct {
	Token   string
	Kind    string
	Waited  time.Duration
	Message string
}

// Error implements the error interface
func (e *BatchTimeoutError) Error() string {
	return fmt.Sprintf("%s batch %s still processing after %s", e.Kind, e.Token, e.Waited)
}

// Is implements errors.Is support
func (e *BatchTimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// NewBatchTimeoutError creates a new BatchTimeoutError
func NewBatchTimeoutError(kind, token string, waited time.Duration) *BatchTimeoutError {
	return &BatchTimeoutError{Kind: kind, Token: token, Waited: waited}
}

// EmptyQueryError indicates a source-system query returned no records.
type EmptyQueryError struct {
	Query string
}

// Error implements the error interface
func (e *EmptyQueryError) Error() string {
	return fmt.Sprintf("query %s returned no records", e.Query)
}

// Is implements errors.Is support
func (e *EmptyQueryError) Is(target error) bool {
	return target == ErrNotFound
}

// NewEmptyQueryError creates a new EmptyQueryError
func NewEmptyQueryError(query string) *EmptyQueryError {
	return &EmptyQueryError{Query: query}
}

// SyncError represents a failure of one reconciliation routine.
type SyncError struct {
	Routine string
	IDs     []string
	Err     error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("sync error in routine %s (affected records: %v): %v", e.Routine, e.IDs, e.Err)
	}
	return fmt.Sprintf("sync error in routine %s: %v", e.Routine, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(routine string, ids []string, err error) *SyncError {
	return &SyncError{Routine: routine, IDs: ids, Err: err}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if an error is an already exists error
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotAuthorized checks if an error is an authorization rejection
func IsNotAuthorized(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsConnection checks if an error indicates an unreachable endpoint
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsIncompleteRecord checks if an error marks a record missing required fields
func IsIncompleteRecord(err error) bool {
	return errors.Is(err, ErrIncompleteRecord)
}

// Routine aborts: connection and authorization failures abort the current
// routine; everything else is a per-record condition.

// IsRoutineFatal reports whether an error should abort the current routine.
func IsRoutineFatal(err error) bool {
	return IsConnection(err) || IsNotAuthorized(err)
}
