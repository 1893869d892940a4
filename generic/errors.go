/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with context; the API layer classifies them
  with IsClientError / IsNotFound / IsConflict.

ERROR CATEGORIES:
  1. Validation errors - reject a request or status transition outright,
     before any ledger effect (birthday mismatch, bad half-day, LOP range)
  2. Not-found errors  - a referenced user/application/type does not exist
  3. Conflict errors   - illegal status transition, duplicate journal key
  4. Store errors      - infrastructure failures, passed through wrapped

  Soft anomalies (missing balance row, insufficient comp-off) are NOT errors.
  They are Warnings in the Outcome, see outcome.go.

SEE ALSO:
  - outcome.go: Warning codes for soft anomalies
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a journal entry with the same
	// idempotency key already exists. Expected on scheduler re-runs.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrValidation marks input that can never succeed as submitted.
	ErrValidation = errors.New("validation failed")

	// ErrIllegalTransition is returned when a status change is not in the transition table.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrNoDefaultBucket is returned when the leave type registry has no default bucket.
	ErrNoDefaultBucket = errors.New("no default leave bucket configured")

	// ErrConcurrentModification is returned when a row changed underneath a transaction.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "user", "application", "leave_type", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
