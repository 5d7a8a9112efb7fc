/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error kinds in one place so the HTTP layer can map them to responses
  without inspecting error strings.

ERROR CATEGORIES:
  1. Validation errors  - Bad input, rejected before any store access
  2. Not-found errors   - Operation targets a missing driver/truck/entry
  3. Authorization      - Actor's role lacks the required capability
  4. Storage errors     - Underlying atomic write failed (retryable)

Duplicate submissions are NOT an error: they are a distinguishable result
(OutcomeDuplicate on SubmitResult) carrying the conflicting entry, because
the caller has to make a decision, not fix a mistake.
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is wrapped by NotFoundError. Lifecycle operations on a
	// missing id always surface it; they never silently no-op, so admins
	// can't believe an action succeeded when it touched nothing.
	ErrNotFound = errors.New("not found")

	// ErrValidation is wrapped by ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is wrapped by AuthorizationError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorage is wrapped around infrastructure failures from the store.
	// Retryable from the caller's point of view; the engine itself never
	// retries.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a rejected input field. No store access has
// happened when one of these is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies which kind of record was missing.
type NotFoundError struct {
	Kind string // "driver", "truck", "entry"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AuthorizationError reports a role check failure, naming the role the
// operation needs.
type AuthorizationError struct {
	Op       string
	Required Role
	Actor    Actor
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s requires role %q (actor %q has %q)", e.Op, e.Required, e.Actor.ID, e.Actor.Role)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsAuthorization(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsRetryable reports whether the failure is infrastructure-level and the
// whole operation may be retried by the caller.
func IsRetryable(err error) bool { return errors.Is(err, ErrStorage) }

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
