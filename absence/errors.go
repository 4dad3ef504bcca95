/*
errors.go - Centralized error types for the absence engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (HTTP handlers) map these to status codes with
  errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation errors - malformed input, rejected before any write
  2. Conflict errors   - overlapping date ranges
  3. Lookup errors     - unknown request / record ids
  4. Authorization     - mutations the caller may not perform
  5. Dispatch errors   - notification failures (logged, non-fatal)

SEE ALSO:
  - service.go: produces these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package absence

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for missing or malformed input.
	// Nothing is written when this is returned.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a new request's date range overlaps
	// an existing request of the same kind for the same student.
	ErrConflict = errors.New("overlapping request exists")

	// ErrNotFound is returned when a request or record id is unknown.
	ErrNotFound = errors.New("request not found")

	// ErrInvalidStage is returned when a decision names a stage that
	// is not active on the request (e.g. HOD on a two-stage request).
	ErrInvalidStage = errors.New("stage not applicable to request")

	// ErrForbidden is returned for unauthorized mutations, such as
	// deleting a request that is no longer pending or not owned by
	// the caller.
	ErrForbidden = errors.New("operation not permitted")

	// ErrStaleUpdate is returned by Update when the stored request
	// changed since the caller read it. The service re-reads and
	// retries; it never reaches clients.
	ErrStaleUpdate = errors.New("request modified concurrently")

	// ErrDispatchFailed marks a notification delivery failure. It is
	// logged and tallied, never surfaced to the actor whose operation
	// already succeeded.
	ErrDispatchFailed = errors.New("notification dispatch failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError names the conflicting range so the caller can tell the
// student exactly which existing request is in the way.
type ConflictError struct {
	StudentID    StudentID
	Kind         RequestKind
	ExistingID   RequestID
	ExistingFrom Date
	ExistingTo   Date
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s request overlaps existing request %s (%s to %s)",
		e.Kind, e.ExistingID, e.ExistingFrom, e.ExistingTo)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidStageError names the valid stages for the request so the
// caller can correct the decision.
type InvalidStageError struct {
	RequestID   RequestID
	Stage       Stage
	ValidStages []Stage
}

func (e *InvalidStageError) Error() string {
	names := make([]string, len(e.ValidStages))
	for i, s := range e.ValidStages {
		names[i] = string(s)
	}
	return fmt.Sprintf("stage %q not active on request %s (valid: %s)",
		e.Stage, e.RequestID, strings.Join(names, ", "))
}

func (e *InvalidStageError) Unwrap() error { return ErrInvalidStage }

// ForbiddenError explains which rule blocked the mutation.
type ForbiddenError struct {
	RequestID RequestID
	Reason    string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("request %s: %s", e.RequestID, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// ValidationError reports the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client
// input rather than an engine failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidStage) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
