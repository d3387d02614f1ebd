/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Business-rule failures (quota, duration cap, schedule clash) are NOT
  errors: they are reported as conflict results by package leave. The
  errors below cover lookups, malformed input and store failures.

ERROR CATEGORIES:
  1. Lookup errors - Employee or request does not exist
  2. Input errors - Unknown enum values, bad dates, duplicate usernames
  3. Store errors - Database-level failures (wrapped, never sentinel)

USAGE:
  The HTTP layer maps errors to status codes:

    if generic.IsNotFound(err) {
        writeError(w, http.StatusNotFound, ...)
    }

SEE ALSO:
  - leave/engine.go: Returns these errors
  - api/handlers.go: Maps them to HTTP status codes
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
	// ErrEmployeeNotFound is returned by lookups on an unknown employee ID.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRequestNotFound is returned by lookups on an unknown leave request ID.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrDuplicateUsername is returned when a login name is already taken.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrInvalidRole is returned for a role outside the closed set.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidLeaveType is returned for a leave type outside the closed set.
	ErrInvalidLeaveType = errors.New("invalid leave type")

	// ErrInvalidStatus is returned for a status outside the closed set.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidDate is returned when a date is not "YYYY-MM-DD".
	ErrInvalidDate = errors.New("invalid date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError points at the input field that failed.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidLeaveType) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidDate)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateUsername)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
