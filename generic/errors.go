/*
errors.go - Centralized error types for the generic layer

PURPOSE:
  Sentinel errors shared by every package. Domain packages wrap these with
  their own structured errors so callers can branch with errors.Is().

ERROR CATEGORIES:
  1. Validation errors - Bad dates, malformed payloads, rule violations
  2. Lookup errors - Missing profiles, blocks, holidays
  3. Store errors - Persistence failures

USAGE:
  if errors.Is(err, generic.ErrInvalidPeriod) {
      // user picked an end date before the block start
  }

SEE ALSO:
  - rotation/errors.go: InvalidEndDateError wraps ErrInvalidPeriod
  - planner/errors.go: not-found and policy errors
  - api/handlers.go: maps these to HTTP statuses
*/
package generic

import (
	"errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned for request data that fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when an operation would break a collection invariant.
	ErrConflict = errors.New("operation conflicts with current state")

	// ErrStoreFailed is returned when a store cannot persist or read data.
	ErrStoreFailed = errors.New("store operation failed")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// IsConflict returns true if the request was valid but refused by a policy.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
