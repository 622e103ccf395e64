/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All engine error types in one place. Callers distinguish failure modes
  with errors.Is/errors.As; the HTTP layer maps them to status codes.

ERROR CATEGORIES:
  1. Validation errors - malformed period labels, bad inputs
  2. Conflict errors   - re-distributing an already-paid period
  3. Fatal errors      - missing settings, partial distribution failure

USAGE:
  if errors.Is(err, payroll.ErrPeriodPaid) {
      // 409, not 500: the period was already distributed
  }

SEE ALSO:
  - distribute.go: produces the conflict and fatal cases
  - api/handlers.go: maps these to HTTP statuses
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
	// ErrInvalidPeriod is returned for period labels that are not "YYYY-MM".
	// It is raised before any computation or store access.
	ErrInvalidPeriod = errors.New("invalid period: expected YYYY-MM")

	// ErrPeriodPaid is returned when any row for a period is already paid.
	// A period is paid atomically, never partially re-attempted.
	ErrPeriodPaid = errors.New("period already paid")

	// ErrSettingsMissing is returned when no settings row exists. The engine
	// never default-fills calculation-affecting values.
	ErrSettingsMissing = errors.New("settings row missing")

	// ErrDistributionFailed is returned when a bulk paid transition could not
	// complete and was rolled back. Distinct from the conflict case.
	ErrDistributionFailed = errors.New("distribution failed")

	// ErrCoachNotFound is returned when a referenced coach doesn't exist.
	ErrCoachNotFound = errors.New("coach not found")

	// ErrStudentNotFound is returned when a referenced student doesn't exist.
	ErrStudentNotFound = errors.New("student not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PeriodPaidError identifies which (coach, period) row tripped the latch.
type PeriodPaidError struct {
	PeriodMonth string
	CoachID     CoachID
}

func (e *PeriodPaidError) Error() string {
	return fmt.Sprintf("payroll for %s already paid (coach %s)", e.PeriodMonth, e.CoachID)
}

func (e *PeriodPaidError) Unwrap() error { return ErrPeriodPaid }

// PeriodFormatError carries the rejected label.
type PeriodFormatError struct {
	Input string
}

func (e *PeriodFormatError) Error() string {
	return fmt.Sprintf("invalid period %q: expected YYYY-MM", e.Input)
}

func (e *PeriodFormatError) Unwrap() error { return ErrInvalidPeriod }

// DistributionError reports a partial-failure rollback with the row that
// failed to transition.
type DistributionError struct {
	PeriodMonth string
	CoachID     CoachID
	Cause       error
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("distribution for %s rolled back: row for coach %s: %v",
		e.PeriodMonth, e.CoachID, e.Cause)
}

func (e *DistributionError) Unwrap() error { return ErrDistributionFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the error is the already-paid conflict, which
// must not be reported as a generic failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPeriodPaid)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCoachNotFound) ||
		errors.Is(err, ErrStudentNotFound)
}
