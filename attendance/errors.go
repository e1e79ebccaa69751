/*
errors.go - Rejection taxonomy of the attendance engine

ERROR CATEGORIES:
  1. Rejections - expected business outcomes, user-facing, never retried:
     OutOfRange, LateCutoff, AlreadyProcessed, NotCheckedIn,
     BelowMinimumHours, ReasonRequired, InvalidInterval, DuplicateWrite,
     ConsistencyViolation
  2. Unavailable - infrastructure failure (storage unreachable), retryable

USAGE:
  rec, err := engine.ClockOut(ctx, req)
  var below *attendance.BelowMinimumHoursError
  if errors.As(err, &below) {
      fmt.Printf("wait %d more minutes", below.RemainingMinutes)
  }
  if attendance.IsRetryable(err) {
      // storage hiccup, the caller may retry
  }
*/
package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrOutOfRange           = errors.New("outside geofence")
	ErrLateCutoff           = errors.New("past late clock-in cutoff")
	ErrAlreadyProcessed     = errors.New("already processed for this staff-day")
	ErrNotCheckedIn         = errors.New("not checked in")
	ErrBelowMinimumHours    = errors.New("below minimum work hours")
	ErrReasonRequired       = errors.New("reason required")
	ErrInvalidInterval      = errors.New("check-out before check-in")
	ErrConsistencyViolation = errors.New("category and timestamps disagree")

	// ErrDuplicateWrite is the storage-level conflict outcome of
	// InsertIfAbsent and SwapRecord: another writer got there first.
	ErrDuplicateWrite = errors.New("duplicate write for staff-day")

	// ErrUnavailable marks infrastructure failures.
	ErrUnavailable = errors.New("attendance store unavailable")

	// ErrRecordNotFound is returned by admin operations addressing a record by id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrStaffExists is returned when a staff rename collides with another
	// registered email.
	ErrStaffExists = errors.New("staff email already registered")
)

// =============================================================================
// STRUCTURED ERRORS - Carry rendering context
// =============================================================================

type OutOfRangeError struct {
	Distance float64 // metres
	Radius   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("outside geofence: %.0fm from site, limit %.0fm", e.Distance, e.Radius)
}
func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

type LateCutoffError struct {
	At         time.Time
	CutoffHour int
}

func (e *LateCutoffError) Error() string {
	return fmt.Sprintf("clock-in at %s is past the %02d:00 cutoff", e.At.Format("15:04"), e.CutoffHour)
}
func (e *LateCutoffError) Unwrap() error { return ErrLateCutoff }

// AlreadyProcessedError is returned when the staff-day is past the state the
// operation needs. RaceLost is set when a concurrent writer won the
// storage-level conflict.
type AlreadyProcessedError struct {
	Staff    string
	Date     Date
	State    State
	RaceLost bool
}

func (e *AlreadyProcessedError) Error() string {
	if e.RaceLost {
		return fmt.Sprintf("%s on %s was processed concurrently", e.Staff, e.Date)
	}
	return fmt.Sprintf("%s on %s is already %s", e.Staff, e.Date, e.State)
}

func (e *AlreadyProcessedError) Unwrap() []error {
	if e.RaceLost {
		return []error{ErrAlreadyProcessed, ErrDuplicateWrite}
	}
	return []error{ErrAlreadyProcessed}
}

type NotCheckedInError struct {
	Staff string
	Date  Date
}

func (e *NotCheckedInError) Error() string {
	return fmt.Sprintf("%s has not checked in on %s", e.Staff, e.Date)
}
func (e *NotCheckedInError) Unwrap() error { return ErrNotCheckedIn }

type BelowMinimumHoursError struct {
	Elapsed          time.Duration
	Minimum          time.Duration
	RemainingMinutes int
}

func (e *BelowMinimumHoursError) Error() string {
	return fmt.Sprintf("worked %s of required %s, %d minutes remaining",
		e.Elapsed.Truncate(time.Minute), e.Minimum, e.RemainingMinutes)
}
func (e *BelowMinimumHoursError) Unwrap() error { return ErrBelowMinimumHours }

type ReasonKind string

const (
	ReasonNonWorkday ReasonKind = "non_workday"
	ReasonEarlyLeave ReasonKind = "early_leave"
)

// ReasonRequiredError is returned when a reason is missing or, for
// non-workday reasons, not one of Allowed.
type ReasonRequiredError struct {
	Kind    ReasonKind
	Given   string
	Allowed []string
}

func (e *ReasonRequiredError) Error() string {
	if e.Given != "" {
		return fmt.Sprintf("%s reason %q is not one of: %s", e.Kind, e.Given, strings.Join(e.Allowed, ", "))
	}
	return fmt.Sprintf("%s reason required", e.Kind)
}
func (e *ReasonRequiredError) Unwrap() error { return ErrReasonRequired }

type InvalidIntervalError struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("check-out %s is before check-in %s",
		e.CheckOut.Format(time.RFC3339), e.CheckIn.Format(time.RFC3339))
}
func (e *InvalidIntervalError) Unwrap() error { return ErrInvalidInterval }

type ConsistencyViolationError struct {
	Field   string
	Message string
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("consistency violation on %s: %s", e.Field, e.Message)
}
func (e *ConsistencyViolationError) Unwrap() error { return ErrConsistencyViolation }

// UnavailableError wraps an infrastructure failure with the failing operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsRejection returns true for expected business outcomes.
func IsRejection(err error) bool {
	return Code(err) != "" && !errors.Is(err, ErrUnavailable)
}

// Code returns a stable machine-readable code for err, or "" when err is not
// part of the taxonomy.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrOutOfRange):
		return "OUT_OF_RANGE"
	case errors.Is(err, ErrLateCutoff):
		return "LATE_CUTOFF"
	case errors.Is(err, ErrAlreadyProcessed):
		return "ALREADY_PROCESSED"
	case errors.Is(err, ErrDuplicateWrite):
		return "DUPLICATE_WRITE"
	case errors.Is(err, ErrNotCheckedIn):
		return "NOT_CHECKED_IN"
	case errors.Is(err, ErrBelowMinimumHours):
		return "BELOW_MINIMUM_HOURS"
	case errors.Is(err, ErrReasonRequired):
		return "REASON_REQUIRED"
	case errors.Is(err, ErrInvalidInterval):
		return "INVALID_INTERVAL"
	case errors.Is(err, ErrConsistencyViolation):
		return "CONSISTENCY_VIOLATION"
	case errors.Is(err, ErrRecordNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrStaffExists):
		return "STAFF_EXISTS"
	}
	return ""
}
