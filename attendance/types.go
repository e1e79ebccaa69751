/*
Package attendance implements the attendance policy and wage engine.

PURPOSE:
  Decides whether a clock event is legal for a staff-day and turns a completed
  check-in/check-out pair into payable hours and a wage. Everything that is not
  policy (identity, QR verification, GPS sampling, rendering) is a collaborator
  that calls into this package.

KEY CONCEPTS:
  - Staff-day: (staff email, calendar date), the key of every Record
  - Record: the single mutable attendance row for a staff-day
  - PolicyConfig: immutable thresholds loaded once at startup
  - Calendar: WORKDAY / WEEKEND / HOLIDAY classification of a date
  - Engine: the clock-in/clock-out state machine plus the admin override path
  - WageCalculator: pure (check-in, check-out) -> hours and wage
  - Report: per-staff-per-day status rows for a date or a range

STATE MACHINE (per staff-day):
  NONE --clockIn--> CHECKED_IN --clockOut--> CHECKED_OUT (terminal)
  LEAVE / SICK are terminal and only reachable through AdminUpsert.

CONCURRENCY:
  The engine holds no locks. Uniqueness of the staff-day is enforced at the
  storage boundary through RecordStore.InsertIfAbsent and RecordStore.SwapRecord.

SEE ALSO:
  - engine.go: ClockIn, ClockOut, AdminUpsert
  - wage.go: ComputeWage
  - report.go: BuildReport, BuildRangeReport
  - errors.go: rejection taxonomy
  - store.go: persistence interfaces
*/
package attendance

import (
	"time"
)

// =============================================================================
// STAFF
// =============================================================================

// StaffMember is read-only to the engine; the staff directory owns it.
type StaffMember struct {
	Email string // identity key
	Name  string
	Role  string
}

// =============================================================================
// RECORD CATEGORY
// =============================================================================

type Category string

const (
	CategoryNormal          Category = "NORMAL"
	CategoryLeave           Category = "LEAVE"
	CategorySick            Category = "SICK"
	CategoryAdminCorrection Category = "ADMIN_CORRECTION"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNormal, CategoryLeave, CategorySick, CategoryAdminCorrection:
		return true
	}
	return false
}

// IsAbsence reports whether the category carries no real clock events.
func (c Category) IsAbsence() bool { return c == CategoryLeave || c == CategorySick }

// =============================================================================
// RECORD - One per staff-day
// =============================================================================

type Record struct {
	ID         string
	StaffEmail string
	StaffName  string
	Date       Date

	CheckIn  *time.Time
	CheckOut *time.Time

	Category Category
	Note     string

	// TaskList is the operator's free-text list of work done, recorded with
	// administrative corrections.
	TaskList string

	// NonWorkdayReason is the declared justification for working on a
	// weekend or declared holiday. Empty when none was given.
	NonWorkdayReason string

	Overtime bool

	// Wage is derived from CheckIn/CheckOut and recomputed on every write.
	Wage WageResult

	// Version increments on every write and guards SwapRecord.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the staff-day key of the record.
func (r Record) Key() StaffDay { return StaffDay{Staff: r.StaffEmail, Date: r.Date} }

// State derives the state-machine position of the record.
func (r *Record) State() State {
	if r == nil {
		return StateNone
	}
	switch {
	case r.Category == CategoryLeave:
		return StateLeave
	case r.Category == CategorySick:
		return StateSick
	case r.CheckIn != nil && r.CheckOut != nil:
		return StateCheckedOut
	case r.CheckIn != nil:
		return StateCheckedIn
	}
	return StateNone
}

// StaffDay is the uniqueness key of a Record.
type StaffDay struct {
	Staff string
	Date  Date
}

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateNone       State = "NONE"
	StateCheckedIn  State = "CHECKED_IN"
	StateCheckedOut State = "CHECKED_OUT"
	StateLeave      State = "LEAVE"
	StateSick       State = "SICK"
)

// Terminal reports whether no further clock event is accepted today.
func (s State) Terminal() bool {
	return s == StateCheckedOut || s == StateLeave || s == StateSick
}

// =============================================================================
// HOLIDAY
// =============================================================================

// Holiday is a declared non-working date.
type Holiday struct {
	ID    string
	Date  Date
	Label string
}

// =============================================================================
// GEOFENCE
// =============================================================================

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}
