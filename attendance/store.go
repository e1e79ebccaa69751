/*
store.go - Persistence boundary of the attendance engine

PURPOSE:
  The engine never reads the wall clock and never locks. Every precondition is
  evaluated against a record read from the store, and every effect is committed
  through a conditional write so concurrent callers cannot both win.

WRITE PRIMITIVES:
  InsertIfAbsent:  creates the staff-day record; ErrDuplicateWrite if one exists
  SwapRecord:      replaces prev with next if prev.Version is still current;
                   ErrDuplicateWrite otherwise
  UpsertRecord:    admin path, last-write-wins keyed on staff+date

IMPLEMENTATIONS:
  - attendance/store/memory.go: in-memory (tests, dev)
  - store/sqlite/sqlite.go: SQLite with UNIQUE(staff_email, date)
*/
package attendance

import "context"

// RecordStore persists attendance records. Lookups return (nil, nil) when no
// record exists.
type RecordStore interface {
	GetRecord(ctx context.Context, staff string, date Date) (*Record, error)
	GetRecordByID(ctx context.Context, id string) (*Record, error)

	InsertIfAbsent(ctx context.Context, rec Record) error
	SwapRecord(ctx context.Context, prev, next Record) error
	UpsertRecord(ctx context.Context, rec Record) (Record, error)
	DeleteRecord(ctx context.Context, id string) error

	// ListRecordsInRange returns records with from <= date <= to ordered by
	// date then check-in.
	ListRecordsInRange(ctx context.Context, from, to Date) ([]Record, error)
}

// HolidayStore is the holiday table.
type HolidayStore interface {
	ListHolidaysInRange(ctx context.Context, from, to Date) ([]Holiday, error)
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
}

// Roster is the staff directory.
type Roster interface {
	ListRoster(ctx context.Context) ([]StaffMember, error)
	GetStaff(ctx context.Context, email string) (*StaffMember, error)
}

// StaffDirectory adds maintenance of the roster. SaveStaff inserts or updates
// by previous email so an email change keeps the row.
type StaffDirectory interface {
	Roster
	SaveStaff(ctx context.Context, previousEmail string, s StaffMember) error
	DeleteStaff(ctx context.Context, email string) error
}

// Store is everything the engine and its HTTP surface need.
type Store interface {
	RecordStore
	HolidayStore
	StaffDirectory
}
