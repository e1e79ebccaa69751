/*
Package sqlite provides a SQLite-backed implementation of attendance.Store.

KEY TABLES:
  attendance_records: one row per staff-day, UNIQUE(staff_email, date)
  holidays:           declared non-working dates, UNIQUE(date)
  staff:              roster, email primary key

CONDITIONAL WRITES:
  InsertIfAbsent uses INSERT ... ON CONFLICT DO NOTHING and reports a zero
  row count as attendance.ErrDuplicateWrite. SwapRecord updates
  WHERE id = ? AND version = ? and reports a zero row count the same way.
  Neither inspects driver error strings.

CONNECTIONS:
  The pool is capped at one connection. SQLite allows a single writer, and
  ":memory:" databases are per-connection.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := attendance.NewEngine(policy, store, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/presence-engine/attendance"
)

// Store implements attendance.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ attendance.Store = (*Store)(nil)

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS staff (
		email TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_staff_name ON staff(name);

	-- One mutable row per staff-day
	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		staff_email TEXT NOT NULL,
		staff_name TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		check_in TEXT,
		check_out TEXT,
		category TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		task_list TEXT NOT NULL DEFAULT '',
		nonworkday_reason TEXT,
		overtime BOOLEAN NOT NULL DEFAULT FALSE,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		raw_hours TEXT NOT NULL DEFAULT '0',
		payable_hours TEXT NOT NULL DEFAULT '0',
		wage TEXT NOT NULL DEFAULT '0',
		below_minimum BOOLEAN NOT NULL DEFAULT FALSE,
		invalid_interval BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(staff_email, date)
	);

	CREATE INDEX IF NOT EXISTS idx_records_date
		ON attendance_records(date, check_in);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.addColumn("attendance_records", "task_list", "TEXT NOT NULL DEFAULT ''")
}

// addColumn brings files created before a column existed up to date.
func (s *Store) addColumn(table, column, decl string) error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + decl); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// Reset deletes all data. Used by tests and demo tooling.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM attendance_records;
		DELETE FROM holidays;
		DELETE FROM staff;
	`)
	return err
}

// =============================================================================
// ATTENDANCE RECORDS (attendance.RecordStore)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const recordColumns = `id, staff_email, staff_name, date, check_in, check_out, category, note,
	nonworkday_reason, overtime, duration_seconds, raw_hours, payable_hours, wage,
	below_minimum, invalid_interval, version, created_at, updated_at, task_list`

func recordArgs(r attendance.Record) []any {
	return []any{
		r.ID,
		r.StaffEmail,
		r.StaffName,
		r.Date.String(),
		nullTime(r.CheckIn),
		nullTime(r.CheckOut),
		string(r.Category),
		r.Note,
		nullString(r.NonWorkdayReason),
		r.Overtime,
		int64(r.Wage.Duration / time.Second),
		r.Wage.RawHours.String(),
		r.Wage.PayableHours.String(),
		r.Wage.Wage.String(),
		r.Wage.BelowMinimum,
		r.Wage.Invalid,
		r.Version,
		r.CreatedAt.UTC().Format(timestampLayout),
		r.UpdatedAt.UTC().Format(timestampLayout),
		r.TaskList,
	}
}

// GetRecord returns the staff-day record, or nil when none exists.
func (s *Store) GetRecord(ctx context.Context, staff string, date attendance.Date) (*attendance.Record, error) {
	return getRecord(ctx, s.db, "staff_email = ? AND date = ?", staff, date.String())
}

// GetRecordByID returns a record by id, or nil when none exists.
func (s *Store) GetRecordByID(ctx context.Context, id string) (*attendance.Record, error) {
	return getRecord(ctx, s.db, "id = ?", id)
}

func getRecord(ctx context.Context, q execer, where string, args ...any) (*attendance.Record, error) {
	row := q.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM attendance_records WHERE "+where, args...)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertIfAbsent creates the staff-day record or reports
// attendance.ErrDuplicateWrite.
func (s *Store) InsertIfAbsent(ctx context.Context, rec attendance.Record) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO attendance_records ("+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_email, date) DO NOTHING`,
		recordArgs(rec)...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return requireOneRow(res)
}

// SwapRecord replaces prev with next when prev.Version is still current.
func (s *Store) SwapRecord(ctx context.Context, prev, next attendance.Record) error {
	args := recordArgs(next)
	// id is the first column; the update targets prev's identity and version.
	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records SET
			staff_email = ?, staff_name = ?, date = ?, check_in = ?, check_out = ?,
			category = ?, note = ?, nonworkday_reason = ?, overtime = ?,
			duration_seconds = ?, raw_hours = ?, payable_hours = ?, wage = ?,
			below_minimum = ?, invalid_interval = ?, version = ?, created_at = ?, updated_at = ?,
			task_list = ?
		WHERE id = ? AND version = ?`,
		append(args[1:], prev.ID, prev.Version)...,
	)
	if err != nil {
		return fmt.Errorf("failed to swap record: %w", err)
	}
	return requireOneRow(res)
}

// UpsertRecord writes rec as the staff-day record, keeping the id and
// creation time of an existing row. Last write wins.
func (s *Store) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO attendance_records ("+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(staff_email, date) DO UPDATE SET
			staff_name = excluded.staff_name,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			category = excluded.category,
			note = excluded.note,
			task_list = excluded.task_list,
			nonworkday_reason = excluded.nonworkday_reason,
			overtime = excluded.overtime,
			duration_seconds = excluded.duration_seconds,
			raw_hours = excluded.raw_hours,
			payable_hours = excluded.payable_hours,
			wage = excluded.wage,
			below_minimum = excluded.below_minimum,
			invalid_interval = excluded.invalid_interval,
			version = attendance_records.version + 1,
			updated_at = excluded.updated_at`,
		recordArgs(rec)...,
	)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to upsert record: %w", err)
	}

	stored, err := getRecord(ctx, tx, "staff_email = ? AND date = ?", rec.StaffEmail, rec.Date.String())
	if err != nil {
		return attendance.Record{}, err
	}
	if stored == nil {
		return attendance.Record{}, fmt.Errorf("upserted record %s/%s not found", rec.StaffEmail, rec.Date)
	}
	if err := tx.Commit(); err != nil {
		return attendance.Record{}, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return *stored, nil
}

// DeleteRecord hard-deletes a record by id.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM attendance_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// ListRecordsInRange returns records in [from, to] ordered by date then check-in.
func (s *Store) ListRecordsInRange(ctx context.Context, from, to attendance.Date) ([]attendance.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+` FROM attendance_records
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, check_in ASC`,
		from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (attendance.Record, error) {
	var (
		rec              attendance.Record
		date             string
		checkIn          sql.NullString
		checkOut         sql.NullString
		category         string
		nonworkdayReason sql.NullString
		durationSeconds  int64
		rawHours         string
		payableHours     string
		wage             string
		createdAt        string
		updatedAt        string
	)

	err := row.Scan(
		&rec.ID, &rec.StaffEmail, &rec.StaffName, &date, &checkIn, &checkOut, &category, &rec.Note,
		&nonworkdayReason, &rec.Overtime, &durationSeconds, &rawHours, &payableHours, &wage,
		&rec.Wage.BelowMinimum, &rec.Wage.Invalid, &rec.Version, &createdAt, &updatedAt,
		&rec.TaskList,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	if rec.Date, err = attendance.ParseDate(date); err != nil {
		return rec, fmt.Errorf("failed to scan record %s: date: %w", rec.ID, err)
	}
	if rec.CheckIn, err = parseNullTime(checkIn); err != nil {
		return rec, fmt.Errorf("failed to scan record %s: check_in: %w", rec.ID, err)
	}
	if rec.CheckOut, err = parseNullTime(checkOut); err != nil {
		return rec, fmt.Errorf("failed to scan record %s: check_out: %w", rec.ID, err)
	}
	rec.Category = attendance.Category(category)
	rec.NonWorkdayReason = nonworkdayReason.String
	rec.Wage.Duration = time.Duration(durationSeconds) * time.Second
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"raw_hours", rawHours, &rec.Wage.RawHours},
		{"payable_hours", payableHours, &rec.Wage.PayableHours},
		{"wage", wage, &rec.Wage.Wage},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return rec, fmt.Errorf("failed to scan record %s: %s: %w", rec.ID, f.name, err)
		}
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return rec, fmt.Errorf("failed to scan record %s: created_at: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return rec, fmt.Errorf("failed to scan record %s: updated_at: %w", rec.ID, err)
	}
	return rec, nil
}

// =============================================================================
// HOLIDAYS (attendance.HolidayStore)
// =============================================================================

// SaveHoliday stores h. A holiday already declared on the same date keeps its
// id and takes the new label.
func (s *Store) SaveHoliday(ctx context.Context, h attendance.Holiday) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, label, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET label = excluded.label`,
		h.ID, h.Date.String(), h.Label, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	return nil
}

// ListHolidaysInRange returns holidays in [from, to] ordered by date.
func (s *Store) ListHolidaysInRange(ctx context.Context, from, to attendance.Date) ([]attendance.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, label FROM holidays
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`,
		from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []attendance.Holiday
	for rows.Next() {
		var (
			h    attendance.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Label); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		if h.Date, err = attendance.ParseDate(date); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// STAFF (attendance.StaffDirectory)
// =============================================================================

func (s *Store) ListRoster(ctx context.Context) ([]attendance.StaffMember, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT email, name, role FROM staff ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var roster []attendance.StaffMember
	for rows.Next() {
		var m attendance.StaffMember
		if err := rows.Scan(&m.Email, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		roster = append(roster, m)
	}
	return roster, rows.Err()
}

func (s *Store) GetStaff(ctx context.Context, email string) (*attendance.StaffMember, error) {
	var m attendance.StaffMember
	err := s.db.QueryRowContext(ctx, "SELECT email, name, role FROM staff WHERE email = ?", email).
		Scan(&m.Email, &m.Name, &m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	return &m, nil
}

// SaveStaff inserts or updates a staff member. With a previousEmail that
// differs from m.Email the row is renamed in place.
func (s *Store) SaveStaff(ctx context.Context, previousEmail string, m attendance.StaffMember) error {
	var err error
	if previousEmail != "" && previousEmail != m.Email {
		_, err = s.db.ExecContext(ctx,
			"UPDATE staff SET email = ?, name = ?, role = ? WHERE email = ?",
			m.Email, m.Name, m.Role, previousEmail,
		)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO staff (email, name, role, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(email) DO UPDATE SET name = excluded.name, role = excluded.role`,
			m.Email, m.Name, m.Role, time.Now().UTC().Format(time.RFC3339),
		)
	}
	if isUniqueConstraintError(err) {
		return attendance.ErrStaffExists
	}
	if err != nil {
		return fmt.Errorf("failed to save staff: %w", err)
	}
	return nil
}

func (s *Store) DeleteStaff(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM staff WHERE email = ?", email)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return attendance.ErrDuplicateWrite
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timestampLayout is fixed-width UTC so stored instants sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timestampLayout), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}
