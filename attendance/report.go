package attendance

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// STATUS - Closed set of report row statuses
// =============================================================================

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusPresent    Status = "PRESENT"
	StatusLeave      Status = "LEAVE"
	StatusSick       Status = "SICK"
	StatusHoliday    Status = "HOLIDAY"
	StatusAbsent     Status = "ABSENT"
)

// Rank orders statuses most-actionable first. LEAVE and SICK share a rank.
func (s Status) Rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusPresent:
		return 2
	case StatusLeave, StatusSick:
		return 3
	case StatusHoliday:
		return 4
	case StatusAbsent:
		return 5
	}
	panic("attendance: unknown status " + string(s))
}

// StatusRow is one staff member on one date.
type StatusRow struct {
	Staff        StaffMember
	Date         Date
	Status       Status
	Record       *Record
	HolidayLabel string

	// Wage is set for PRESENT rows; zero otherwise.
	Wage WageResult
}

// =============================================================================
// AGGREGATION - Pure functions over already-loaded data
// =============================================================================

// statusFor resolves one staff-day. ok is false when the day is skipped.
func (c WageCalculator) statusFor(staff StaffMember, d Date, rec *Record, holiday *Holiday, skipEmptyWeekend bool) (StatusRow, bool) {
	row := StatusRow{Staff: staff, Date: d, Record: rec, Wage: ZeroWage()}
	if rec == nil {
		switch {
		case holiday != nil:
			row.Status = StatusHoliday
			row.HolidayLabel = holiday.Label
		case skipEmptyWeekend && d.IsWeekend():
			return StatusRow{}, false
		default:
			row.Status = StatusAbsent
		}
		return row, true
	}

	if holiday != nil {
		row.HolidayLabel = holiday.Label
	}
	switch {
	case rec.Category == CategoryLeave:
		row.Status = StatusLeave
	case rec.Category == CategorySick:
		row.Status = StatusSick
	case rec.CheckOut != nil:
		row.Status = StatusPresent
		row.Wage = c.ForRecord(*rec)
	default:
		row.Status = StatusInProgress
	}
	return row, true
}

// BuildReport returns one row per roster member for date, most-actionable
// first. holiday is the declared holiday on date, if any.
func (c WageCalculator) BuildReport(date Date, roster []StaffMember, records []Record, holiday *Holiday) []StatusRow {
	byStaff := make(map[string]*Record, len(records))
	for i := range records {
		if records[i].Date.Equal(date) {
			byStaff[records[i].StaffEmail] = &records[i]
		}
	}

	rows := make([]StatusRow, 0, len(roster))
	for _, s := range roster {
		row, _ := c.statusFor(s, date, byStaff[s.Email], holiday, false)
		rows = append(rows, row)
	}
	sortRows(rows)
	return rows
}

// BuildRangeReport applies the daily rules for every date in [from, to].
// Weekend dates with no record are skipped rather than reported ABSENT.
// Rows are ordered by date, then status rank.
func (c WageCalculator) BuildRangeReport(from, to Date, roster []StaffMember, records []Record, holidays []Holiday) []StatusRow {
	byKey := make(map[StaffDay]*Record, len(records))
	for i := range records {
		byKey[records[i].Key()] = &records[i]
	}
	cal := NewCalendar(holidays)

	var rows []StatusRow
	for _, d := range Dates(from, to) {
		var holiday *Holiday
		if h, ok := cal.Holiday(d); ok {
			holiday = &h
		}
		for _, s := range roster {
			if row, ok := c.statusFor(s, d, byKey[StaffDay{Staff: s.Email, Date: d}], holiday, true); ok {
				rows = append(rows, row)
			}
		}
	}
	sortRows(rows)
	return rows
}

func sortRows(rows []StatusRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Status.Rank() != b.Status.Rank() {
			return a.Status.Rank() < b.Status.Rank()
		}
		return a.Staff.Name < b.Staff.Name
	})
}

// =============================================================================
// SUMMARY - Per-staff totals over a set of rows
// =============================================================================

type StaffSummary struct {
	Staff        StaffMember
	Counts       map[Status]int
	PayableHours decimal.Decimal
	Wage         decimal.Decimal
}

// Summarize totals rows per staff member, in order of first appearance.
func Summarize(rows []StatusRow) []StaffSummary {
	index := make(map[string]int)
	var out []StaffSummary
	for _, r := range rows {
		i, ok := index[r.Staff.Email]
		if !ok {
			i = len(out)
			index[r.Staff.Email] = i
			out = append(out, StaffSummary{
				Staff:        r.Staff,
				Counts:       make(map[Status]int),
				PayableHours: decimal.Zero,
				Wage:         decimal.Zero,
			})
		}
		s := &out[i]
		s.Counts[r.Status]++
		if r.Status == StatusPresent {
			s.PayableHours = s.PayableHours.Add(r.Wage.PayableHours)
			s.Wage = s.Wage.Add(r.Wage.Wage)
		}
	}
	return out
}

// =============================================================================
// ENGINE REPORTS - Load from the store, then aggregate
// =============================================================================

// ReportQuery selects a report. Staff, when set, restricts the roster to one
// email.
type ReportQuery struct {
	From  Date
	To    Date
	Staff string
}

// DailyReport builds the report for q.From.
func (e *Engine) DailyReport(ctx context.Context, q ReportQuery) ([]StatusRow, error) {
	roster, records, holidays, err := e.loadReportData(ctx, q.From, q.From, q.Staff)
	if err != nil {
		return nil, err
	}
	var holiday *Holiday
	if h, ok := NewCalendar(holidays).Holiday(q.From); ok {
		holiday = &h
	}
	return e.wages.BuildReport(q.From, roster, records, holiday), nil
}

// RangeReport builds the report for [q.From, q.To].
func (e *Engine) RangeReport(ctx context.Context, q ReportQuery) ([]StatusRow, error) {
	if q.To.Before(q.From) {
		return nil, &ConsistencyViolationError{Field: "to", Message: "range end is before range start"}
	}
	roster, records, holidays, err := e.loadReportData(ctx, q.From, q.To, q.Staff)
	if err != nil {
		return nil, err
	}
	return e.wages.BuildRangeReport(q.From, q.To, roster, records, holidays), nil
}

func (e *Engine) loadReportData(ctx context.Context, from, to Date, staff string) ([]StaffMember, []Record, []Holiday, error) {
	logger := e.log.With(zap.String("op", "report"), zap.Stringer("from", from), zap.Stringer("to", to))

	roster, err := e.roster.ListRoster(ctx)
	if err != nil {
		return nil, nil, nil, e.unavailable(logger, "list roster", err)
	}
	if staff != "" {
		filtered := roster[:0:0]
		for _, s := range roster {
			if s.Email == staff {
				filtered = append(filtered, s)
			}
		}
		roster = filtered
	}

	records, err := e.records.ListRecordsInRange(ctx, from, to)
	if err != nil {
		return nil, nil, nil, e.unavailable(logger, "list records", err)
	}

	holidays, err := e.holiday.ListHolidaysInRange(ctx, from, to)
	if err != nil {
		logger.Warn("holiday lookup failed, reporting without holidays", zap.Error(err))
		holidays = nil
	}
	return roster, records, holidays, nil
}

// =============================================================================
// STALE CHECK-INS - Days that were opened and never closed
// =============================================================================

// StaleCheckIns returns CHECKED_IN records from the lookbackDays days before
// now's date. Today is excluded since it can still be closed normally.
func (e *Engine) StaleCheckIns(ctx context.Context, now time.Time, lookbackDays int) ([]Record, error) {
	if lookbackDays <= 0 {
		return nil, nil
	}
	today := DateOf(now, e.policy.location())
	from, to := today.AddDays(-lookbackDays), today.AddDays(-1)
	logger := e.log.With(zap.String("op", "stale_check_ins"), zap.Stringer("from", from), zap.Stringer("to", to))

	records, err := e.records.ListRecordsInRange(ctx, from, to)
	if err != nil {
		return nil, e.unavailable(logger, "list records", err)
	}
	var open []Record
	for _, r := range records {
		if r.State() == StateCheckedIn {
			open = append(open, r)
		}
	}
	return open, nil
}
