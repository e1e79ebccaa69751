package attendance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/presence-engine/attendance"
	"github.com/warp/presence-engine/attendance/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	ana   = attendance.StaffMember{Email: "ana@campus.test", Name: "Ana"}
	budi  = attendance.StaffMember{Email: "budi@campus.test", Name: "Budi"}
	citra = attendance.StaffMember{Email: "citra@campus.test", Name: "Citra"}
	dewi  = attendance.StaffMember{Email: "dewi@campus.test", Name: "Dewi"}
	eko   = attendance.StaffMember{Email: "eko@campus.test", Name: "Eko"}
)

func seedRoster(t *testing.T, mem *store.Memory, members ...attendance.StaffMember) {
	t.Helper()
	for _, m := range members {
		require.NoError(t, mem.SaveStaff(context.Background(), "", m))
	}
}

func statuses(rows []attendance.StatusRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Staff.Name + ":" + string(r.Status)
	}
	return out
}

// =============================================================================
// DAILY REPORT
// =============================================================================

func TestDailyReport_SortsByStatusThenName(t *testing.T) {
	// GIVEN: Five staff in every state a day can be in
	e, mem := newTestEngine(t, nil)
	ctx := context.Background()
	seedRoster(t, mem, eko, dewi, citra, budi, ana)

	clockIn(t, e, eko.Email, at(tuesday, 8, 0))
	clockIn(t, e, budi.Email, at(tuesday, 8, 0))
	_, err := e.ClockOut(ctx, attendance.ClockOutRequest{Staff: budi.Email, Now: at(tuesday, 17, 0)})
	require.NoError(t, err)
	clockIn(t, e, ana.Email, at(tuesday, 7, 30))
	_, err = e.AdminUpsert(ctx, attendance.AdminEdit{StaffEmail: citra.Email, Date: tuesday, Category: attendance.CategorySick})
	require.NoError(t, err)

	// WHEN: Building the daily report
	rows, err := e.DailyReport(ctx, attendance.ReportQuery{From: tuesday})

	// THEN: IN_PROGRESS, PRESENT, SICK, ABSENT; ties by name
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Ana:IN_PROGRESS",
		"Eko:IN_PROGRESS",
		"Budi:PRESENT",
		"Citra:SICK",
		"Dewi:ABSENT",
	}, statuses(rows))

	assertDecimal(t, "200000", rows[2].Wage.Wage)
	assert.True(t, rows[0].Wage.Wage.IsZero())
	assert.Nil(t, rows[4].Record)
}

func TestDailyReport_HolidayWithoutRecord(t *testing.T) {
	e, mem := newTestEngine(t, nil)
	ctx := context.Background()
	seedRoster(t, mem, ana, budi)
	require.NoError(t, mem.SaveHoliday(ctx, attendance.Holiday{ID: "h1", Date: tuesday, Label: "Nyepi"}))
	clockIn(t, e, budi.Email, at(tuesday, 9, 0))

	rows, err := e.DailyReport(ctx, attendance.ReportQuery{From: tuesday})

	require.NoError(t, err)
	assert.Equal(t, []string{"Budi:IN_PROGRESS", "Ana:HOLIDAY"}, statuses(rows))
	assert.Equal(t, "Nyepi", rows[1].HolidayLabel)
	assert.Equal(t, "Nyepi", rows[0].HolidayLabel)
}

func TestDailyReport_WeekendWithoutRecordIsAbsent(t *testing.T) {
	e, mem := newTestEngine(t, nil)
	seedRoster(t, mem, ana)

	rows, err := e.DailyReport(context.Background(), attendance.ReportQuery{From: saturday})

	require.NoError(t, err)
	assert.Equal(t, []string{"Ana:ABSENT"}, statuses(rows))
}

func TestDailyReport_RosterOnlyAndStaffFilter(t *testing.T) {
	e, mem := newTestEngine(t, nil)
	ctx := context.Background()
	seedRoster(t, mem, ana, budi)
	clockIn(t, e, "visitor@campus.test", at(tuesday, 8, 0))
	clockIn(t, e, ana.Email, at(tuesday, 8, 0))

	rows, err := e.DailyReport(ctx, attendance.ReportQuery{From: tuesday})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana:IN_PROGRESS", "Budi:ABSENT"}, statuses(rows))

	rows, err = e.DailyReport(ctx, attendance.ReportQuery{From: tuesday, Staff: budi.Email})
	require.NoError(t, err)
	assert.Equal(t, []string{"Budi:ABSENT"}, statuses(rows))
}

func TestDailyReport_HolidayLookupFails_StillReports(t *testing.T) {
	mem := store.NewMemory()
	seedRoster(t, mem, ana)
	e := attendance.NewEngine(attendance.DefaultPolicy(), flakyHolidays{mem}, nil)

	rows, err := e.DailyReport(context.Background(), attendance.ReportQuery{From: tuesday})

	require.NoError(t, err)
	assert.Equal(t, []string{"Ana:ABSENT"}, statuses(rows))
}

func TestDailyReport_StoreUnavailable(t *testing.T) {
	e, mem := newTestEngine(t, nil)
	mem.Fail = errors.New("no such table")

	_, err := e.DailyReport(context.Background(), attendance.ReportQuery{From: tuesday})
	require.ErrorIs(t, err, attendance.ErrUnavailable)
}

// =============================================================================
// RANGE REPORT
// =============================================================================

func TestRangeReport_SkipsEmptyWeekends(t *testing.T) {
	// GIVEN: Friday through Monday, Ana works Saturday, Sunday is a holiday
	friday := tuesday.AddDays(3)
	sunday := friday.AddDays(2)
	monday := friday.AddDays(3)

	e, mem := newTestEngine(t, nil)
	ctx := context.Background()
	seedRoster(t, mem, ana, budi)
	require.NoError(t, mem.SaveHoliday(ctx, attendance.Holiday{ID: "h1", Date: sunday, Label: "Founders Day"}))

	clockIn(t, e, ana.Email, at(friday, 8, 0))
	_, err := e.ClockOut(ctx, attendance.ClockOutRequest{Staff: ana.Email, Now: at(friday, 16, 0)})
	require.NoError(t, err)
	clockIn(t, e, ana.Email, at(saturday, 9, 0))
	_, err = e.ClockOut(ctx, attendance.ClockOutRequest{Staff: ana.Email, Now: at(saturday, 15, 0)})
	require.NoError(t, err)

	// WHEN: Building the range report
	rows, err := e.RangeReport(ctx, attendance.ReportQuery{From: friday, To: monday})

	// THEN: Budi's empty Saturday is skipped, Sunday is HOLIDAY for both
	require.NoError(t, err)
	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.Date.String() + " " + r.Staff.Name + ":" + string(r.Status)
	}
	assert.Equal(t, []string{
		"2025-03-07 Ana:PRESENT",
		"2025-03-07 Budi:ABSENT",
		"2025-03-08 Ana:PRESENT",
		"2025-03-09 Ana:HOLIDAY",
		"2025-03-09 Budi:HOLIDAY",
		"2025-03-10 Ana:ABSENT",
		"2025-03-10 Budi:ABSENT",
	}, got)

	// AND: The summary totals PRESENT rows only
	sums := attendance.Summarize(rows)
	require.Len(t, sums, 2)
	assert.Equal(t, ana, sums[0].Staff)
	assert.Equal(t, 2, sums[0].Counts[attendance.StatusPresent])
	assert.Equal(t, 1, sums[0].Counts[attendance.StatusHoliday])
	assert.Equal(t, 1, sums[0].Counts[attendance.StatusAbsent])
	assertDecimal(t, "14", sums[0].PayableHours)
	assertDecimal(t, "350000", sums[0].Wage)
	assert.Equal(t, 2, sums[1].Counts[attendance.StatusAbsent])
	assert.True(t, sums[1].Wage.IsZero())
}

func TestRangeReport_InvertedRange(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.RangeReport(context.Background(), attendance.ReportQuery{From: saturday, To: tuesday})
	require.ErrorIs(t, err, attendance.ErrConsistencyViolation)
}

func TestStatus_Rank(t *testing.T) {
	assert.Less(t, attendance.StatusInProgress.Rank(), attendance.StatusPresent.Rank())
	assert.Equal(t, attendance.StatusLeave.Rank(), attendance.StatusSick.Rank())
	assert.Less(t, attendance.StatusSick.Rank(), attendance.StatusHoliday.Rank())
	assert.Less(t, attendance.StatusHoliday.Rank(), attendance.StatusAbsent.Rank())
	assert.Panics(t, func() { attendance.Status("UNKNOWN").Rank() })
}
