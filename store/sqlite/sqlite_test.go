package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/presence-engine/attendance"
	"github.com/warp/presence-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var tuesday = attendance.NewDate(2025, time.March, 4)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func openRecord(id, staff string, d attendance.Date, hour int) attendance.Record {
	in := d.At(hour, 0, time.UTC)
	return attendance.Record{
		ID: id, StaffEmail: staff, StaffName: "Ana", Date: d,
		CheckIn: &in, Category: attendance.CategoryNormal,
		Wage: attendance.ZeroWage(), Version: 1,
		CreatedAt: in, UpdatedAt: in,
	}
}

// =============================================================================
// RECORDS
// =============================================================================

func TestStore_InsertIfAbsent_UniquePerStaffDay(t *testing.T) {
	// GIVEN: A record for Ana on Tuesday
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r1", "ana@campus.test", tuesday, 8)))

	// WHEN: A second insert for the same staff-day
	err := store.InsertIfAbsent(ctx, openRecord("r2", "ana@campus.test", tuesday, 9))

	// THEN: The storage conflict is reported, the first row stands
	require.ErrorIs(t, err, attendance.ErrDuplicateWrite)
	got, err := store.GetRecord(ctx, "ana@campus.test", tuesday)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)
	assert.True(t, got.CheckIn.Equal(tuesday.At(8, 0, time.UTC)))
	assert.Nil(t, got.CheckOut)
	assert.Equal(t, attendance.StateCheckedIn, got.State())

	// Other days are independent
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r3", "ana@campus.test", tuesday.AddDays(1), 8)))
}

func TestStore_RecordRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	wib := time.FixedZone("WIB", 7*3600)

	in := time.Date(2025, time.March, 4, 8, 0, 0, 123456789, wib)
	out := in.Add(9*time.Hour + 15*time.Minute)
	rec := attendance.Record{
		ID: "r1", StaffEmail: "ana@campus.test", StaffName: "Ana", Date: tuesday,
		CheckIn: &in, CheckOut: &out, Category: attendance.CategoryAdminCorrection,
		Note: "forgot to scan", TaskList: "filed transcripts", NonWorkdayReason: attendance.ReasonShiftSwap, Overtime: true,
		Wage: attendance.WageResult{
			Duration:     out.Sub(in),
			RawHours:     decimal.RequireFromString("9.25"),
			PayableHours: decimal.NewFromInt(8),
			Wage:         decimal.NewFromInt(200000),
		},
		Version: 3, CreatedAt: in, UpdatedAt: out,
	}
	require.NoError(t, store.InsertIfAbsent(ctx, rec))

	got, err := store.GetRecordByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CheckIn.Equal(in), "check-in keeps nanoseconds")
	assert.True(t, got.CheckOut.Equal(out))
	assert.Equal(t, attendance.CategoryAdminCorrection, got.Category)
	assert.Equal(t, "forgot to scan", got.Note)
	assert.Equal(t, "filed transcripts", got.TaskList)
	assert.Equal(t, attendance.ReasonShiftSwap, got.NonWorkdayReason)
	assert.True(t, got.Overtime)
	assert.Equal(t, out.Sub(in), got.Wage.Duration)
	assert.True(t, got.Wage.RawHours.Equal(decimal.RequireFromString("9.25")))
	assert.True(t, got.Wage.Wage.Equal(decimal.NewFromInt(200000)))
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, tuesday, got.Date)

	missing, err := store.GetRecordByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SwapRecord_VersionGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	prev := openRecord("r1", "ana@campus.test", tuesday, 8)
	require.NoError(t, store.InsertIfAbsent(ctx, prev))

	next := prev
	out := tuesday.At(17, 0, time.UTC)
	next.CheckOut = &out
	next.Version = 2
	require.NoError(t, store.SwapRecord(ctx, prev, next))

	// WHEN: A writer holding the stale version swaps again
	err := store.SwapRecord(ctx, prev, next)

	// THEN: It loses
	require.ErrorIs(t, err, attendance.ErrDuplicateWrite)
	got, err := store.GetRecord(ctx, "ana@campus.test", tuesday)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, attendance.StateCheckedOut, got.State())
}

func TestStore_UpsertRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insert path
	first, err := store.UpsertRecord(ctx, openRecord("r1", "ana@campus.test", tuesday, 8))
	require.NoError(t, err)
	assert.Equal(t, "r1", first.ID)
	assert.Equal(t, 1, first.Version)

	// Update path keeps id and created_at, bumps version
	edit := openRecord("r-other", "ana@campus.test", tuesday, 9)
	edit.Category = attendance.CategorySick
	edit.CreatedAt = tuesday.At(23, 0, time.UTC)
	edit.TaskList = "front desk"
	second, err := store.UpsertRecord(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "r1", second.ID)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, attendance.CategorySick, second.Category)
	assert.Equal(t, "front desk", second.TaskList)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))

	recs, err := store.ListRecordsInRange(ctx, tuesday, tuesday)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_ListRecordsInRange_Ordered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r3", "ana@campus.test", tuesday.AddDays(1), 8)))
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r2", "budi@campus.test", tuesday, 10)))
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r1", "ana@campus.test", tuesday, 8)))
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r0", "ana@campus.test", tuesday.AddDays(-1), 8)))

	recs, err := store.ListRecordsInRange(ctx, tuesday, tuesday.AddDays(1))
	require.NoError(t, err)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)

	require.NoError(t, store.DeleteRecord(ctx, "r2"))
	recs, err = store.ListRecordsInRange(ctx, tuesday, tuesday)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// =============================================================================
// HOLIDAYS AND STAFF
// =============================================================================

func TestStore_Holidays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{ID: "h1", Date: tuesday, Label: "Nyepi"}))
	require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{ID: "h2", Date: tuesday, Label: "Nyepi (observed)"}))
	require.NoError(t, store.SaveHoliday(ctx, attendance.Holiday{ID: "h3", Date: tuesday.AddDays(40), Label: "Eid"}))

	hs, err := store.ListHolidaysInRange(ctx, tuesday, tuesday.AddDays(7))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "h1", hs[0].ID)
	assert.Equal(t, "Nyepi (observed)", hs[0].Label)
	assert.Equal(t, tuesday, hs[0].Date)

	require.NoError(t, store.DeleteHoliday(ctx, "h1"))
	hs, err = store.ListHolidaysInRange(ctx, tuesday, tuesday.AddDays(60))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "Eid", hs[0].Label)
}

func TestStore_StaffDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveStaff(ctx, "", attendance.StaffMember{Email: "zed@campus.test", Name: "Zed", Role: "lab"}))
	require.NoError(t, store.SaveStaff(ctx, "", attendance.StaffMember{Email: "amy@campus.test", Name: "Amy"}))

	roster, err := store.ListRoster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Amy", roster[0].Name)

	// Upsert on the same email updates in place
	require.NoError(t, store.SaveStaff(ctx, "", attendance.StaffMember{Email: "zed@campus.test", Name: "Zed Z", Role: "lab"}))
	zed, err := store.GetStaff(ctx, "zed@campus.test")
	require.NoError(t, err)
	assert.Equal(t, "Zed Z", zed.Name)

	// Rename onto a taken email
	err = store.SaveStaff(ctx, "zed@campus.test", attendance.StaffMember{Email: "amy@campus.test", Name: "Zed"})
	require.ErrorIs(t, err, attendance.ErrStaffExists)

	require.NoError(t, store.SaveStaff(ctx, "zed@campus.test", attendance.StaffMember{Email: "zed2@campus.test", Name: "Zed"}))
	gone, err := store.GetStaff(ctx, "zed@campus.test")
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, store.DeleteStaff(ctx, "amy@campus.test"))
	roster, err = store.ListRoster(ctx)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "zed2@campus.test", roster[0].Email)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, openRecord("r1", "ana@campus.test", tuesday, 8)))
	require.NoError(t, store.SaveStaff(ctx, "", attendance.StaffMember{Email: "ana@campus.test", Name: "Ana"}))

	require.NoError(t, store.Reset(ctx))

	recs, err := store.ListRecordsInRange(ctx, tuesday, tuesday)
	require.NoError(t, err)
	assert.Empty(t, recs)
	roster, err := store.ListRoster(ctx)
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestStore_ClosedIsError(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.Ping(context.Background()))
	_, err = store.GetRecord(context.Background(), "ana@campus.test", tuesday)
	assert.Error(t, err)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestEngine_ConcurrentClockIn_OneRow(t *testing.T) {
	// GIVEN: A file-backed store and many simultaneous scans
	store, err := sqlite.New(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	engine := attendance.NewEngine(attendance.DefaultPolicy(), store, nil)

	const n = 16
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.ClockIn(context.Background(), attendance.ClockInRequest{
				Staff: "ana@campus.test", Now: tuesday.At(8, i, time.UTC), Distance: 5,
			})
			if err == nil {
				wins.Add(1)
				return
			}
			if !errors.Is(err, attendance.ErrAlreadyProcessed) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one row exists
	assert.Equal(t, int32(1), wins.Load())
	recs, err := store.ListRecordsInRange(context.Background(), tuesday, tuesday)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestEngine_FullDayOnSQLite(t *testing.T) {
	store := newTestStore(t)
	engine := attendance.NewEngine(attendance.DefaultPolicy(), store, nil)
	ctx := context.Background()

	_, err := engine.ClockIn(ctx, attendance.ClockInRequest{Staff: "ana@campus.test", Now: tuesday.At(8, 0, time.UTC), Distance: 5})
	require.NoError(t, err)
	_, err = engine.ClockOut(ctx, attendance.ClockOutRequest{Staff: "ana@campus.test", Now: tuesday.At(17, 0, time.UTC)})
	require.NoError(t, err)

	got, err := store.GetRecord(ctx, "ana@campus.test", tuesday)
	require.NoError(t, err)
	assert.Equal(t, attendance.StateCheckedOut, got.State())
	assert.True(t, got.Wage.PayableHours.Equal(decimal.NewFromInt(8)))
	assert.True(t, got.Wage.Wage.Equal(decimal.NewFromInt(200000)))
	assert.Equal(t, 2, got.Version)
}
