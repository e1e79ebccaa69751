/*
scenarios.go - Demo data loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the store with a realistic
	roster, holidays and attendance history. Each scenario is anchored to
	the week before the current one so reports always have something to show.

AVAILABLE SCENARIOS:

	roster-only:   Staff directory, no attendance yet
	typical-week:  A full week with every day status, a holiday, weekend
	               overtime and one check-in that was never closed

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Save staff members
 3. Save holidays
 4. Write records through Engine.AdminUpsert, so pay is derived the same
    way operator corrections derive it
 5. On any failure, reset again: a load is all or nothing

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "typical-week"}

NOTE:

	Scenarios reset the store. The routes are only registered when
	server.demo_scenarios is enabled.
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/presence-engine/attendance"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "roster-only",
		Name:        "Roster Only",
		Description: "Four staff members and no attendance",
	},
	{
		ID:          "typical-week",
		Name:        "Typical Week",
		Description: "Last week: full days, a short day, leave, sickness, a holiday, Saturday overtime and a forgotten clock-out",
	},
}

var demoRoster = []attendance.StaffMember{
	{Email: "ana@campus.test", Name: "Ana Pratiwi", Role: "lecturer"},
	{Email: "budi@campus.test", Name: "Budi Santoso", Role: "staff"},
	{Email: "citra@campus.test", Name: "Citra Lestari", Role: "staff"},
	{Email: "dewi@campus.test", Name: "Dewi Anggraini", Role: "security"},
}

// resetter is implemented by stores that can drop all data.
type resetter interface {
	Reset(ctx context.Context) error
}

var errNoReset = errors.New("store does not support reset")

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "roster-only":
		load = h.loadRoster
	case "typical-week":
		load = h.loadTypicalWeek
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Failed to reset store", errNoReset)
		return
	}
	h.currentScenario = ""
	if err := rs.Reset(ctx); err != nil {
		h.storeFailure(w, r, "reset store", err)
		return
	}

	if err := load(ctx); err != nil {
		// Never leave half a scenario behind.
		if rerr := rs.Reset(ctx); rerr != nil {
			h.Log.Error("scenario rollback failed", zap.String("scenario", req.ScenarioID), zap.Error(rerr))
		}
		h.writeEngineError(w, r, err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadRoster(ctx context.Context) error {
	for _, m := range demoRoster {
		if err := h.Store.SaveStaff(ctx, "", m); err != nil {
			return &attendance.UnavailableError{Op: "save staff", Err: err}
		}
	}
	return nil
}

// lastMonday is the Monday of the week before now's week.
func lastMonday(now time.Time, loc *time.Location) attendance.Date {
	today := attendance.DateOf(now, loc)
	offset := (int(today.Weekday()) + 6) % 7
	return today.AddDays(-offset - 7)
}

func (h *Handler) loadTypicalWeek(ctx context.Context) error {
	if err := h.loadRoster(ctx); err != nil {
		return err
	}

	loc := h.loc()
	now := h.Now()
	mon := lastMonday(now, loc)
	wed := mon.AddDays(2)
	sat := mon.AddDays(5)

	holiday := attendance.Holiday{ID: h.NewID(), Date: wed, Label: "Campus Founders Day"}
	if err := h.Store.SaveHoliday(ctx, holiday); err != nil {
		return &attendance.UnavailableError{Op: "save holiday", Err: err}
	}

	ana, budi, citra, dewi := demoRoster[0], demoRoster[1], demoRoster[2], demoRoster[3]
	day := func(m attendance.StaffMember, d attendance.Date, inH, inM, outH, outM int) attendance.AdminEdit {
		in := d.At(inH, inM, loc)
		edit := attendance.AdminEdit{
			StaffEmail: m.Email, StaffName: m.Name, Date: d,
			Category: attendance.CategoryNormal, CheckIn: &in, Now: now,
		}
		if outH >= 0 {
			out := d.At(outH, outM, loc)
			edit.CheckOut = &out
		}
		return edit
	}
	absent := func(m attendance.StaffMember, d attendance.Date, c attendance.Category, note string) attendance.AdminEdit {
		return attendance.AdminEdit{StaffEmail: m.Email, StaffName: m.Name, Date: d, Category: c, Note: note, Now: now}
	}

	var edits []attendance.AdminEdit
	for _, d := range []attendance.Date{mon, mon.AddDays(1), mon.AddDays(3), mon.AddDays(4)} {
		edits = append(edits, day(ana, d, 7, 45, 16, 15))
		edits = append(edits, day(dewi, d, 6, 0, 14, 0))
	}
	edits = append(edits,
		day(budi, mon, 8, 0, 10, 30),
		absent(budi, mon.AddDays(1), attendance.CategorySick, "Flu"),
		day(budi, mon.AddDays(3), 9, 10, 19, 5),
		day(budi, mon.AddDays(4), 8, 30, -1, 0),
		absent(citra, mon, attendance.CategoryLeave, "Family visit"),
		absent(citra, mon.AddDays(1), attendance.CategoryLeave, "Family visit"),
		day(citra, mon.AddDays(3), 8, 0, 15, 30),
		day(citra, mon.AddDays(4), 8, 0, 12, 0),
	)

	// Saturday overtime with a declared reason.
	weekend := day(ana, sat, 9, 0, 14, 0)
	weekend.NonWorkdayReason = attendance.ReasonCampusEvent
	weekend.Note = "Open day"
	edits = append(edits, weekend)

	for _, edit := range edits {
		if _, err := h.Engine.AdminUpsert(ctx, edit); err != nil {
			return fmt.Errorf("%s on %s: %w", edit.StaffEmail, edit.Date, err)
		}
	}
	return nil
}
