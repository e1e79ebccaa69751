/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to attendance.Engine.
  The handler reads the wall clock exactly once per request (Handler.Now)
  and hands the instant to the engine.

ENDPOINTS:
  Attendance:
    POST   /api/attendance/clock-in     Open the staff-day
    POST   /api/attendance/clock-out    Close the staff-day
    GET    /api/attendance/today        State and what the next scan needs

  Admin:
    PUT    /api/admin/records           Upsert a corrected record
    DELETE /api/admin/records/{id}      Hard-delete a record
    GET    /api/admin/stale-check-ins   Past days never clocked out (scheduler.go)

  Reports:
    GET    /api/reports/daily           ?date=&staff=
    GET    /api/reports/range           ?from=&to=&staff= (with summary)

  Directory (directory.go):
    GET|POST|DELETE /api/holidays
    GET|POST|PUT|DELETE /api/staff

  Demo data (scenarios.go, only when enabled):
    GET    /api/scenarios
    GET    /api/scenarios/current
    POST   /api/scenarios/load

ERROR HANDLING:
  Errors are returned as ErrorResponse with a stable code:
  - 400: Malformed input
  - 404: Record or staff not found
  - 409: Already processed, lost race, staff email taken
  - 422: Policy rejections (geofence, cutoff, minimum hours, reasons)
  - 503: Store unavailable (retryable)
  - 500: Anything else

SECURITY NOTE:
  Identity is taken from the request body. Authentication is expected in
  front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/presence-engine/attendance"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *attendance.Engine
	Store  attendance.Store
	Log    *zap.Logger

	// Now is the request clock. Tests pin it.
	Now func() time.Time

	// NewID generates holiday identifiers.
	NewID func() string

	// Monitor, when set, serves cached stale check-in findings.
	Monitor *StaleCheckInMonitor

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. A nil logger disables logging.
func NewHandler(engine *attendance.Engine, store attendance.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Engine: engine,
		Store:  store,
		Log:    logger.Named("api"),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (h *Handler) loc() *time.Location { return h.Engine.Location() }

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ClockIn opens the staff-day.
// POST /api/attendance/clock-in
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req ClockInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required", nil)
		return
	}

	distance, err := h.distance(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Position is required", err)
		return
	}

	rec, err := h.Engine.ClockIn(r.Context(), attendance.ClockInRequest{
		Staff:     req.Email,
		StaffName: req.Name,
		Now:       h.Now(),
		Distance:  distance,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec, h.loc()))
}

// distance prefers a client-measured distance, falling back to the
// great-circle distance between the reported position and the site.
func (h *Handler) distance(req ClockInRequest) (float64, error) {
	if req.DistanceM != nil {
		if *req.DistanceM < 0 {
			return 0, errors.New("distance_m must not be negative")
		}
		return *req.DistanceM, nil
	}
	if req.Latitude == nil || req.Longitude == nil {
		return 0, errors.New("distance_m or latitude/longitude required")
	}
	pos := attendance.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if pos.Latitude < -90 || pos.Latitude > 90 || pos.Longitude < -180 || pos.Longitude > 180 {
		return 0, fmt.Errorf("position %.6f,%.6f out of bounds", pos.Latitude, pos.Longitude)
	}
	return attendance.Distance(pos, h.Engine.Policy().Site), nil
}

// ClockOut closes the staff-day.
// POST /api/attendance/clock-out
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req ClockOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required", nil)
		return
	}

	rec, err := h.Engine.ClockOut(r.Context(), attendance.ClockOutRequest{
		Staff:  req.Email,
		Now:    h.Now(),
		Reason: req.Reason,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec, h.loc()))
}

// Today returns the staff-day state.
// GET /api/attendance/today?email=
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	email := normalizeEmail(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required", nil)
		return
	}

	now := h.Now().In(h.loc())
	st, err := h.Engine.Today(r.Context(), email, now)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	policy := h.Engine.Policy()
	dto := TodayDTO{
		Email:          st.Staff,
		Date:           st.Date.String(),
		DayKind:        string(st.Classification.Kind),
		HolidayLabel:   st.Classification.Label,
		State:          string(st.State),
		CanClockIn:     st.State == attendance.StateNone && (!st.Classification.IsWorkday() || now.Hour() < policy.LateLimitHour),
		CanClockOut:    st.State == attendance.StateCheckedIn,
		EarlyLeaveHour: policy.EarlyLeaveHour,
		Record:         toRecordDTO(st.Record, h.loc()),
	}
	if !st.Classification.IsWorkday() {
		dto.NonWorkdayReasons = policy.NonWorkdayReasons
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// UpsertRecord stores an operator correction.
// PUT /api/admin/records
func (h *Handler) UpsertRecord(w http.ResponseWriter, r *http.Request) {
	var req AdminRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := attendance.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	checkIn, err := parseClock(date, req.CheckIn, h.loc())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_in", err)
		return
	}
	checkOut, err := parseClock(date, req.CheckOut, h.loc())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_out", err)
		return
	}

	rec, err := h.Engine.AdminUpsert(r.Context(), attendance.AdminEdit{
		StaffEmail:       normalizeEmail(req.StaffEmail),
		StaffName:        req.StaffName,
		Date:             date,
		Category:         attendance.Category(strings.ToUpper(req.Category)),
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		Note:             req.Note,
		TaskList:         req.TaskList,
		NonWorkdayReason: req.NonWorkdayReason,
		Now:              h.Now(),
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec, h.loc()))
}

// DeleteRecord hard-deletes a record.
// DELETE /api/admin/records/{id}
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.AdminDelete(r.Context(), id); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// DailyReport returns one row per roster member for a date (default today).
// GET /api/reports/daily?date=&staff=
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := attendance.DateOf(h.Now(), h.loc())
	if s := q.Get("date"); s != "" {
		d, err := attendance.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		date = d
	}

	rows, err := h.Engine.DailyReport(r.Context(), attendance.ReportQuery{From: date, To: date, Staff: normalizeEmail(q.Get("staff"))})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{
		From: date.String(),
		To:   date.String(),
		Rows: toReportRows(rows, h.loc()),
	})
}

// RangeReport returns rows for every date in [from, to] plus per-staff totals.
// GET /api/reports/range?from=&to=&staff=
func (h *Handler) RangeReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := attendance.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	to, err := attendance.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}
	if spanDays(from, to) > maxRangeDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Range exceeds %d days", maxRangeDays), nil)
		return
	}

	rows, err := h.Engine.RangeReport(r.Context(), attendance.ReportQuery{From: from, To: to, Staff: normalizeEmail(q.Get("staff"))})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{
		From:    from.String(),
		To:      to.String(),
		Rows:    toReportRows(rows, h.loc()),
		Summary: toSummaryDTOs(attendance.Summarize(rows)),
	})
}

const maxRangeDays = 366

func spanDays(from, to attendance.Date) int {
	return int(to.Midnight(time.UTC).Sub(from.Midnight(time.UTC)).Hours()/24) + 1
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the store when it supports it.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error: "store unreachable", Code: "UNAVAILABLE", Details: err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// normalizeEmail is the identity key form used across records and roster.
func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// parseClock accepts RFC3339 or "HH:MM" on date. Empty means absent.
func parseClock(date attendance.Date, s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	hm, err := time.Parse("15:04", s)
	if err != nil {
		return nil, fmt.Errorf("%q is neither RFC3339 nor HH:MM", s)
	}
	t := date.At(hm.Hour(), hm.Minute(), loc)
	return &t, nil
}

// statusFor maps the attendance error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case attendance.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, attendance.ErrAlreadyProcessed),
		errors.Is(err, attendance.ErrDuplicateWrite),
		errors.Is(err, attendance.ErrStaffExists):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrRecordNotFound):
		return http.StatusNotFound
	case attendance.IsRejection(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: attendance.Code(err)}

	var below *attendance.BelowMinimumHoursError
	if errors.As(err, &below) {
		resp.RemainingMinutes = &below.RemainingMinutes
	}
	var reason *attendance.ReasonRequiredError
	if errors.As(err, &reason) {
		resp.AllowedReasons = reason.Allowed
	}

	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			resp = ErrorResponse{Error: "Internal error", Details: err.Error()}
		}
	}
	writeJSON(w, status, resp)
}

// storeFailure reports a direct store error on the directory endpoints.
func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.Log.Error("store failure",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("op", op),
		zap.Error(err),
	)
	writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
		Error: "Failed to " + op, Code: "UNAVAILABLE", Details: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
