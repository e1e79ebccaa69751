package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/presence-engine/attendance"
)

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns holidays in [from, to], defaulting to the current year.
// GET /api/holidays?from=&to=
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Now().In(h.loc()).Year()
	from, err := dateParam(r, "from", attendance.NewDate(year, time.January, 1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	to, err := dateParam(r, "to", attendance.NewDate(year, time.December, 31))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}

	holidays, err := h.Store.ListHolidaysInRange(r.Context(), from, to)
	if err != nil {
		h.storeFailure(w, r, "list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday declares a holiday on one date or each date of a range. A
// date that is already declared takes the new label.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required", nil)
		return
	}

	from, err := attendance.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	to := from
	if req.EndDate != "" {
		if to, err = attendance.ParseDate(req.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date", err)
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "end_date is before date", nil)
		return
	}
	if spanDays(from, to) > maxRangeDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Range exceeds %d days", maxRangeDays), nil)
		return
	}

	ctx := r.Context()
	for _, d := range attendance.Dates(from, to) {
		hol := attendance.Holiday{ID: h.NewID(), Date: d, Label: req.Label}
		if err := h.Store.SaveHoliday(ctx, hol); err != nil {
			h.storeFailure(w, r, "save holiday", err)
			return
		}
	}

	// Re-read so ids reflect dates that were already declared.
	saved, err := h.Store.ListHolidaysInRange(ctx, from, to)
	if err != nil {
		h.storeFailure(w, r, "list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(saved))
	for _, hol := range saved {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// DeleteHoliday removes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		h.storeFailure(w, r, "delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STAFF ENDPOINTS
// =============================================================================

// ListStaff returns the roster ordered by name.
// GET /api/staff
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	roster, err := h.Store.ListRoster(r.Context())
	if err != nil {
		h.storeFailure(w, r, "list staff", err)
		return
	}
	dtos := make([]StaffDTO, len(roster))
	for i, s := range roster {
		dtos[i] = toStaffDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStaff registers a staff member.
// POST /api/staff
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	member, err := req.member()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid staff", err)
		return
	}

	ctx := r.Context()
	existing, err := h.Store.GetStaff(ctx, member.Email)
	if err != nil {
		h.storeFailure(w, r, "load staff", err)
		return
	}
	if existing != nil {
		h.writeEngineError(w, r, attendance.ErrStaffExists)
		return
	}
	if err := h.Store.SaveStaff(ctx, "", member); err != nil {
		h.staffWriteFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffDTO(member))
}

// UpdateStaff renames or edits a staff member. Existing records keep the
// email they were written with.
// PUT /api/staff/{email}
func (h *Handler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	current, err := emailParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email", err)
		return
	}

	var req StaffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" {
		req.Email = current
	}
	member, err := req.member()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid staff", err)
		return
	}

	ctx := r.Context()
	existing, err := h.Store.GetStaff(ctx, current)
	if err != nil {
		h.storeFailure(w, r, "load staff", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Staff not found", nil)
		return
	}
	if err := h.Store.SaveStaff(ctx, current, member); err != nil {
		h.staffWriteFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffDTO(member))
}

// DeleteStaff removes a staff member from the roster.
// DELETE /api/staff/{email}
func (h *Handler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email", err)
		return
	}

	ctx := r.Context()
	existing, err := h.Store.GetStaff(ctx, email)
	if err != nil {
		h.storeFailure(w, r, "load staff", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Staff not found", nil)
		return
	}
	if err := h.Store.DeleteStaff(ctx, email); err != nil {
		h.storeFailure(w, r, "delete staff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) staffWriteFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, attendance.ErrStaffExists) {
		h.writeEngineError(w, r, err)
		return
	}
	h.storeFailure(w, r, "save staff", err)
}

func (req StaffRequest) member() (attendance.StaffMember, error) {
	m := attendance.StaffMember{
		Email: normalizeEmail(req.Email),
		Name:  strings.TrimSpace(req.Name),
		Role:  strings.TrimSpace(req.Role),
	}
	if at := strings.IndexByte(m.Email, '@'); at <= 0 || at == len(m.Email)-1 {
		return attendance.StaffMember{}, fmt.Errorf("email %q is not valid", req.Email)
	}
	if m.Name == "" {
		return attendance.StaffMember{}, errors.New("name is required")
	}
	return m, nil
}

func emailParam(r *http.Request) (string, error) {
	s, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		return "", err
	}
	return normalizeEmail(s), nil
}

func dateParam(r *http.Request, name string, def attendance.Date) (attendance.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return attendance.ParseDate(s)
}
