/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around lists and summaries

AMOUNTS:
  Hours and wages are decimal strings ("8", "200000"). Clients never see
  floats for money.

TIMESTAMPS:
  RFC3339 in the policy time zone. Dates are YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/presence-engine/attendance"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ClockInRequest carries either a precomputed distance or a position that
// the server measures against the site.
type ClockInRequest struct {
	Email     string   `json:"email"`
	Name      string   `json:"name,omitempty"`
	DistanceM *float64 `json:"distance_m,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

type ClockOutRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}

// AdminRecordRequest upserts the record for (staff_email, date). check_in
// and check_out accept RFC3339 or a wall-clock "HH:MM" on date.
type AdminRecordRequest struct {
	StaffEmail       string `json:"staff_email"`
	StaffName        string `json:"staff_name,omitempty"`
	Date             string `json:"date"`
	Category         string `json:"category"`
	CheckIn          string `json:"check_in,omitempty"`
	CheckOut         string `json:"check_out,omitempty"`
	Note             string `json:"note,omitempty"`
	TaskList         string `json:"task_list,omitempty"`
	NonWorkdayReason string `json:"nonworkday_reason,omitempty"`
}

// CreateHolidayRequest declares one date, or every date through end_date.
type CreateHolidayRequest struct {
	Date    string `json:"date"`
	EndDate string `json:"end_date,omitempty"`
	Label   string `json:"label"`
}

type StaffRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type WageDTO struct {
	RawHours     string `json:"raw_hours"`
	PayableHours string `json:"payable_hours"`
	Wage         string `json:"wage"`
	Hours        int    `json:"hours"`
	Minutes      int    `json:"minutes"`
	BelowMinimum bool   `json:"below_minimum,omitempty"`
}

type RecordDTO struct {
	ID               string  `json:"id"`
	StaffEmail       string  `json:"staff_email"`
	StaffName        string  `json:"staff_name"`
	Date             string  `json:"date"`
	CheckIn          *string `json:"check_in"`
	CheckOut         *string `json:"check_out"`
	Category         string  `json:"category"`
	State            string  `json:"state"`
	Note             string  `json:"note,omitempty"`
	TaskList         string  `json:"task_list,omitempty"`
	NonWorkdayReason string  `json:"nonworkday_reason,omitempty"`
	Overtime         bool    `json:"overtime"`
	Wage             WageDTO `json:"wage"`
	Version          int     `json:"version"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

// TodayDTO tells a client what the next scan will need.
type TodayDTO struct {
	Email             string     `json:"email"`
	Date              string     `json:"date"`
	DayKind           string     `json:"day_kind"`
	HolidayLabel      string     `json:"holiday_label,omitempty"`
	State             string     `json:"state"`
	CanClockIn        bool       `json:"can_clock_in"`
	CanClockOut       bool       `json:"can_clock_out"`
	NonWorkdayReasons []string   `json:"nonworkday_reasons,omitempty"`
	EarlyLeaveHour    int        `json:"early_leave_hour"`
	Record            *RecordDTO `json:"record,omitempty"`
}

type StaffDTO struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

type HolidayDTO struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Label string `json:"label"`
}

type ReportRowDTO struct {
	Staff        StaffDTO   `json:"staff"`
	Date         string     `json:"date"`
	Status       string     `json:"status"`
	HolidayLabel string     `json:"holiday_label,omitempty"`
	Record       *RecordDTO `json:"record,omitempty"`
	Wage         *WageDTO   `json:"wage,omitempty"`
}

type StaffSummaryDTO struct {
	Staff        StaffDTO       `json:"staff"`
	Counts       map[string]int `json:"counts"`
	PayableHours string         `json:"payable_hours"`
	Wage         string         `json:"wage"`
}

type ReportResponse struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	Rows    []ReportRowDTO    `json:"rows"`
	Summary []StaffSummaryDTO `json:"summary,omitempty"`
}

// StaleCheckInsResponse lists CHECKED_IN records from past days.
type StaleCheckInsResponse struct {
	CheckedAt string      `json:"checked_at"`
	Records   []RecordDTO `json:"records"`
}

// ScenarioDTO describes a loadable demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`

	RemainingMinutes *int     `json:"remaining_minutes,omitempty"`
	AllowedReasons   []string `json:"allowed_reasons,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toWageDTO(w attendance.WageResult) WageDTO {
	h, m := w.HoursMinutes()
	return WageDTO{
		RawHours:     w.RawHours.StringFixed(2),
		PayableHours: w.PayableHours.StringFixed(2),
		Wage:         w.Wage.String(),
		Hours:        h,
		Minutes:      m,
		BelowMinimum: w.BelowMinimum,
	}
}

func toRecordDTO(r *attendance.Record, loc *time.Location) *RecordDTO {
	if r == nil {
		return nil
	}
	dto := &RecordDTO{
		ID:               r.ID,
		StaffEmail:       r.StaffEmail,
		StaffName:        r.StaffName,
		Date:             r.Date.String(),
		CheckIn:          formatTime(r.CheckIn, loc),
		CheckOut:         formatTime(r.CheckOut, loc),
		Category:         string(r.Category),
		State:            string(r.State()),
		Note:             r.Note,
		TaskList:         r.TaskList,
		NonWorkdayReason: r.NonWorkdayReason,
		Overtime:         r.Overtime,
		Wage:             toWageDTO(r.Wage),
		Version:          r.Version,
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.In(loc).Format(time.RFC3339)
	}
	return dto
}

func toStaffDTO(s attendance.StaffMember) StaffDTO {
	return StaffDTO{Email: s.Email, Name: s.Name, Role: s.Role}
}

func toHolidayDTO(h attendance.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Label: h.Label}
}

func toReportRows(rows []attendance.StatusRow, loc *time.Location) []ReportRowDTO {
	out := make([]ReportRowDTO, len(rows))
	for i, r := range rows {
		out[i] = ReportRowDTO{
			Staff:        toStaffDTO(r.Staff),
			Date:         r.Date.String(),
			Status:       string(r.Status),
			HolidayLabel: r.HolidayLabel,
			Record:       toRecordDTO(r.Record, loc),
		}
		if r.Status == attendance.StatusPresent {
			w := toWageDTO(r.Wage)
			out[i].Wage = &w
		}
	}
	return out
}

func toSummaryDTOs(sums []attendance.StaffSummary) []StaffSummaryDTO {
	out := make([]StaffSummaryDTO, len(sums))
	for i, s := range sums {
		counts := make(map[string]int, len(s.Counts))
		for st, n := range s.Counts {
			counts[string(st)] = n
		}
		out[i] = StaffSummaryDTO{
			Staff:        toStaffDTO(s.Staff),
			Counts:       counts,
			PayableHours: s.PayableHours.StringFixed(2),
			Wage:         s.Wage.String(),
		}
	}
	return out
}

func toStaleDTO(checkedAt time.Time, recs []attendance.Record, loc *time.Location) StaleCheckInsResponse {
	out := StaleCheckInsResponse{
		CheckedAt: checkedAt.In(loc).Format(time.RFC3339),
		Records:   make([]RecordDTO, len(recs)),
	}
	for i := range recs {
		out.Records[i] = *toRecordDTO(&recs[i], loc)
	}
	return out
}

func formatTime(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(time.RFC3339)
	return &s
}
