package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY CONFIG - Process-wide thresholds, loaded once, never mutated
// =============================================================================

// Default declared reasons for working on a weekend or declared holiday.
const (
	ReasonScheduledOvertime = "Scheduled Overtime"
	ReasonCampusEvent       = "Campus Event"
	ReasonShiftSwap         = "Shift Swap"
	ReasonOther             = "Other"
)

// DefaultOvertimeNote is written to the record note when AutoOvertimeNote is
// enabled and a post-cutoff check-out carries no reason of its own.
const DefaultOvertimeNote = "Lembur (Auto)"

type PolicyConfig struct {
	// Location defines "today" and every hour-of-day cutoff.
	Location *time.Location

	Site           Coordinate
	GeofenceRadius float64 // metres

	MinWorkHours    int
	MaxPayableHours int
	LateLimitHour   int // clock-in rejected at or after this hour on workdays
	EarlyLeaveHour  int // clock-out before this hour needs a reason
	OvertimeHour    int // clock-out at or after this hour is overtime

	HourlyRate decimal.Decimal

	// RequireNonWorkdayReason turns the declared reason on weekends and
	// holidays into a hard precondition of ClockIn.
	RequireNonWorkdayReason bool
	NonWorkdayReasons       []string

	AutoOvertimeNote bool
	OvertimeNote     string
}

// DefaultPolicy returns the reference thresholds.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		Location:        time.UTC,
		GeofenceRadius:  500,
		MinWorkHours:    4,
		MaxPayableHours: 8,
		LateLimitHour:   12,
		EarlyLeaveHour:  15,
		OvertimeHour:    18,
		HourlyRate:      decimal.NewFromInt(25000),
		NonWorkdayReasons: []string{
			ReasonScheduledOvertime,
			ReasonCampusEvent,
			ReasonShiftSwap,
			ReasonOther,
		},
		OvertimeNote: DefaultOvertimeNote,
	}
}

var errInvalidPolicy = errors.New("invalid policy")

// Validate rejects configurations the engine cannot apply consistently.
func (p PolicyConfig) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", errInvalidPolicy, fmt.Sprintf(format, args...))
	}
	if p.Location == nil {
		return fail("location is required")
	}
	if p.GeofenceRadius <= 0 {
		return fail("geofence radius must be positive, got %v", p.GeofenceRadius)
	}
	if p.MinWorkHours < 0 {
		return fail("min work hours must not be negative, got %d", p.MinWorkHours)
	}
	if p.MaxPayableHours <= 0 || p.MaxPayableHours < p.MinWorkHours {
		return fail("max payable hours (%d) must be positive and >= min work hours (%d)",
			p.MaxPayableHours, p.MinWorkHours)
	}
	for name, h := range map[string]int{
		"late limit hour":  p.LateLimitHour,
		"early leave hour": p.EarlyLeaveHour,
		"overtime hour":    p.OvertimeHour,
	} {
		if h < 0 || h > 24 {
			return fail("%s must be within 0..24, got %d", name, h)
		}
	}
	if p.EarlyLeaveHour > p.OvertimeHour {
		return fail("early leave hour (%d) must not be after overtime hour (%d)",
			p.EarlyLeaveHour, p.OvertimeHour)
	}
	if !p.HourlyRate.IsPositive() {
		return fail("hourly rate must be positive, got %s", p.HourlyRate)
	}
	if p.RequireNonWorkdayReason && len(p.NonWorkdayReasons) == 0 {
		return fail("non-workday reasons are required when the reason is mandatory")
	}
	return nil
}

// IsDeclaredReason reports whether reason is one of the configured
// non-workday reasons.
func (p PolicyConfig) IsDeclaredReason(reason string) bool {
	for _, r := range p.NonWorkdayReasons {
		if r == reason {
			return true
		}
	}
	return false
}

func (p PolicyConfig) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p PolicyConfig) minWork() time.Duration {
	return time.Duration(p.MinWorkHours) * time.Hour
}
