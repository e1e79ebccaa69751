package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WAGE CALCULATOR - Pure (check-in, check-out) -> hours and wage
// =============================================================================

var secondsPerHour = decimal.NewFromInt(3600)

// WageResult is the derived pay of a completed interval. Invalid is set when
// check-out precedes check-in; every amount is then zero.
type WageResult struct {
	Duration     time.Duration
	RawHours     decimal.Decimal
	PayableHours decimal.Decimal
	Wage         decimal.Decimal
	BelowMinimum bool
	Invalid      bool
}

// ZeroWage is the derived pay of LEAVE/SICK records and open intervals.
func ZeroWage() WageResult {
	return WageResult{RawHours: decimal.Zero, PayableHours: decimal.Zero, Wage: decimal.Zero}
}

// WageCalculator holds the subset of policy the arithmetic depends on.
type WageCalculator struct {
	MinWorkHours    int
	MaxPayableHours int
	HourlyRate      decimal.Decimal
}

func NewWageCalculator(p PolicyConfig) WageCalculator {
	return WageCalculator{
		MinWorkHours:    p.MinWorkHours,
		MaxPayableHours: p.MaxPayableHours,
		HourlyRate:      p.HourlyRate,
	}
}

// Compute returns raw and capped payable hours and the truncated wage.
// It is safe on data that bypassed the state machine: a negative interval
// yields a result with Invalid set instead of a negative wage.
func (c WageCalculator) Compute(checkIn, checkOut time.Time) WageResult {
	elapsed := checkOut.Sub(checkIn)
	if elapsed < 0 {
		res := ZeroWage()
		res.Invalid = true
		return res
	}

	seconds := int64(elapsed / time.Second)
	payableSeconds := min(seconds, int64(c.MaxPayableHours)*3600)

	// Multiply before dividing: the hour figures are rounded to 16 places and
	// flooring their product can lose a whole unit.
	wage := decimal.NewFromInt(payableSeconds).Mul(c.HourlyRate).Div(secondsPerHour).Floor()

	return WageResult{
		Duration:     elapsed,
		RawHours:     decimal.NewFromInt(seconds).Div(secondsPerHour),
		PayableHours: decimal.NewFromInt(payableSeconds).Div(secondsPerHour),
		Wage:         wage,
		BelowMinimum: elapsed < time.Duration(c.MinWorkHours)*time.Hour,
	}
}

// ComputeValidated is Compute with a negative interval reported as
// *InvalidIntervalError.
func (c WageCalculator) ComputeValidated(checkIn, checkOut time.Time) (WageResult, error) {
	res := c.Compute(checkIn, checkOut)
	if res.Invalid {
		return res, &InvalidIntervalError{CheckIn: checkIn, CheckOut: checkOut}
	}
	return res, nil
}

// ForRecord derives the pay of a stored record.
func (c WageCalculator) ForRecord(r Record) WageResult {
	if r.Category.IsAbsence() || r.CheckIn == nil || r.CheckOut == nil {
		return ZeroWage()
	}
	return c.Compute(*r.CheckIn, *r.CheckOut)
}

// Hours and minutes of the worked duration, for display.
func (w WageResult) HoursMinutes() (int, int) {
	total := int(w.Duration / time.Minute)
	return total / 60, total % 60
}
