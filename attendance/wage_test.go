package attendance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/presence-engine/attendance"
)

func TestWageCalculator_Compute(t *testing.T) {
	calc := attendance.NewWageCalculator(attendance.DefaultPolicy())
	in := at(tuesday, 8, 0)

	tests := []struct {
		name         string
		worked       time.Duration
		raw          string
		payable      string
		wage         string
		belowMinimum bool
	}{
		{"nine hours capped", 9 * time.Hour, "9", "8", "200000", false},
		{"exactly the cap", 8 * time.Hour, "8", "8", "200000", false},
		{"half hour", 7*time.Hour + 30*time.Minute, "7.5", "7.5", "187500", false},
		{"wage truncated", 7*time.Hour + 20*time.Minute, "7.3333333333333333", "7.3333333333333333", "183333", false},
		{"exactly the minimum", 4 * time.Hour, "4", "4", "100000", false},
		{"below minimum", 3*time.Hour + 59*time.Minute, "3.9833333333333333", "3.9833333333333333", "99583", true},
		{"zero", 0, "0", "0", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := calc.Compute(in, in.Add(tt.worked))
			assert.False(t, res.Invalid)
			assertDecimal(t, tt.raw, res.RawHours)
			assertDecimal(t, tt.payable, res.PayableHours)
			assertDecimal(t, tt.wage, res.Wage)
			assert.Equal(t, tt.belowMinimum, res.BelowMinimum)
			assert.Equal(t, tt.worked, res.Duration)
		})
	}
}

func TestWageCalculator_WholeProductsNotUnderpaid(t *testing.T) {
	// GIVEN: A rate where a repeating hour figure times the rate is whole
	policy := attendance.DefaultPolicy()
	policy.HourlyRate = decimal.NewFromInt(30000)
	calc := attendance.NewWageCalculator(policy)
	in := at(tuesday, 8, 0)

	tests := []struct {
		worked time.Duration
		wage   string
	}{
		{4*time.Hour + 20*time.Minute, "130000"},
		{5*time.Hour + 20*time.Minute, "160000"},
		{7*time.Hour + 40*time.Minute, "230000"},
		{2*time.Hour + 40*time.Minute, "80000"},
	}
	for _, tt := range tests {
		t.Run(tt.worked.String(), func(t *testing.T) {
			res := calc.Compute(in, in.Add(tt.worked))
			assertDecimal(t, tt.wage, res.Wage)
		})
	}
}

func TestWageCalculator_MatchesExactFloor(t *testing.T) {
	// Wage equals floor(payable seconds * rate / 3600) for every second of a
	// ten-hour span, at rates with and without repeating hourly fractions.
	in := at(tuesday, 6, 0)
	for _, rate := range []int64{25000, 30000, 17} {
		policy := attendance.DefaultPolicy()
		policy.HourlyRate = decimal.NewFromInt(rate)
		calc := attendance.NewWageCalculator(policy)

		for s := int64(0); s <= 10*3600; s++ {
			payable := min(s, int64(policy.MaxPayableHours)*3600)
			want := payable * rate / 3600
			res := calc.Compute(in, in.Add(time.Duration(s)*time.Second))
			require.True(t, res.Wage.Equal(decimal.NewFromInt(want)), "rate %d second %d: got %s want %d", rate, s, res.Wage, want)
		}
	}
}

func TestWageCalculator_NegativeInterval(t *testing.T) {
	calc := attendance.NewWageCalculator(attendance.DefaultPolicy())
	in, out := at(tuesday, 17, 0), at(tuesday, 8, 0)

	res := calc.Compute(in, out)
	assert.True(t, res.Invalid)
	assert.True(t, res.Wage.IsZero())
	assert.True(t, res.PayableHours.IsZero())

	_, err := calc.ComputeValidated(in, out)
	require.ErrorIs(t, err, attendance.ErrInvalidInterval)
	var ii *attendance.InvalidIntervalError
	require.ErrorAs(t, err, &ii)
	assert.True(t, ii.CheckIn.Equal(in))
}

func TestWageCalculator_Bounds(t *testing.T) {
	// Payable hours never exceed the cap and wages are never negative,
	// across every minute of a 14-hour span.
	calc := attendance.NewWageCalculator(attendance.DefaultPolicy())
	in := at(tuesday, 6, 0)
	maxPayable := decimal.NewFromInt(8)
	maxWage := maxPayable.Mul(calc.HourlyRate)

	for m := 0; m <= 14*60; m++ {
		res := calc.Compute(in, in.Add(time.Duration(m)*time.Minute))
		require.True(t, res.PayableHours.LessThanOrEqual(maxPayable), "minute %d", m)
		require.True(t, res.PayableHours.LessThanOrEqual(res.RawHours), "minute %d", m)
		require.False(t, res.Wage.IsNegative(), "minute %d", m)
		require.True(t, res.Wage.LessThanOrEqual(maxWage), "minute %d", m)
		require.True(t, res.Wage.Equal(res.Wage.Floor()), "minute %d", m)
	}
}

func TestWageCalculator_ForRecord(t *testing.T) {
	calc := attendance.NewWageCalculator(attendance.DefaultPolicy())
	in, out := at(tuesday, 8, 0), at(tuesday, 12, 0)

	normal := attendance.Record{Category: attendance.CategoryNormal, CheckIn: &in, CheckOut: &out}
	assertDecimal(t, "100000", calc.ForRecord(normal).Wage)

	leave := attendance.Record{Category: attendance.CategoryLeave, CheckIn: &in, CheckOut: &out}
	assert.True(t, calc.ForRecord(leave).Wage.IsZero())

	open := attendance.Record{Category: attendance.CategoryNormal, CheckIn: &in}
	assert.True(t, calc.ForRecord(open).Wage.IsZero())
}

func TestWageResult_HoursMinutes(t *testing.T) {
	calc := attendance.NewWageCalculator(attendance.DefaultPolicy())
	res := calc.Compute(at(tuesday, 8, 0), at(tuesday, 17, 15))
	h, m := res.HoursMinutes()
	assert.Equal(t, 9, h)
	assert.Equal(t, 15, m)
}
