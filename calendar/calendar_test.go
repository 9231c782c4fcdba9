package calendar_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhr/leave-engine/calendar"
)

// =============================================================================
// BUSINESS-DAY COUNTING
// =============================================================================

func TestBusinessDaysBetween_FullWeek(t *testing.T) {
	// GIVEN: Monday through Friday of the same week
	// THEN: 5 business days
	mon := calendar.NewDate(2024, time.March, 4)
	fri := calendar.NewDate(2024, time.March, 8)

	n, err := calendar.BusinessDaysBetween(mon, fri, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestBusinessDaysBetween_WeekendOnly(t *testing.T) {
	sat := calendar.NewDate(2024, time.March, 9)
	sun := calendar.NewDate(2024, time.March, 10)

	n, err := calendar.BusinessDaysBetween(sat, sun, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBusinessDaysBetween_SpansWeekend(t *testing.T) {
	// Friday through Monday: Friday and Monday count, Sat/Sun don't
	fri := calendar.NewDate(2024, time.March, 8)
	mon := calendar.NewDate(2024, time.March, 11)

	n, err := calendar.BusinessDaysBetween(fri, mon, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBusinessDaysBetween_SingleDay(t *testing.T) {
	wed := calendar.NewDate(2024, time.March, 6)

	n, err := calendar.BusinessDaysBetween(wed, wed, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBusinessDaysBetween_EndBeforeStart(t *testing.T) {
	start := calendar.NewDate(2024, time.March, 8)
	end := calendar.NewDate(2024, time.March, 4)

	_, err := calendar.BusinessDaysBetween(start, end, nil)
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)

	var rangeErr *calendar.RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, start, rangeErr.Start)
	assert.Equal(t, end, rangeErr.End)
}

func TestBusinessDaysBetween_BlackoutExcluded(t *testing.T) {
	// GIVEN: Wednesday is a company holiday
	// WHEN: counting Monday-Friday
	// THEN: 4 business days
	mon := calendar.NewDate(2024, time.March, 4)
	fri := calendar.NewDate(2024, time.March, 8)
	blackout := calendar.NewBlackoutSet(calendar.NewDate(2024, time.March, 6))

	n, err := calendar.BusinessDaysBetween(mon, fri, blackout)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestBusinessDaysBetween_BlackoutOnWeekendIgnored(t *testing.T) {
	mon := calendar.NewDate(2024, time.March, 4)
	nextMon := calendar.NewDate(2024, time.March, 11)
	blackout := calendar.NewBlackoutSet(calendar.NewDate(2024, time.March, 9)) // Saturday

	n, err := calendar.BusinessDaysBetween(mon, nextMon, blackout)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

// =============================================================================
// HALF-DAY ADJUSTMENT
// =============================================================================

func TestApplyHalfDayAdjustment(t *testing.T) {
	tests := []struct {
		name      string
		days      float64
		startHalf bool
		endHalf   bool
		want      string
	}{
		{"no flags", 5, false, false, "5"},
		{"start half", 5, true, false, "4.5"},
		{"end half", 5, false, true, "4.5"},
		{"both halves", 5, true, true, "4"},
		{"floor clamp", 0.5, true, false, "0"},
		{"single day both halves is zero", 1, true, true, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.ApplyHalfDayAdjustment(decimal.NewFromFloat(tt.days), tt.startHalf, tt.endHalf)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestRequestDays_HalfDaysAtBoundaries(t *testing.T) {
	// Monday-Friday with half days on both ends: 5 - 0.5 - 0.5 = 4
	mon := calendar.NewDate(2024, time.March, 4)
	fri := calendar.NewDate(2024, time.March, 8)

	days, err := calendar.RequestDays(mon, fri, true, true, nil)
	require.NoError(t, err)
	assert.True(t, days.Equal(decimal.NewFromInt(4)), "got %s", days)
}

func TestRequestDays_SingleDayDoubleHalf(t *testing.T) {
	// A one-day request with both half-day flags resolves to zero days.
	wed := calendar.NewDate(2024, time.March, 6)

	days, err := calendar.RequestDays(wed, wed, true, true, nil)
	require.NoError(t, err)
	assert.True(t, days.IsZero(), "got %s", days)
}

// =============================================================================
// DATE HELPERS
// =============================================================================

func TestEndOfMonth(t *testing.T) {
	assert.Equal(t, 29, calendar.EndOfMonth(2024, time.February).Day()) // leap year
	assert.Equal(t, 28, calendar.EndOfMonth(2023, time.February).Day())
	assert.Equal(t, 31, calendar.EndOfMonth(2024, time.January).Day())
	assert.Equal(t, 30, calendar.DaysInMonth(2024, time.April))
}

func TestParseDate(t *testing.T) {
	d, err := calendar.ParseDate("2024-03-06")
	require.NoError(t, err)
	assert.Equal(t, calendar.NewDate(2024, time.March, 6), d)

	_, err = calendar.ParseDate("06/03/2024")
	assert.Error(t, err)
}

func TestDaysUntil(t *testing.T) {
	a := calendar.NewDate(2024, time.January, 1)
	b := calendar.NewDate(2024, time.January, 15)
	assert.Equal(t, 14, a.DaysUntil(b))
	assert.Equal(t, -14, b.DaysUntil(a))
}
