/*
Package calendar provides pure date arithmetic for the leave engine.

PURPOSE:
  Everything here is a pure function over civil dates: business-day
  counting, half-day adjustment, month boundaries. No state, no clock
  reads, no locale handling beyond the Mon-Fri workweek.

KEY CONCEPTS:
  - Date: a civil day (UTC midnight), the only time granularity the
    core reasons about
  - BlackoutSet: dates excluded from business-day counts (company
    holidays, supplied externally)

DESIGN PRINCIPLES:
  1. Purity: callers pass every input, including "today"
  2. Precision: fractional days use decimal.Decimal, never float
  3. Half-day granularity: all day quantities are multiples of 0.5

SEE ALSO:
  - leave/workflow.go: computes request durations with these functions
  - leave/accrual.go: uses month boundaries for proration
*/
package calendar

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE - Civil day
// =============================================================================

// Date is a civil day. The zero value is the zero time.
type Date struct {
	t time.Time
}

// NewDate returns the Date for the given year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its civil day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Today returns the current civil day.
func Today() Date {
	return DateOf(time.Now())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date  { return Date{t: d.t.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalText encodes the date as "2006-01-02". Going through the text
// interfaces keeps Date usable as a JSON map key.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysUntil returns the number of calendar days from d to other (negative
// if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

// Month boundaries
func StartOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func EndOfMonth(year int, month time.Month) Date {
	return NewDate(year, month, 1).AddMonths(1).AddDays(-1)
}

// DaysInMonth returns the number of calendar days in a month.
func DaysInMonth(year int, month time.Month) int {
	return EndOfMonth(year, month).Day()
}

// =============================================================================
// BLACKOUT SET - Externally supplied non-working dates
// =============================================================================

// BlackoutSet is a set of dates excluded from business-day counts,
// typically company holidays. A nil BlackoutSet excludes nothing.
type BlackoutSet map[Date]struct{}

// NewBlackoutSet builds a set from a list of dates.
func NewBlackoutSet(dates ...Date) BlackoutSet {
	s := make(BlackoutSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Contains reports whether the date is blacked out. Safe on nil sets.
func (s BlackoutSet) Contains(d Date) bool {
	if s == nil {
		return false
	}
	_, ok := s[d]
	return ok
}

// =============================================================================
// BUSINESS-DAY COUNTING
// =============================================================================

// BusinessDaysBetween counts the days in [start, end] inclusive that fall
// on Mon-Fri and are not in the blackout set. Returns ErrInvalidRange when
// end is before start.
func BusinessDaysBetween(start, end Date, blackout BlackoutSet) (int, error) {
	if end.Before(start) {
		return 0, &RangeError{Start: start, End: end}
	}

	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if d.IsWeekend() || blackout.Contains(d) {
			continue
		}
		count++
	}
	return count, nil
}

// =============================================================================
// HALF-DAY ADJUSTMENT
// =============================================================================

var halfDay = decimal.NewFromFloat(0.5)

// ApplyHalfDayAdjustment subtracts 0.5 for each half-day flag, clamped at
// zero. A single-day span with both flags set therefore yields 0.
func ApplyHalfDayAdjustment(days decimal.Decimal, startHalf, endHalf bool) decimal.Decimal {
	if startHalf {
		days = days.Sub(halfDay)
	}
	if endHalf {
		days = days.Sub(halfDay)
	}
	if days.IsNegative() {
		return decimal.Zero
	}
	return days
}

// RequestDays computes the duration of a leave request in days: business
// days over [start, end] minus the half-day boundary adjustments.
func RequestDays(start, end Date, startHalf, endHalf bool, blackout BlackoutSet) (decimal.Decimal, error) {
	n, err := BusinessDaysBetween(start, end, blackout)
	if err != nil {
		return decimal.Zero, err
	}
	return ApplyHalfDayAdjustment(decimal.NewFromInt(int64(n)), startHalf, endHalf), nil
}
