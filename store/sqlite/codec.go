package sqlite

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
)

// Column encodings: dates as "2006-01-02", timestamps as RFC3339, day
// quantities as decimal strings. Never floats.

func encodeDate(d calendar.Date) string { return d.String() }

func decodeDate(s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, nil
	}
	return calendar.ParseDate(s)
}

func encodeDateNull(d calendar.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func encodeTimeNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return encodeTime(t)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func encodeDays(d leave.Days) string { return d.Value.String() }

func decodeDays(s string) (leave.Days, error) {
	if s == "" {
		return leave.ZeroDays(), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return leave.Days{}, fmt.Errorf("decode days %q: %w", s, err)
	}
	return leave.DaysFromDecimal(v), nil
}
