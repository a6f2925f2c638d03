package recurrence

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Frequency is the calendar unit by which a recurring event's start date
// steps to produce subsequent occurrence dates.
type Frequency int

const (
	Daily Frequency = iota + 1
	Weekly
	Monthly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Valid reports whether f is one of the supported units.
func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly || f == Monthly
}

// ParseFrequency accepts both the iCalendar names (DAILY, WEEKLY, MONTHLY)
// and the plural unit names (DAYS, WEEKS, MONTHS), case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAILY", "DAYS", "DAY":
		return Daily, nil
	case "WEEKLY", "WEEKS", "WEEK":
		return Weekly, nil
	case "MONTHLY", "MONTHS", "MONTH":
		return Monthly, nil
	}
	return 0, fmt.Errorf("unsupported frequency %q", s)
}

// Step moves d forward by n units of f (backward for negative n).
//
// Monthly steps are always taken from d itself, so a Jan 31 start gives
// Feb 28/29, Mar 31, Apr 30 rather than drifting to the 28th.
// An invalid frequency returns d unchanged.
func (f Frequency) Step(d civil.Date, n int64) civil.Date {
	switch f {
	case Daily:
		return d.AddDays(int(n))
	case Weekly:
		return d.AddDays(int(n * 7))
	case Monthly:
		return addMonths(d, n)
	default:
		return d
	}
}

// Between counts the whole units of f from a to b, truncated toward zero.
// It is negative when b precedes a. For every n, Between(a, Step(a, n)) == n.
func (f Frequency) Between(a, b civil.Date) int64 {
	switch f {
	case Daily:
		return int64(b.DaysSince(a))
	case Weekly:
		return int64(b.DaysSince(a)) / 7
	case Monthly:
		return monthsBetween(a, b)
	default:
		return 0
	}
}

func prolepticMonth(d civil.Date) int64 {
	return int64(d.Year)*12 + int64(d.Month-1)
}

func addMonths(d civil.Date, n int64) civil.Date {
	if n == 0 {
		return d
	}
	pm := prolepticMonth(d) + n
	year := floorDiv(pm, 12)
	month := time.Month(pm-year*12) + 1

	day := d.Day
	if last := daysIn(int(year), month); day > last {
		day = last
	}
	return civil.Date{Year: int(year), Month: month, Day: day}
}

func monthsBetween(a, b civil.Date) int64 {
	n := prolepticMonth(b) - prolepticMonth(a)
	switch {
	case n > 0 && addMonths(a, n).After(b):
		n--
	case n < 0 && addMonths(a, n).Before(b):
		n++
	}
	return n
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
