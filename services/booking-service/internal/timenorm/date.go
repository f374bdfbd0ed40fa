package timenorm

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, newErr(s, "expected YYYY-MM-DD")
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// AddDays steps by calendar days, independent of any zone's day length.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Date) Before(o Date) bool {
	return d.civil().Before(o.civil())
}

// Weekday is the ISO day of week, Monday=1 .. Sunday=7.
func (d Date) Weekday() int {
	return isoWeekday(d.civil().Weekday())
}

// At returns the instant where the wall clock in loc reads clock on d.
func (d Date) At(clock Clock, loc *time.Location) time.Time {
	h, m, s := clock.parts()
	return time.Date(d.Year, d.Month, d.Day, h, m, s, 0, loc)
}

func (d Date) civil() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}
