package recurrence

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// CalendarDate is a date without time of day or timezone. It is the raw (year, month, day)
// triple of the local calendar. Callers must supply valid dates; arithmetic on an invalid
// date is undefined.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	return CalendarDate{Year: year, Month: month, Day: day}
}

// DateOf returns the wall-clock date of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate parses a YYYY-MM-DD string and rejects days that do not exist in the month.
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d CalendarDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of the date in loc.
func (d CalendarDate) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d CalendarDate) Compare(other CalendarDate) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d CalendarDate) Before(other CalendarDate) bool { return d.Compare(other) < 0 }
func (d CalendarDate) After(other CalendarDate) bool  { return d.Compare(other) > 0 }
func (d CalendarDate) Equal(other CalendarDate) bool  { return d.Compare(other) == 0 }

// AddDays moves the date by n calendar days.
func (d CalendarDate) AddDays(n int) CalendarDate {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// DaysBetween returns the number of calendar days from d to other (negative when other is earlier).
func (d CalendarDate) DaysBetween(other CalendarDate) int {
	return int(other.Time(time.UTC).Sub(d.Time(time.UTC)).Hours() / 24)
}

// AddMonthsClamped shifts the date by n months. When the day does not exist in the target
// month it is clamped to that month's last day (Jan 31 + 1 month = Feb 28 or 29).
func (d CalendarDate) AddMonthsClamped(n int) CalendarDate {
	total := d.Year*12 + int(d.Month) - 1 + n
	year := total / 12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	target := time.Month(month + 1)
	return CalendarDate{Year: year, Month: target, Day: min(d.Day, DaysIn(year, target))}
}

// AddYearsClamped shifts the date by n years; Feb 29 becomes Feb 28 in non-leap years.
func (d CalendarDate) AddYearsClamped(n int) CalendarDate {
	return d.AddMonthsClamped(12 * n)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CalendarDate) UnmarshalText(text []byte) error {
	parsed, err := ParseCalendarDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
