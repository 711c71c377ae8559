package types

import (
	"fmt"
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
)

// LocalDate is a calendar date with no time-of-day and no time zone attached.
// It is used for account-local anniversary math where the zone is supplied
// separately by the account's timezone context.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

func NewLocalDate(year int, month time.Month, day int) LocalDate {
	return LocalDate{Year: year, Month: month, Day: day}
}

// LocalDateFromTime extracts the calendar date of t in t's own location
func LocalDateFromTime(t time.Time) LocalDate {
	y, m, d := t.Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

// ParseLocalDate parses a date in ISO format, e.g. 2015-09-01
func ParseLocalDate(s string) (LocalDate, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return LocalDate{}, ierr.WithError(err).
			WithHint("Date must be in YYYY-MM-DD format").
			Mark(ierr.ErrValidation)
	}
	return LocalDateFromTime(t), nil
}

func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d LocalDate) Equal(other LocalDate) bool {
	return d == other
}

func (d LocalDate) Before(other LocalDate) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// AddDate returns the date shifted by the given number of calendar units,
// normalised the same way time.Time.AddDate normalises overflow.
func (d LocalDate) AddDate(years, months, days int) LocalDate {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return LocalDateFromTime(t.AddDate(years, months, days))
}

// MidnightIn returns the instant at which this calendar date starts in loc
func (d LocalDate) MidnightIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}
