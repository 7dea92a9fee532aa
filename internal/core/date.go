package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/civil"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar date stored at midnight UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day.
// Out of range values normalise the way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	cd, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return FromCivil(cd), nil
}

// FromCivil converts a civil.Date.
func FromCivil(cd civil.Date) Date {
	return NewDate(cd.Year, int(cd.Month), cd.Day)
}

// DateOf drops the clock part of t, keeping its calendar day in t's location.
func DateOf(t time.Time) Date {
	return FromCivil(civil.DateOf(t))
}

// Civil returns the civil.Date for d.
func (d Date) Civil() civil.Date {
	return civil.DateOf(d.Time)
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// AddMonths returns the first day of the month n months after d's month.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.Year(), d.Month()+n, 1)
}

// DaysInMonth returns the number of days in d's month.
func (d Date) DaysInMonth() int {
	return NewDate(d.Year(), d.Month()+1, 0).Day()
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// Equal reports whether d and o are the same calendar day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
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
