// Package worktime turns daily clock records into worked time and
// overtime balances.
package worktime

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"

	"financy/internal/core"
)

// ErrInvalidClock is returned by ParseClock for malformed marks.
var ErrInvalidClock = errors.New("invalid clock time")

// ParseClock parses "HH:MM" or "HH:MM:SS" into minutes from midnight.
// Seconds are truncated.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ":") == 1 {
		s += ":00"
	}
	ct, err := civil.ParseTime(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidClock, s, err)
	}
	return ct.Hour*60 + ct.Minute, nil
}

// TimeToMinutes is the lenient form of ParseClock: absent or malformed
// values count as 0.
func TimeToMinutes(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return m
}

// WorkedMinutes returns clock-out minus clock-in minus lunch, floored at 0.
// An entry without both clock-in and clock-out is an incomplete day and
// counts 0. Spans crossing midnight are not modelled and also count 0.
func WorkedMinutes(e core.TimeEntry) int {
	if e.ClockIn == "" || e.ClockOut == "" {
		return 0
	}
	worked := TimeToMinutes(e.ClockOut) - TimeToMinutes(e.ClockIn)
	if e.LunchStart != "" && e.LunchEnd != "" {
		start, end := TimeToMinutes(e.LunchStart), TimeToMinutes(e.LunchEnd)
		if end > start {
			worked -= end - start
		}
	}
	return max(worked, 0)
}

// ExpectedMinutes converts a daily hour target to whole minutes.
func ExpectedMinutes(expectedHours float64) int {
	return int(math.Round(expectedHours * 60))
}

// BalanceMinutes is worked minus expected. Positive means overtime.
func BalanceMinutes(worked int, expectedHours float64) int {
	return worked - ExpectedMinutes(expectedHours)
}

// MinutesToString formats the magnitude of m as "Xh Ymin", "Xh" or "Ymin".
func MinutesToString(m int) string {
	if m < 0 {
		m = -m
	}
	h, rem := m/60, m%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dmin", rem)
	case rem == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dmin", h, rem)
	}
}

// FormatBalance formats a signed balance; zero is "0h".
func FormatBalance(m int) string {
	switch {
	case m == 0:
		return "0h"
	case m > 0:
		return "+" + MinutesToString(m)
	default:
		return "-" + MinutesToString(m)
	}
}

// WeekNumber returns the ISO-8601 week of d.
func WeekNumber(d core.Date) int {
	_, week := d.ISOWeek()
	return week
}
