package worktime

import (
	"time"

	"financy/internal/core"
)

// Day is the computed view of one time entry.
type Day struct {
	Entry          core.TimeEntry `json:"entry"`
	WorkedMinutes  int            `json:"worked_minutes"`
	BalanceMinutes int            `json:"balance_minutes"`
	Worked         string         `json:"worked"`
	Balance        string         `json:"balance"`
}

// Week aggregates the days of one ISO week.
type Week struct {
	Year           int       `json:"year"`
	Number         int       `json:"week"`
	Start          core.Date `json:"start"` // Monday
	Days           []Day     `json:"days"`
	WorkedMinutes  int       `json:"worked_minutes"`
	BalanceMinutes int       `json:"balance_minutes"`
	Worked         string    `json:"worked"`
	Balance        string    `json:"balance"`
}

// Summarize computes worked and balance minutes for one entry.
func Summarize(e core.TimeEntry) Day {
	worked := WorkedMinutes(e)
	bal := BalanceMinutes(worked, e.ExpectedHours)
	return Day{
		Entry:          e,
		WorkedMinutes:  worked,
		BalanceMinutes: bal,
		Worked:         MinutesToString(worked),
		Balance:        FormatBalance(bal),
	}
}

// WeekStart returns the Monday of d's ISO week.
func WeekStart(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return core.DateOf(d.Time.AddDate(0, 0, -offset))
}

// SummarizeWeek aggregates entries that fall in the ISO week containing ref.
// Entries outside that week are ignored. Days keep input order.
func SummarizeWeek(ref core.Date, entries []core.TimeEntry) Week {
	year, number := ref.ISOWeek()
	w := Week{Year: year, Number: number, Start: WeekStart(ref)}
	end := w.Start.Time.Add(7 * 24 * time.Hour)
	for _, e := range entries {
		if e.Date.Time.Before(w.Start.Time) || !e.Date.Time.Before(end) {
			continue
		}
		day := Summarize(e)
		w.Days = append(w.Days, day)
		w.WorkedMinutes += day.WorkedMinutes
		w.BalanceMinutes += day.BalanceMinutes
	}
	w.Worked = MinutesToString(w.WorkedMinutes)
	w.Balance = FormatBalance(w.BalanceMinutes)
	return w
}
