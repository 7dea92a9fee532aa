package services

import (
	"context"
	"errors"
	"fmt"

	"financy/internal/core"
	"financy/internal/repo"
	"financy/internal/worktime"
)

type TimesheetService struct {
	store         repo.TimeEntryStore
	expectedHours float64
}

// NewTimesheetService creates the service. expectedHours is applied to
// entries saved without a target; zero means core.DefaultExpectedHours.
func NewTimesheetService(store repo.TimeEntryStore, expectedHours float64) *TimesheetService {
	if expectedHours == 0 {
		expectedHours = core.DefaultExpectedHours
	}
	return &TimesheetService{store: store, expectedHours: expectedHours}
}

// Save validates the clock marks and upserts the entry for its date.
func (s *TimesheetService) Save(ctx context.Context, e core.TimeEntry) (worktime.Day, error) {
	marks := []struct{ name, value string }{
		{"clock_in", e.ClockIn},
		{"lunch_start", e.LunchStart},
		{"lunch_end", e.LunchEnd},
		{"clock_out", e.ClockOut},
	}
	for _, m := range marks {
		if m.value == "" {
			continue
		}
		if _, err := worktime.ParseClock(m.value); err != nil {
			return worktime.Day{}, fmt.Errorf("%s: %w", m.name, err)
		}
	}
	if e.ExpectedHours == 0 {
		e.ExpectedHours = s.expectedHours
	}
	if err := s.store.UpsertTimeEntry(ctx, e); err != nil {
		return worktime.Day{}, err
	}
	return worktime.Summarize(e), nil
}

// Day summarises the entry of date. A missing entry yields an empty day
// with the default target, so its balance is the full deficit.
func (s *TimesheetService) Day(ctx context.Context, date core.Date) (worktime.Day, error) {
	e, err := s.store.GetTimeEntry(ctx, date)
	if errors.Is(err, repo.ErrNotFound) {
		e = core.TimeEntry{Date: date, ExpectedHours: s.expectedHours}
	} else if err != nil {
		return worktime.Day{}, err
	}
	return worktime.Summarize(e), nil
}

// Week summarises the recorded days of the ISO week containing date.
func (s *TimesheetService) Week(ctx context.Context, date core.Date) (worktime.Week, error) {
	start := worktime.WeekStart(date)
	end := core.DateOf(start.AddDate(0, 0, 7))
	entries, err := s.store.ListTimeEntries(ctx, start, end)
	if err != nil {
		return worktime.Week{}, fmt.Errorf("list time entries: %w", err)
	}
	w := worktime.SummarizeWeek(date, entries)
	if w.Days == nil {
		w.Days = []worktime.Day{}
	}
	return w, nil
}
