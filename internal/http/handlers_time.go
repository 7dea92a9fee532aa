package http

import (
	"net/http"

	"financy/internal/core"
)

// handleTimeDay summarises ?date=YYYY-MM-DD, today by default.
func (s *Server) handleTimeDay(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := s.timesheet.Day(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleSaveTimeEntry(w http.ResponseWriter, r *http.Request) {
	var e core.TimeEntry
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, r, err)
		return
	}
	if err := e.Validate(); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	day, err := s.timesheet.Save(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleTimeWeek(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r, "date", s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := s.timesheet.Week(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, week)
}
