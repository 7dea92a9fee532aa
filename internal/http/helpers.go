package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"financy/internal/core"
	"financy/internal/installment"
	"financy/internal/log"
	"financy/internal/repo"
	"financy/internal/worktime"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed input; it maps to 400.
var errBadRequest = errors.New("bad request")

// validationError wraps an error returned by a Validate method; it maps to 422.
type validationError struct{ err error }

func (e validationError) Error() string { return e.err.Error() }
func (e validationError) Unwrap() error { return e.err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return validationError{err: err}
}

var unprocessable = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrInvalidStatus,
	core.ErrEmptyName,
	core.ErrEmptyDescription,
	core.ErrMissingCard,
	core.ErrInvalidInstallment,
	core.ErrInvalidHours,
	installment.ErrInvalidRule,
	worktime.ErrInvalidClock,
}

func statusFor(err error) int {
	var ve validationError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrAllConfirmed):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err to a status. Internal errors are logged and their
// message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		op := log.OpRead
		if r.Method == http.MethodPost {
			op = log.OpCreate
		}
		fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"))
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, fields)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// parsePeriod reads year and month from the query, defaulting each to the
// current one. Non-numeric values are bad requests; out of range ones are
// rejected later by Period.Valid.
func parsePeriod(r *http.Request, now time.Time) (core.Period, error) {
	p := core.Period{Year: now.Year(), Month: int(now.Month())}
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: year %q", errBadRequest, v)
		}
		p.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: month %q", errBadRequest, v)
		}
		p.Month = m
	}
	if !p.Valid() {
		return core.Period{}, core.ErrInvalidMonth
	}
	return p, nil
}

// parseDateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func parseDateParam(r *http.Request, key string, now time.Time) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s %q", errBadRequest, key, v)
	}
	return d, nil
}

// sanitizeInput trims s and removes control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
