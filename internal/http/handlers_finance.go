package http

import (
	"fmt"
	"net/http"
	"strings"

	"financy/internal/core"
	"financy/internal/log"
	"financy/internal/repo"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.dashboard.MonthSummary(r.Context(), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Month summary served",
		log.NewFields().WithPeriod(period.Year, period.Month).ToSlice()...)
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var a core.Account
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	a.Name = sanitizeInput(a.Name)
	a.Color = sanitizeInput(a.Color)
	if err := a.Validate(); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	created, err := s.store.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dashboard.Invalidate()
	writeJSON(w, http.StatusCreated, created)
}

// parseTransactionFilter reads optional from, to and status query values.
func parseTransactionFilter(r *http.Request) (repo.TransactionFilter, error) {
	var f repo.TransactionFilter
	q := r.URL.Query()
	for key, dst := range map[string]*core.Date{"from": &f.From, "to": &f.To} {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("%w: %s %q", errBadRequest, key, v)
		}
		*dst = d
	}
	switch status := core.TransactionStatus(strings.TrimSpace(q.Get("status"))); status {
	case "", core.StatusPending, core.StatusConfirmed:
		f.Status = status
	default:
		return f, core.ErrInvalidStatus
	}
	return f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := s.store.ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, r, err)
		return
	}
	t.Description = sanitizeInput(t.Description)
	if err := t.Validate(); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	created, err := s.store.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dashboard.Invalidate()
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	status := core.BillStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", core.BillPending, core.BillPaid:
	default:
		writeError(w, r, core.ErrInvalidStatus)
		return
	}
	bills, err := s.store.ListBills(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bills == nil {
		bills = []core.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var b core.Bill
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, r, err)
		return
	}
	b.Description = sanitizeInput(b.Description)
	if err := b.Validate(); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	created, err := s.store.CreateBill(r.Context(), b)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.dashboard.Invalidate()
	writeJSON(w, http.StatusCreated, created)
}
