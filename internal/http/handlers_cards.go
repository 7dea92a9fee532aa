package http

import (
	"net/http"

	"financy/internal/core"
	"financy/internal/installment"
	"financy/internal/log"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.ListCards(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cards == nil {
		cards = []core.CreditCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var c core.CreditCard
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	c.Name = sanitizeInput(c.Name)
	if err := c.Validate(); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	created, err := s.store.CreateCard(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCardInvoice(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := s.installments.CardInvoice(r.Context(), r.PathValue("id"), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCardLimit(w http.ResponseWriter, r *http.Request) {
	usage, err := s.installments.CardUsedLimit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleCreateInstallment(w http.ResponseWriter, r *http.Request) {
	var p core.InstallmentPurchase
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	p.Description = sanitizeInput(p.Description)
	p.ConfirmedInstallments = 0
	if err := p.Validate(); err != nil {
		writeError(w, r, invalid(err))
		return
	}
	created, err := s.installments.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type scheduleResponse struct {
	PurchaseID string               `json:"purchase_id"`
	Parcels    []installment.Parcel `json:"parcels"`
	Total      core.Money           `json:"total"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	parcels, err := s.installments.Schedule(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{PurchaseID: r.PathValue("id"), Parcels: parcels, Total: installment.Sum(parcels)})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	parcels, err := s.installments.Pending(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if parcels == nil {
		parcels = []installment.Parcel{}
	}
	writeJSON(w, http.StatusOK, scheduleResponse{PurchaseID: r.PathValue("id"), Parcels: parcels, Total: installment.Sum(parcels)})
}

// handleConfirmNext confirms the earliest pending parcel; 409 when none is left.
func (s *Server) handleConfirmNext(w http.ResponseWriter, r *http.Request) {
	conf, err := s.installments.ConfirmNext(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogParcelConfirmed(r.Context(), conf.Purchase.ID, conf.Parcel.Number, conf.Parcel.Amount.Cents)
	writeJSON(w, http.StatusOK, conf)
}
