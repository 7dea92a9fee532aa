package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financy/internal/amqp"
	"financy/internal/core"
	"financy/internal/installment"
	"financy/internal/repo"
)

// Publisher announces confirmed parcels. *amqp.Client implements it.
type Publisher interface {
	PublishParcelConfirmed(ctx context.Context, msg *amqp.ParcelConfirmedMessage) error
}

// Invalidator is notified after writes that change balances.
type Invalidator interface {
	Invalidate()
}

// InstallmentStores is what InstallmentService reads and writes.
type InstallmentStores interface {
	repo.CardStore
	repo.InstallmentStore
	repo.TransactionStore
}

// Invoice lists the parcels a card bills in one month.
type Invoice struct {
	CardID  string        `json:"card_id"`
	Year    int           `json:"year"`
	Month   int           `json:"month"`
	Label   string        `json:"label"`
	DueDate core.Date     `json:"due_date"`
	Lines   []InvoiceLine `json:"lines"`
	Total   core.Money    `json:"total"`
}

type InvoiceLine struct {
	PurchaseID        string             `json:"purchase_id"`
	Description       string             `json:"description"`
	TotalInstallments int                `json:"total_installments"`
	Parcel            installment.Parcel `json:"parcel"`
}

// LimitUsage is a card limit split into committed and free parts.
type LimitUsage struct {
	CardID    string     `json:"card_id"`
	Limit     core.Money `json:"limit"`
	Used      core.Money `json:"used"`
	Available core.Money `json:"available"`
}

// Confirmation is the outcome of ConfirmNext.
type Confirmation struct {
	Purchase    core.InstallmentPurchase `json:"purchase"`
	Parcel      installment.Parcel       `json:"parcel"`
	Transaction core.Transaction         `json:"transaction"`
}

type InstallmentService struct {
	store       InstallmentStores
	publisher   Publisher
	invalidator Invalidator
}

// NewInstallmentService creates the service. publisher and invalidator may be nil.
func NewInstallmentService(store InstallmentStores, publisher Publisher, invalidator Invalidator) *InstallmentService {
	return &InstallmentService{store: store, publisher: publisher, invalidator: invalidator}
}

func (s *InstallmentService) load(ctx context.Context, purchaseID string) (core.InstallmentPurchase, core.CreditCard, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return core.InstallmentPurchase{}, core.CreditCard{}, fmt.Errorf("purchase %s: %w", purchaseID, err)
	}
	card, err := s.store.GetCard(ctx, p.CardID)
	if err != nil {
		return core.InstallmentPurchase{}, core.CreditCard{}, fmt.Errorf("card %s: %w", p.CardID, err)
	}
	return p, card, nil
}

// Create stores a purchase after checking its card exists and the schedule
// can be computed with positive parcels. A zero InstallmentAmount is derived
// from the total; any other value must equal that derived base so the
// schedule sums to the total.
func (s *InstallmentService) Create(ctx context.Context, p core.InstallmentPurchase) (core.InstallmentPurchase, error) {
	card, err := s.store.GetCard(ctx, p.CardID)
	if err != nil {
		return core.InstallmentPurchase{}, fmt.Errorf("card %s: %w", p.CardID, err)
	}
	base := installment.BaseInstallment(p.TotalAmount, p.TotalInstallments)
	switch {
	case p.InstallmentAmount.IsZero():
		p.InstallmentAmount = base
	case p.TotalInstallments >= 1 && p.InstallmentAmount != base:
		return core.InstallmentPurchase{}, fmt.Errorf("installment amount %s, want %s for %d parcels of %s: %w",
			p.InstallmentAmount, base, p.TotalInstallments, p.TotalAmount, core.ErrInvalidAmount)
	}
	parcels, err := installment.Schedule(installment.RuleFor(p, card))
	if err != nil {
		return core.InstallmentPurchase{}, err
	}
	// Rounding the share up can leave the last parcel at or below zero,
	// e.g. 0.50 over 100 parcels.
	if last := parcels[len(parcels)-1]; last.Amount.Cents <= 0 {
		return core.InstallmentPurchase{}, fmt.Errorf("last parcel amount %s must be positive: %w", last.Amount, core.ErrInvalidAmount)
	}
	created, err := s.store.CreatePurchase(ctx, p)
	if err != nil {
		return core.InstallmentPurchase{}, err
	}
	s.invalidate()
	return created, nil
}

// Schedule returns every parcel of the purchase, confirmed or not.
func (s *InstallmentService) Schedule(ctx context.Context, purchaseID string) ([]installment.Parcel, error) {
	p, card, err := s.load(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return installment.Schedule(installment.RuleFor(p, card))
}

// Pending returns the parcels not yet confirmed.
func (s *InstallmentService) Pending(ctx context.Context, purchaseID string) ([]installment.Parcel, error) {
	p, card, err := s.load(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return installment.PendingParcels(p, card)
}

// CardInvoice sums the pending parcels the card bills in period.
func (s *InstallmentService) CardInvoice(ctx context.Context, cardID string, period core.Period) (Invoice, error) {
	if !period.Valid() {
		return Invoice{}, core.ErrInvalidMonth
	}
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return Invoice{}, fmt.Errorf("card %s: %w", cardID, err)
	}
	purchases, err := s.store.ListPurchasesByCard(ctx, cardID)
	if err != nil {
		return Invoice{}, fmt.Errorf("list purchases: %w", err)
	}

	inv := Invoice{
		CardID:  cardID,
		Year:    period.Year,
		Month:   period.Month,
		Label:   installment.FormatBillingMonth(period.Start()),
		DueDate: installment.DueDate(period.Start(), card.DueDay),
		Lines:   []InvoiceLine{},
	}
	for _, p := range purchases {
		pending, err := installment.PendingParcels(p, card)
		if err != nil {
			slog.WarnContext(ctx, "Skipping purchase with invalid schedule", "purchase_id", p.ID, "error", err)
			continue
		}
		for _, parcel := range installment.BilledIn(pending, period) {
			inv.Lines = append(inv.Lines, InvoiceLine{
				PurchaseID:        p.ID,
				Description:       p.Description,
				TotalInstallments: p.TotalInstallments,
				Parcel:            parcel,
			})
			inv.Total = inv.Total.Add(parcel.Amount)
		}
	}
	return inv, nil
}

// CardUsedLimit sums every pending parcel on the card.
func (s *InstallmentService) CardUsedLimit(ctx context.Context, cardID string) (LimitUsage, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return LimitUsage{}, fmt.Errorf("card %s: %w", cardID, err)
	}
	purchases, err := s.store.ListPurchasesByCard(ctx, cardID)
	if err != nil {
		return LimitUsage{}, fmt.Errorf("list purchases: %w", err)
	}
	usage := LimitUsage{CardID: cardID, Limit: card.Limit}
	for _, p := range purchases {
		pending, err := installment.PendingParcels(p, card)
		if err != nil {
			slog.WarnContext(ctx, "Skipping purchase with invalid schedule", "purchase_id", p.ID, "error", err)
			continue
		}
		usage.Used = usage.Used.Add(installment.Sum(pending))
	}
	usage.Available = card.Limit.Sub(usage.Used)
	return usage, nil
}

// ConfirmNext confirms the earliest pending parcel, records it as an
// expense dated on its due date and publishes a ParcelConfirmedMessage.
// The counter and the expense are written together; when the expense is
// rejected nothing changes. Publishing failures are logged, not returned.
func (s *InstallmentService) ConfirmNext(ctx context.Context, purchaseID string) (Confirmation, error) {
	p, card, err := s.load(ctx, purchaseID)
	if err != nil {
		return Confirmation{}, err
	}
	pending, err := installment.PendingParcels(p, card)
	if err != nil {
		return Confirmation{}, err
	}
	if len(pending) == 0 {
		return Confirmation{}, repo.ErrAllConfirmed
	}
	next := pending[0]

	expense := core.Transaction{
		Type:        core.Expense,
		Amount:      next.Amount,
		Date:        next.DueDate,
		Status:      core.StatusConfirmed,
		Description: parcelDescription(p, next.Number),
	}
	if err := expense.Validate(); err != nil {
		return Confirmation{}, fmt.Errorf("parcel %d expense: %w", next.Number, err)
	}

	updated, tx, err := s.store.ConfirmParcel(ctx, purchaseID, expense)
	if err != nil {
		return Confirmation{}, fmt.Errorf("confirm parcel %d: %w", next.Number, err)
	}
	s.invalidate()

	s.publish(ctx, &amqp.ParcelConfirmedMessage{
		PurchaseID:        p.ID,
		CardID:            p.CardID,
		Description:       p.Description,
		ParcelNumber:      next.Number,
		TotalInstallments: p.TotalInstallments,
		Amount:            next.Amount,
		BillingMonth:      next.BillingMonth,
		DueDate:           next.DueDate,
		TransactionID:     tx.ID,
	})

	slog.InfoContext(ctx, "Installment parcel confirmed",
		"purchase_id", p.ID,
		"parcel_number", next.Number,
		"amount_cents", next.Amount.Cents)

	return Confirmation{Purchase: updated, Parcel: next, Transaction: tx}, nil
}

// ConfirmDue confirms, across every card, each pending parcel whose due
// date is on or before today. Failures are logged and skipped. It returns
// the number of parcels confirmed.
func (s *InstallmentService) ConfirmDue(ctx context.Context, today core.Date) (int, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cards: %w", err)
	}

	confirmed := 0
	for _, card := range cards {
		purchases, err := s.store.ListPurchasesByCard(ctx, card.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list purchases", "card_id", card.ID, "error", err)
			continue
		}
		for _, p := range purchases {
			n, err := s.confirmDueParcels(ctx, p, card, today)
			confirmed += n
			if err != nil {
				slog.ErrorContext(ctx, "Failed to confirm due parcels",
					"purchase_id", p.ID,
					"error", err)
			}
		}
	}

	slog.InfoContext(ctx, "Due parcels processed", "confirmed", confirmed, "date", today.String())
	return confirmed, nil
}

func (s *InstallmentService) confirmDueParcels(ctx context.Context, p core.InstallmentPurchase, card core.CreditCard, today core.Date) (int, error) {
	pending, err := installment.PendingParcels(p, card)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, parcel := range pending {
		if today.Before(parcel.DueDate) {
			break
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := s.ConfirmNext(ctx, p.ID); err != nil {
			if errors.Is(err, repo.ErrAllConfirmed) {
				break
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *InstallmentService) publish(ctx context.Context, msg *amqp.ParcelConfirmedMessage) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping parcel message")
		return
	}
	if err := s.publisher.PublishParcelConfirmed(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish parcel confirmed message",
			"purchase_id", msg.PurchaseID,
			"parcel_number", msg.ParcelNumber,
			"error", err)
	}
}

func (s *InstallmentService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
}

func parcelDescription(p core.InstallmentPurchase, number int) string {
	return fmt.Sprintf("%s (%d/%d)", p.Description, number, p.TotalInstallments)
}
