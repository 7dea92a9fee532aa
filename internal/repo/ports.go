package repo

import (
	"context"
	"errors"

	"financy/internal/core"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAllConfirmed is returned when a purchase has no pending parcel left.
	ErrAllConfirmed = errors.New("all installments already confirmed")
)

// TransactionFilter narrows ListTransactions. Zero dates mean unbounded,
// an empty Status matches every status. To is exclusive.
type TransactionFilter struct {
	From   core.Date
	To     core.Date
	Status core.TransactionStatus
}

// Match reports whether t passes the filter.
func (f TransactionFilter) Match(t core.Transaction) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.From.IsEmpty() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsEmpty() && !t.Date.Before(f.To) {
		return false
	}
	return true
}

// Ports for the persistence layer.
type (
	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		GetAccount(ctx context.Context, id string) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	CardStore interface {
		CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
		GetCard(ctx context.Context, id string) (core.CreditCard, error)
		ListCards(ctx context.Context) ([]core.CreditCard, error)
	}

	InstallmentStore interface {
		CreatePurchase(ctx context.Context, p core.InstallmentPurchase) (core.InstallmentPurchase, error)
		GetPurchase(ctx context.Context, id string) (core.InstallmentPurchase, error)
		ListPurchasesByCard(ctx context.Context, cardID string) ([]core.InstallmentPurchase, error)
		// ConfirmParcel records expense and bumps ConfirmedInstallments by
		// one as a single write: either both happen or neither does. It
		// fails with ErrAllConfirmed when nothing is left to confirm.
		ConfirmParcel(ctx context.Context, id string, expense core.Transaction) (core.InstallmentPurchase, core.Transaction, error)
	}

	BillStore interface {
		CreateBill(ctx context.Context, b core.Bill) (core.Bill, error)
		// ListBills returns bills with the given status, or all bills when
		// status is empty.
		ListBills(ctx context.Context, status core.BillStatus) ([]core.Bill, error)
	}

	TimeEntryStore interface {
		UpsertTimeEntry(ctx context.Context, e core.TimeEntry) error
		GetTimeEntry(ctx context.Context, date core.Date) (core.TimeEntry, error)
		// ListTimeEntries returns entries with from <= date < to, ordered by date.
		ListTimeEntries(ctx context.Context, from, to core.Date) ([]core.TimeEntry, error)
	}

	// Store is everything a backend provides.
	Store interface {
		AccountStore
		TransactionStore
		CardStore
		InstallmentStore
		BillStore
		TimeEntryStore
		Close() error
	}
)
