package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"financy/internal/core"
	"financy/internal/repo"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	r, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, path
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestRepo(t)
	v, ok, err := SchemaVersion(path)
	if err != nil || !ok || v != 1 {
		t.Fatalf("SchemaVersion = %d, %v, %v; want 1, true, nil", v, ok, err)
	}
	// second run is a no-op
	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations again: %v", err)
	}
}

func TestAccountsAndTransactions(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	acc, err := r.CreateAccount(ctx, core.Account{Name: "Nubank", Balance: core.Money{Cents: 100000}})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	got, err := r.GetAccount(ctx, acc.ID)
	if err != nil || got != acc {
		t.Fatalf("GetAccount = %+v, %v; want %+v", got, err, acc)
	}
	if _, err := r.GetAccount(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	txs := []core.Transaction{
		{Type: core.Income, Amount: core.Money{Cents: 50000}, AccountID: acc.ID, Date: core.NewDate(2025, 3, 5)},
		{Type: core.Expense, Amount: core.Money{Cents: 20000}, Date: core.NewDate(2025, 3, 20), Description: "Mercado"},
		{Type: core.Expense, Amount: core.Money{Cents: 1000}, AccountID: acc.ID, Date: core.NewDate(2025, 3, 21), Status: core.StatusPending},
		{Type: core.Expense, Amount: core.Money{Cents: 3000}, AccountID: acc.ID, Date: core.NewDate(2025, 4, 1)},
	}
	for _, tx := range txs {
		if _, err := r.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}
	if _, err := r.CreateTransaction(ctx, core.Transaction{Type: core.Income, Amount: core.Money{Cents: 1}, AccountID: "nope", Date: core.NewDate(2025, 3, 1)}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}

	march := core.Period{Year: 2025, Month: 3}
	list, err := r.ListTransactions(ctx, repo.TransactionFilter{From: march.Start(), To: march.End(), Status: core.StatusConfirmed})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 confirmed march transactions, got %d", len(list))
	}
	if list[0].AccountID != acc.ID || list[1].AccountID != "" || list[1].Description != "Mercado" {
		t.Fatalf("unexpected transactions: %+v", list)
	}
	if !list[0].Date.Equal(core.NewDate(2025, 3, 5)) {
		t.Fatalf("date not round-tripped: %v", list[0].Date)
	}

	all, _ := r.ListTransactions(ctx, repo.TransactionFilter{})
	if len(all) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(all))
	}
}

func TestPurchasesAndConfirmParcel(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	card, err := r.CreateCard(ctx, core.CreditCard{Name: "Visa", ClosingDay: 10, DueDay: 17, Limit: core.Money{Cents: 500000}})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	cards, _ := r.ListCards(ctx)
	if len(cards) != 1 || cards[0] != card {
		t.Fatalf("ListCards = %+v", cards)
	}

	p, err := r.CreatePurchase(ctx, core.InstallmentPurchase{
		CardID:            card.ID,
		Description:       "Notebook",
		InstallmentAmount: core.Money{Cents: 33333},
		TotalInstallments: 3,
		TotalAmount:       core.Money{Cents: 100000},
		PurchaseDate:      core.NewDate(2025, 3, 15),
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if _, err := r.CreatePurchase(ctx, core.InstallmentPurchase{
		CardID: "nope", Description: "x", TotalInstallments: 1,
		TotalAmount: core.Money{Cents: 1}, PurchaseDate: core.NewDate(2025, 1, 1),
	}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown card, got %v", err)
	}

	// unknown account fails the insert; the counter must not move
	bad := core.Transaction{Type: core.Expense, Amount: core.Money{Cents: 33333}, AccountID: "nope", Date: core.NewDate(2025, 4, 17)}
	if _, _, err := r.ConfirmParcel(ctx, p.ID, bad); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
	if got, _ := r.GetPurchase(ctx, p.ID); got.ConfirmedInstallments != 0 {
		t.Fatalf("ConfirmedInstallments = %d after failed confirm, want 0", got.ConfirmedInstallments)
	}

	expense := core.Transaction{Type: core.Expense, Amount: core.Money{Cents: 33333}, Date: core.NewDate(2025, 4, 17), Description: "Notebook"}
	for want := 1; want <= 3; want++ {
		got, tx, err := r.ConfirmParcel(ctx, p.ID, expense)
		if err != nil || got.ConfirmedInstallments != want || tx.ID == "" {
			t.Fatalf("ConfirmParcel #%d = %d, %+v, %v", want, got.ConfirmedInstallments, tx, err)
		}
	}
	if _, _, err := r.ConfirmParcel(ctx, p.ID, expense); !errors.Is(err, repo.ErrAllConfirmed) {
		t.Fatalf("expected ErrAllConfirmed, got %v", err)
	}
	if txs, _ := r.ListTransactions(ctx, repo.TransactionFilter{}); len(txs) != 3 {
		t.Fatalf("expected 3 parcel transactions, got %d", len(txs))
	}

	list, _ := r.ListPurchasesByCard(ctx, card.ID)
	if len(list) != 1 || list[0].ConfirmedInstallments != 3 || !list[0].PurchaseDate.Equal(p.PurchaseDate) {
		t.Fatalf("ListPurchasesByCard = %+v", list)
	}
}

func TestBillsAndTimeEntries(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRepo(t)

	if _, err := r.CreateBill(ctx, core.Bill{Description: "Luz", Amount: core.Money{Cents: 15000}, DueDate: core.NewDate(2025, 3, 10)}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if _, err := r.CreateBill(ctx, core.Bill{Description: "Net", Amount: core.Money{Cents: 9900}, DueDate: core.NewDate(2025, 3, 5), Status: core.BillPaid}); err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	pending, _ := r.ListBills(ctx, core.BillPending)
	if len(pending) != 1 || pending[0].Description != "Luz" || pending[0].Status != core.BillPending {
		t.Fatalf("pending bills = %+v", pending)
	}
	all, _ := r.ListBills(ctx, "")
	if len(all) != 2 || all[0].Description != "Net" {
		t.Fatalf("bills should be ordered by due date: %+v", all)
	}

	day := core.NewDate(2025, 3, 10)
	e := core.TimeEntry{Date: day, ClockIn: "09:00", LunchStart: "12:00", LunchEnd: "13:00", ClockOut: "18:00", ExpectedHours: 8}
	if err := r.UpsertTimeEntry(ctx, e); err != nil {
		t.Fatalf("UpsertTimeEntry: %v", err)
	}
	e.ClockOut = "18:30"
	if err := r.UpsertTimeEntry(ctx, e); err != nil {
		t.Fatalf("UpsertTimeEntry update: %v", err)
	}
	got, err := r.GetTimeEntry(ctx, day)
	if err != nil || got.ClockOut != "18:30" || !got.Date.Equal(day) {
		t.Fatalf("GetTimeEntry = %+v, %v", got, err)
	}
	if err := r.UpsertTimeEntry(ctx, core.TimeEntry{Date: core.NewDate(2025, 3, 11), ExpectedHours: 6}); err != nil {
		t.Fatalf("UpsertTimeEntry: %v", err)
	}
	week, _ := r.ListTimeEntries(ctx, core.NewDate(2025, 3, 10), core.NewDate(2025, 3, 17))
	if len(week) != 2 || week[1].ExpectedHours != 6 {
		t.Fatalf("ListTimeEntries = %+v", week)
	}
	if _, err := r.GetTimeEntry(ctx, core.NewDate(2024, 1, 1)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
