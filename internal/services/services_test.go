package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"financy/internal/amqp"
	"financy/internal/cache"
	"financy/internal/core"
	"financy/internal/repo"
	"financy/internal/repo/memory"
	"financy/internal/worktime"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ParcelConfirmedMessage
	err  error
}

func (p *recordingPublisher) PublishParcelConfirmed(_ context.Context, msg *amqp.ParcelConfirmedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func money(c int64) core.Money { return core.Money{Cents: c} }

func TestDashboardMonthSummary(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	acc, _ := store.CreateAccount(ctx, core.Account{Name: "Nubank", Balance: money(100000)})
	txs := []core.Transaction{
		{Type: core.Income, Amount: money(500000), AccountID: acc.ID, Date: core.NewDate(2025, 3, 5)},
		{Type: core.Expense, Amount: money(120000), AccountID: acc.ID, Date: core.NewDate(2025, 3, 10)},
		// unlinked: counts in savings, not in balance
		{Type: core.Expense, Amount: money(30000), Date: core.NewDate(2025, 3, 12)},
		// earlier month: counts in balance, not in march totals
		{Type: core.Income, Amount: money(10000), AccountID: acc.ID, Date: core.NewDate(2025, 2, 1)},
		// pending: ignored everywhere
		{Type: core.Expense, Amount: money(99900), AccountID: acc.ID, Date: core.NewDate(2025, 3, 20), Status: core.StatusPending},
	}
	for _, tx := range txs {
		if _, err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}
	store.CreateBill(ctx, core.Bill{Description: "Aluguel", Amount: money(600000), DueDate: core.NewDate(2025, 3, 30)})
	store.CreateBill(ctx, core.Bill{Description: "Luz", Amount: money(15000), DueDate: core.NewDate(2025, 3, 15), Status: core.BillPaid})

	svc := NewDashboardService(store, cache.NewLRUCache[MonthSummary](10, time.Minute))
	sum, err := svc.MonthSummary(ctx, core.Period{Year: 2025, Month: 3})
	if err != nil {
		t.Fatalf("MonthSummary: %v", err)
	}

	// 1000 + 5000 - 1200 + 100
	if sum.TotalBalance.Cents != 490000 {
		t.Errorf("TotalBalance = %d, want 490000", sum.TotalBalance.Cents)
	}
	if len(sum.Accounts) != 1 || sum.Accounts[0].Current.Cents != 490000 {
		t.Errorf("Accounts = %+v", sum.Accounts)
	}
	want := struct{ income, expenses, savings int64 }{500000, 150000, 350000}
	if sum.Totals.Income.Cents != want.income || sum.Totals.Expenses.Cents != want.expenses || sum.Totals.Savings.Cents != want.savings {
		t.Errorf("Totals = %+v", sum.Totals)
	}
	if sum.Totals.SavingsRate != 70 {
		t.Errorf("SavingsRate = %d, want 70", sum.Totals.SavingsRate)
	}
	if sum.PendingBills.Cents != 600000 || sum.PendingBillCount != 1 {
		t.Errorf("PendingBills = %d (%d)", sum.PendingBills.Cents, sum.PendingBillCount)
	}
	if sum.ProjectedBalance.Cents != -110000 {
		t.Errorf("ProjectedBalance = %d, want -110000", sum.ProjectedBalance.Cents)
	}

	// cached until invalidated
	store.CreateTransaction(ctx, core.Transaction{Type: core.Income, Amount: money(100), AccountID: acc.ID, Date: core.NewDate(2025, 3, 1)})
	again, _ := svc.MonthSummary(ctx, core.Period{Year: 2025, Month: 3})
	if again.TotalBalance != sum.TotalBalance {
		t.Fatalf("expected cached summary")
	}
	if st := svc.CacheStats(); st.Hits != 1 {
		t.Fatalf("CacheStats = %+v, want 1 hit", st)
	}
	svc.Invalidate()
	fresh, _ := svc.MonthSummary(ctx, core.Period{Year: 2025, Month: 3})
	if fresh.TotalBalance.Cents != 490100 {
		t.Fatalf("TotalBalance after invalidate = %d, want 490100", fresh.TotalBalance.Cents)
	}

	if _, err := svc.MonthSummary(ctx, core.Period{Year: 2025, Month: 13}); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func newInstallmentFixture(t *testing.T) (*memory.Store, core.CreditCard, core.InstallmentPurchase) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	card, err := store.CreateCard(ctx, core.CreditCard{Name: "Visa", ClosingDay: 10, DueDay: 17, Limit: money(500000)})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	svc := NewInstallmentService(store, nil, nil)
	// after closing day: first parcel is billed in April
	p, err := svc.Create(ctx, core.InstallmentPurchase{
		CardID:            card.ID,
		Description:       "Notebook",
		TotalInstallments: 3,
		TotalAmount:       money(100000),
		PurchaseDate:      core.NewDate(2025, 3, 15),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return store, card, p
}

func TestInstallmentCreateDerivesInstallmentAmount(t *testing.T) {
	_, _, p := newInstallmentFixture(t)
	if p.InstallmentAmount.Cents != 33333 {
		t.Fatalf("InstallmentAmount = %d, want 33333", p.InstallmentAmount.Cents)
	}
}

func TestInstallmentCreateUnknownCard(t *testing.T) {
	svc := NewInstallmentService(memory.New(), nil, nil)
	_, err := svc.Create(context.Background(), core.InstallmentPurchase{CardID: "x", Description: "y", TotalInstallments: 1, TotalAmount: money(1), PurchaseDate: core.NewDate(2025, 1, 1)})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInstallmentCreateRejectsInconsistentAmounts(t *testing.T) {
	tests := []struct {
		name        string
		total       int64
		n           int
		installment int64
		wantErr     error
	}{
		{"derived share", 100000, 3, 0, nil},
		{"explicit matching share", 100000, 3, 33333, nil},
		{"share above total split", 100000, 3, 50000, core.ErrInvalidAmount},
		{"share below total split", 100000, 3, 100, core.ErrInvalidAmount},
		{"rounded share overshoots total", 50, 100, 0, core.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			card, _ := store.CreateCard(ctx, core.CreditCard{Name: "Visa", ClosingDay: 10, DueDay: 17})
			svc := NewInstallmentService(store, nil, nil)

			_, err := svc.Create(ctx, core.InstallmentPurchase{
				CardID:            card.ID,
				Description:       "TV",
				TotalAmount:       money(tt.total),
				TotalInstallments: tt.n,
				InstallmentAmount: money(tt.installment),
				PurchaseDate:      core.NewDate(2025, 3, 5),
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create error = %v, want %v", err, tt.wantErr)
			}
			stored, _ := store.ListPurchasesByCard(ctx, card.ID)
			if tt.wantErr != nil && len(stored) != 0 {
				t.Fatalf("rejected purchase was stored: %+v", stored)
			}
			if tt.wantErr == nil {
				parcels, err := svc.Schedule(ctx, stored[0].ID)
				if err != nil {
					t.Fatalf("Schedule: %v", err)
				}
				var sum int64
				for _, p := range parcels {
					sum += p.Amount.Cents
				}
				if sum != tt.total {
					t.Fatalf("schedule sums to %d, want %d", sum, tt.total)
				}
			}
		})
	}
}

func TestInstallmentConfirmNextInvalidExpenseChangesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	card, _ := store.CreateCard(ctx, core.CreditCard{Name: "Visa", ClosingDay: 10, DueDay: 17})
	// stored directly: the last parcel works out to 0.01 - 0.50
	p, err := store.CreatePurchase(ctx, core.InstallmentPurchase{
		CardID:            card.ID,
		Description:       "Chiclete",
		TotalAmount:       money(50),
		TotalInstallments: 100,
		InstallmentAmount: money(1),
		PurchaseDate:      core.NewDate(2025, 3, 5),
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	svc := NewInstallmentService(store, pub, inv)

	var lastErr error
	for i := 0; i < 100 && lastErr == nil; i++ {
		_, lastErr = svc.ConfirmNext(ctx, p.ID)
	}
	if !errors.Is(lastErr, core.ErrInvalidAmount) {
		t.Fatalf("last ConfirmNext error = %v, want ErrInvalidAmount", lastErr)
	}

	got, _ := store.GetPurchase(ctx, p.ID)
	txs, _ := store.ListTransactions(ctx, repo.TransactionFilter{})
	if got.ConfirmedInstallments != 99 || len(txs) != 99 {
		t.Fatalf("confirmed=%d transactions=%d, want 99 and 99", got.ConfirmedInstallments, len(txs))
	}
	if inv.n != 99 || len(pub.msgs) != 99 {
		t.Fatalf("invalidations=%d published=%d, want 99 and 99", inv.n, len(pub.msgs))
	}
}

// rejectingStore fails every parcel confirmation at the storage layer.
type rejectingStore struct {
	*memory.Store
	err error
}

func (s rejectingStore) ConfirmParcel(context.Context, string, core.Transaction) (core.InstallmentPurchase, core.Transaction, error) {
	return core.InstallmentPurchase{}, core.Transaction{}, s.err
}

func TestInstallmentConfirmNextStoreFailure(t *testing.T) {
	ctx := context.Background()
	store, _, p := newInstallmentFixture(t)
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	storeErr := errors.New("disk full")
	svc := NewInstallmentService(rejectingStore{Store: store, err: storeErr}, pub, inv)

	if _, err := svc.ConfirmNext(ctx, p.ID); !errors.Is(err, storeErr) {
		t.Fatalf("ConfirmNext error = %v, want %v", err, storeErr)
	}
	if inv.n != 0 || len(pub.msgs) != 0 {
		t.Fatalf("failed confirmation invalidated %d times and published %d messages", inv.n, len(pub.msgs))
	}
	got, _ := store.GetPurchase(ctx, p.ID)
	if got.ConfirmedInstallments != 0 {
		t.Fatalf("ConfirmedInstallments = %d, want 0", got.ConfirmedInstallments)
	}
}

func TestInstallmentScheduleAndInvoice(t *testing.T) {
	ctx := context.Background()
	store, card, p := newInstallmentFixture(t)
	svc := NewInstallmentService(store, nil, nil)

	parcels, err := svc.Schedule(ctx, p.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(parcels) != 3 || parcels[0].BillingMonth.Month() != 4 || parcels[2].Amount.Cents != 33334 {
		t.Fatalf("unexpected schedule: %+v", parcels)
	}

	inv, err := svc.CardInvoice(ctx, card.ID, core.Period{Year: 2025, Month: 5})
	if err != nil {
		t.Fatalf("CardInvoice: %v", err)
	}
	if len(inv.Lines) != 1 || inv.Lines[0].Parcel.Number != 2 || inv.Total.Cents != 33333 {
		t.Fatalf("unexpected invoice: %+v", inv)
	}
	if inv.Label != "Mai/2025" || !inv.DueDate.Equal(core.NewDate(2025, 5, 17)) {
		t.Fatalf("unexpected invoice header: %s %v", inv.Label, inv.DueDate)
	}

	empty, _ := svc.CardInvoice(ctx, card.ID, core.Period{Year: 2025, Month: 3})
	if len(empty.Lines) != 0 || !empty.Total.IsZero() {
		t.Fatalf("march invoice should be empty: %+v", empty)
	}

	usage, err := svc.CardUsedLimit(ctx, card.ID)
	if err != nil || usage.Used.Cents != 100000 || usage.Available.Cents != 400000 {
		t.Fatalf("CardUsedLimit = %+v, %v", usage, err)
	}
}

func TestInstallmentConfirmNext(t *testing.T) {
	ctx := context.Background()
	store, card, p := newInstallmentFixture(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	inv := &countingInvalidator{}
	svc := NewInstallmentService(store, pub, inv)

	conf, err := svc.ConfirmNext(ctx, p.ID)
	if err != nil {
		t.Fatalf("ConfirmNext: %v", err)
	}
	if conf.Parcel.Number != 1 || conf.Purchase.ConfirmedInstallments != 1 {
		t.Fatalf("unexpected confirmation: %+v", conf)
	}
	if conf.Transaction.Type != core.Expense || conf.Transaction.Amount.Cents != 33333 ||
		!conf.Transaction.Date.Equal(core.NewDate(2025, 4, 17)) || conf.Transaction.AccountID != "" {
		t.Fatalf("unexpected transaction: %+v", conf.Transaction)
	}
	if conf.Transaction.Description != "Notebook (1/3)" {
		t.Fatalf("Description = %q", conf.Transaction.Description)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].ParcelNumber != 1 || pub.msgs[0].TransactionID != conf.Transaction.ID {
		t.Fatalf("unexpected published messages: %+v", pub.msgs)
	}
	if inv.n == 0 {
		t.Fatalf("expected cache invalidation")
	}

	pending, _ := svc.Pending(ctx, p.ID)
	if len(pending) != 2 || pending[0].Number != 2 {
		t.Fatalf("Pending = %+v", pending)
	}

	svc.ConfirmNext(ctx, p.ID)
	last, err := svc.ConfirmNext(ctx, p.ID)
	if err != nil || last.Parcel.Amount.Cents != 33334 {
		t.Fatalf("last parcel = %+v, %v", last.Parcel, err)
	}
	if _, err := svc.ConfirmNext(ctx, p.ID); !errors.Is(err, repo.ErrAllConfirmed) {
		t.Fatalf("expected ErrAllConfirmed, got %v", err)
	}

	usage, _ := svc.CardUsedLimit(ctx, card.ID)
	if !usage.Used.IsZero() {
		t.Fatalf("expected no used limit, got %d", usage.Used.Cents)
	}

	txs, _ := store.ListTransactions(ctx, repo.TransactionFilter{})
	var total int64
	for _, tx := range txs {
		total += tx.Amount.Cents
	}
	if total != 100000 {
		t.Fatalf("confirmed parcels sum to %d, want 100000", total)
	}
}

func TestInstallmentConfirmDue(t *testing.T) {
	ctx := context.Background()
	store, _, p := newInstallmentFixture(t)
	svc := NewInstallmentService(store, nil, nil)

	// april 17 and may 17 are due by may 20; june 17 is not
	n, err := svc.ConfirmDue(ctx, core.NewDate(2025, 5, 20))
	if err != nil || n != 2 {
		t.Fatalf("ConfirmDue = %d, %v; want 2", n, err)
	}
	got, _ := store.GetPurchase(ctx, p.ID)
	if got.ConfirmedInstallments != 2 {
		t.Fatalf("ConfirmedInstallments = %d, want 2", got.ConfirmedInstallments)
	}
	// idempotent for the same day
	if n, _ := svc.ConfirmDue(ctx, core.NewDate(2025, 5, 20)); n != 0 {
		t.Fatalf("second ConfirmDue = %d, want 0", n)
	}
}

func TestTimesheetService(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewTimesheetService(store, 0)

	day, err := svc.Save(ctx, core.TimeEntry{Date: core.NewDate(2025, 3, 10), ClockIn: "09:00", LunchStart: "12:00", LunchEnd: "13:00", ClockOut: "18:30"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if day.WorkedMinutes != 510 || day.Balance != "+30min" || day.Entry.ExpectedHours != 8 {
		t.Fatalf("unexpected day: %+v", day)
	}
	if _, err := svc.Save(ctx, core.TimeEntry{Date: core.NewDate(2025, 3, 11), ClockIn: "9h"}); !errors.Is(err, worktime.ErrInvalidClock) {
		t.Fatalf("expected ErrInvalidClock, got %v", err)
	}
	svc.Save(ctx, core.TimeEntry{Date: core.NewDate(2025, 3, 12), ClockIn: "08:00", ClockOut: "14:00", ExpectedHours: 6})

	missing, err := svc.Day(ctx, core.NewDate(2025, 3, 13))
	if err != nil || missing.BalanceMinutes != -480 {
		t.Fatalf("missing day = %+v, %v", missing, err)
	}

	week, err := svc.Week(ctx, core.NewDate(2025, 3, 14))
	if err != nil {
		t.Fatalf("Week: %v", err)
	}
	if week.Number != 11 || len(week.Days) != 2 || week.WorkedMinutes != 870 || week.BalanceMinutes != 30 {
		t.Fatalf("unexpected week: %+v", week)
	}

	empty, _ := svc.Week(ctx, core.NewDate(2025, 1, 1))
	if empty.Days == nil || len(empty.Days) != 0 {
		t.Fatalf("expected empty day list, got %+v", empty.Days)
	}
}
