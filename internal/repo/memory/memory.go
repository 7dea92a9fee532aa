package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"financy/internal/core"
	"financy/internal/repo"
)

// Store keeps every record in process memory. It implements repo.Store.
type Store struct {
	mu        sync.Mutex
	accounts  []core.Account
	txs       []core.Transaction
	cards     []core.CreditCard
	purchases []core.InstallmentPurchase
	bills     []core.Bill
	entries   map[string]core.TimeEntry
}

var _ repo.Store = (*Store)(nil)

func New() *Store {
	return &Store{entries: map[string]core.TimeEntry{}}
}

// NewFromFiles seeds accounts from base/seed_accounts.txt. Each line is
// "name;starting balance[;color]"; blank lines and # comments are skipped.
// A missing file yields a single "Carteira" account.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_accounts.txt")) {
		a, err := parseAccountLine(line)
		if err != nil {
			continue
		}
		a.ID = uuid.NewString()
		s.accounts = append(s.accounts, a)
	}
	if len(s.accounts) == 0 {
		s.accounts = []core.Account{{ID: uuid.NewString(), Name: "Carteira"}}
	}
	return s
}

func parseAccountLine(line string) (core.Account, error) {
	parts := strings.Split(line, ";")
	a := core.Account{Name: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		if raw := strings.TrimSpace(parts[1]); raw != "" && raw != "0" {
			cents, err := core.ParseDecimalToCents(raw)
			if err != nil {
				return core.Account{}, fmt.Errorf("seed account %q: %w", a.Name, err)
			}
			a.Balance = core.Money{Cents: cents}
		}
	}
	if len(parts) > 2 {
		a.Color = strings.TrimSpace(parts[2])
	}
	return a, a.Validate()
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = uuid.NewString()
	s.accounts = append(s.accounts, a)
	return a, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, repo.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.accounts), nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.Status == "" {
		t.Status = core.StatusConfirmed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.AccountID != "" && !slices.ContainsFunc(s.accounts, func(a core.Account) bool { return a.ID == t.AccountID }) {
		return core.Transaction{}, fmt.Errorf("account %s: %w", t.AccountID, repo.ErrNotFound)
	}
	t.ID = uuid.NewString()
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, f repo.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) CreateCard(_ context.Context, c core.CreditCard) (core.CreditCard, error) {
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	s.cards = append(s.cards, c)
	return c, nil
}

func (s *Store) GetCard(_ context.Context, id string) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.ID == id {
			return c, nil
		}
	}
	return core.CreditCard{}, repo.ErrNotFound
}

func (s *Store) ListCards(_ context.Context) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cards), nil
}

func (s *Store) CreatePurchase(_ context.Context, p core.InstallmentPurchase) (core.InstallmentPurchase, error) {
	if err := p.Validate(); err != nil {
		return core.InstallmentPurchase{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.ContainsFunc(s.cards, func(c core.CreditCard) bool { return c.ID == p.CardID }) {
		return core.InstallmentPurchase{}, fmt.Errorf("card %s: %w", p.CardID, repo.ErrNotFound)
	}
	p.ID = uuid.NewString()
	s.purchases = append(s.purchases, p)
	return p, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (core.InstallmentPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.ID == id {
			return p, nil
		}
	}
	return core.InstallmentPurchase{}, repo.ErrNotFound
}

func (s *Store) ListPurchasesByCard(_ context.Context, cardID string) ([]core.InstallmentPurchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.InstallmentPurchase
	for _, p := range s.purchases {
		if p.CardID == cardID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ConfirmParcel(_ context.Context, id string, expense core.Transaction) (core.InstallmentPurchase, core.Transaction, error) {
	if err := expense.Validate(); err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, err
	}
	if expense.Status == "" {
		expense.Status = core.StatusConfirmed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.purchases, func(p core.InstallmentPurchase) bool { return p.ID == id })
	if i < 0 {
		return core.InstallmentPurchase{}, core.Transaction{}, repo.ErrNotFound
	}
	p := &s.purchases[i]
	if p.ConfirmedInstallments >= p.TotalInstallments {
		return *p, core.Transaction{}, repo.ErrAllConfirmed
	}
	if expense.AccountID != "" && !slices.ContainsFunc(s.accounts, func(a core.Account) bool { return a.ID == expense.AccountID }) {
		return core.InstallmentPurchase{}, core.Transaction{}, fmt.Errorf("account %s: %w", expense.AccountID, repo.ErrNotFound)
	}
	expense.ID = uuid.NewString()
	s.txs = append(s.txs, expense)
	p.ConfirmedInstallments++
	return *p, expense, nil
}

func (s *Store) CreateBill(_ context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if b.Status == "" {
		b.Status = core.BillPending
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	s.bills = append(s.bills, b)
	return b, nil
}

func (s *Store) ListBills(_ context.Context, status core.BillStatus) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Bill
	for _, b := range s.bills {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) UpsertTimeEntry(_ context.Context, e core.TimeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Date.String()] = e
	return nil
}

func (s *Store) GetTimeEntry(_ context.Context, date core.Date) (core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[date.String()]
	if !ok {
		return core.TimeEntry{}, repo.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListTimeEntries(_ context.Context, from, to core.Date) ([]core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.TimeEntry
	for _, e := range s.entries {
		if e.Date.Before(from) || !e.Date.Before(to) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b core.TimeEntry) int { return a.Date.Compare(b.Date.Time) })
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
