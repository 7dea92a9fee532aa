package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"financy/internal/core"
	"financy/internal/repo"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements repo.Store on a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ repo.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	a.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, balance_cents, color) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.Balance.Cents, a.Color)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account saved to SQLite", "id", a.ID, "name", a.Name, "balance_cents", a.Balance.Cents)
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, balance_cents, color FROM accounts WHERE id = ?`, id)
	var a core.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Balance.Cents, &a.Color); err != nil {
		return core.Account{}, notFound("get account", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, balance_cents, color FROM accounts ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance.Cents, &a.Color); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.Status == "" {
		t.Status = core.StatusConfirmed
	}
	if t.AccountID != "" {
		if _, err := r.GetAccount(ctx, t.AccountID); err != nil {
			return core.Transaction{}, fmt.Errorf("account %s: %w", t.AccountID, err)
		}
	}
	t.ID = uuid.NewString()
	account := sql.NullString{String: t.AccountID, Valid: t.AccountID != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, type, amount_cents, account_id, date, status, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.Amount.Cents, account, t.Date.String(), string(t.Status), t.Description)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"account_id", t.AccountID,
		"date", t.Date.String())
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f repo.TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsEmpty() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsEmpty() {
		where = append(where, "date < ?")
		args = append(args, f.To.String())
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT id, type, amount_cents, account_id, date, status, description FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			account sql.NullString
			date    string
		)
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount.Cents, &account, &date, &t.Status, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.AccountID = account.String
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	c.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credit_cards (id, name, closing_day, due_day, limit_cents) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.ClosingDay, c.DueDay, c.Limit.Cents)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("create card: %w", err)
	}

	slog.InfoContext(ctx, "Credit card saved to SQLite", "id", c.ID, "name", c.Name)
	return c, nil
}

const cardColumns = `id, name, closing_day, due_day, limit_cents`

func scanCard(s interface{ Scan(...any) error }) (core.CreditCard, error) {
	var c core.CreditCard
	err := s.Scan(&c.ID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Limit.Cents)
	return c, err
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id string) (core.CreditCard, error) {
	c, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = ?`, id))
	if err != nil {
		return core.CreditCard{}, notFound("get card", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM credit_cards ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const purchaseColumns = `id, card_id, description, installment_amount_cents, total_installments,
	total_amount_cents, purchase_date, confirmed_installments`

func scanPurchase(s interface{ Scan(...any) error }) (core.InstallmentPurchase, error) {
	var (
		p    core.InstallmentPurchase
		date string
	)
	if err := s.Scan(&p.ID, &p.CardID, &p.Description, &p.InstallmentAmount.Cents, &p.TotalInstallments,
		&p.TotalAmount.Cents, &date, &p.ConfirmedInstallments); err != nil {
		return p, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return p, fmt.Errorf("purchase %s: %w", p.ID, err)
	}
	p.PurchaseDate = d
	return p, nil
}

func (r *SQLiteRepository) CreatePurchase(ctx context.Context, p core.InstallmentPurchase) (core.InstallmentPurchase, error) {
	if err := p.Validate(); err != nil {
		return core.InstallmentPurchase{}, err
	}
	if _, err := r.GetCard(ctx, p.CardID); err != nil {
		return core.InstallmentPurchase{}, fmt.Errorf("card %s: %w", p.CardID, err)
	}
	p.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO installment_purchases (`+purchaseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CardID, p.Description, p.InstallmentAmount.Cents, p.TotalInstallments,
		p.TotalAmount.Cents, p.PurchaseDate.String(), p.ConfirmedInstallments)
	if err != nil {
		return core.InstallmentPurchase{}, fmt.Errorf("create purchase: %w", err)
	}

	slog.InfoContext(ctx, "Installment purchase saved to SQLite",
		"id", p.ID,
		"card_id", p.CardID,
		"total_installments", p.TotalInstallments,
		"total_amount_cents", p.TotalAmount.Cents)
	return p, nil
}

func (r *SQLiteRepository) GetPurchase(ctx context.Context, id string) (core.InstallmentPurchase, error) {
	p, err := scanPurchase(r.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM installment_purchases WHERE id = ?`, id))
	if err != nil {
		return core.InstallmentPurchase{}, notFound("get purchase", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPurchasesByCard(ctx context.Context, cardID string) ([]core.InstallmentPurchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+purchaseColumns+` FROM installment_purchases WHERE card_id = ? ORDER BY purchase_date, rowid`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []core.InstallmentPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ConfirmParcel(ctx context.Context, id string, expense core.Transaction) (core.InstallmentPurchase, core.Transaction, error) {
	if err := expense.Validate(); err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, err
	}
	if expense.Status == "" {
		expense.Status = core.StatusConfirmed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPurchase(tx.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM installment_purchases WHERE id = ?`, id))
	if err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, notFound("get purchase", err)
	}
	if p.ConfirmedInstallments >= p.TotalInstallments {
		return p, core.Transaction{}, repo.ErrAllConfirmed
	}
	if expense.AccountID != "" {
		var found string
		err := tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = ?`, expense.AccountID).Scan(&found)
		if err != nil {
			return core.InstallmentPurchase{}, core.Transaction{}, fmt.Errorf("account %s: %w", expense.AccountID, notFound("get account", err))
		}
	}

	expense.ID = uuid.NewString()
	account := sql.NullString{String: expense.AccountID, Valid: expense.AccountID != ""}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, type, amount_cents, account_id, date, status, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, string(expense.Type), expense.Amount.Cents, account, expense.Date.String(), string(expense.Status), expense.Description); err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE installment_purchases SET confirmed_installments = confirmed_installments + 1 WHERE id = ?`, id); err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, fmt.Errorf("increment confirmed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.InstallmentPurchase{}, core.Transaction{}, fmt.Errorf("commit: %w", err)
	}
	p.ConfirmedInstallments++

	slog.InfoContext(ctx, "Installment confirmed",
		"purchase_id", id,
		"confirmed", p.ConfirmedInstallments,
		"transaction_id", expense.ID)
	return p, expense, nil
}

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if b.Status == "" {
		b.Status = core.BillPending
	}
	b.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bills (id, description, amount_cents, due_date, status) VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Description, b.Amount.Cents, b.DueDate.String(), string(b.Status))
	if err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}

	slog.InfoContext(ctx, "Bill saved to SQLite", "id", b.ID, "amount_cents", b.Amount.Cents, "due_date", b.DueDate.String())
	return b, nil
}

func (r *SQLiteRepository) ListBills(ctx context.Context, status core.BillStatus) ([]core.Bill, error) {
	query := `SELECT id, description, amount_cents, due_date, status FROM bills`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY due_date, rowid`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		var (
			b   core.Bill
			due string
		)
		if err := rows.Scan(&b.ID, &b.Description, &b.Amount.Cents, &due, &b.Status); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		if b.DueDate, err = core.ParseDate(due); err != nil {
			return nil, fmt.Errorf("bill %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertTimeEntry(ctx context.Context, e core.TimeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO time_entries (date, clock_in, lunch_start, lunch_end, clock_out, expected_hours)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		   clock_in = excluded.clock_in,
		   lunch_start = excluded.lunch_start,
		   lunch_end = excluded.lunch_end,
		   clock_out = excluded.clock_out,
		   expected_hours = excluded.expected_hours`,
		e.Date.String(), e.ClockIn, e.LunchStart, e.LunchEnd, e.ClockOut, e.ExpectedHours)
	if err != nil {
		return fmt.Errorf("upsert time entry: %w", err)
	}
	return nil
}

const entryColumns = `date, clock_in, lunch_start, lunch_end, clock_out, expected_hours`

func scanEntry(s interface{ Scan(...any) error }) (core.TimeEntry, error) {
	var (
		e    core.TimeEntry
		date string
	)
	if err := s.Scan(&date, &e.ClockIn, &e.LunchStart, &e.LunchEnd, &e.ClockOut, &e.ExpectedHours); err != nil {
		return e, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return e, fmt.Errorf("time entry: %w", err)
	}
	e.Date = d
	return e, nil
}

func (r *SQLiteRepository) GetTimeEntry(ctx context.Context, date core.Date) (core.TimeEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE date = ?`, date.String()))
	if err != nil {
		return core.TimeEntry{}, notFound("get time entry", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListTimeEntries(ctx context.Context, from, to core.Date) ([]core.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE date >= ? AND date < ? ORDER BY date`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var out []core.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// notFound maps sql.ErrNoRows to repo.ErrNotFound.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
