package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"

	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
)

// DefaultExpectedHours is the daily target used when a time entry does not set one.
const DefaultExpectedHours = 8.0

type (
	TransactionType   string
	TransactionStatus string
	BillStatus        string

	Money struct {
		Cents int64
	}

	Account struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Balance Money  `json:"balance"` // starting balance
		Color   string `json:"color,omitempty"`
	}

	// Transaction is one income or expense leg. An empty AccountID means the
	// transaction is not linked to any account.
	Transaction struct {
		ID          string            `json:"id,omitempty"`
		Type        TransactionType   `json:"type"`
		Amount      Money             `json:"amount"`
		AccountID   string            `json:"account_id,omitempty"`
		Date        Date              `json:"date"`
		Status      TransactionStatus `json:"status,omitempty"`
		Description string            `json:"description,omitempty"`
	}

	CreditCard struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		ClosingDay int    `json:"closing_day"`
		DueDay     int    `json:"due_day"`
		Limit      Money  `json:"limit"`
	}

	// InstallmentPurchase is a parcelled purchase made on a credit card.
	// Parcels are never stored; they are derived from this record and the card.
	InstallmentPurchase struct {
		ID                    string `json:"id"`
		CardID                string `json:"card_id"`
		Description           string `json:"description"`
		InstallmentAmount     Money  `json:"installment_amount"`
		TotalInstallments     int    `json:"total_installments"`
		TotalAmount           Money  `json:"total_amount"`
		PurchaseDate          Date   `json:"purchase_date"`
		ConfirmedInstallments int    `json:"confirmed_installments"`
	}

	Bill struct {
		ID          string     `json:"id"`
		Description string     `json:"description"`
		Amount      Money      `json:"amount"`
		DueDate     Date       `json:"due_date"`
		Status      BillStatus `json:"status"`
	}

	// TimeEntry holds one day of clock records as "HH:MM[:SS]" strings.
	// Empty strings mean the mark was not recorded.
	TimeEntry struct {
		Date          Date    `json:"date"`
		ClockIn       string  `json:"clock_in,omitempty"`
		LunchStart    string  `json:"lunch_start,omitempty"`
		LunchEnd      string  `json:"lunch_end,omitempty"`
		ClockOut      string  `json:"clock_out,omitempty"`
		ExpectedHours float64 `json:"expected_hours"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrMissingCard        = errors.New("missing card id")
	ErrInvalidInstallment = errors.New("invalid installment count")
	ErrInvalidHours       = errors.New("invalid expected hours")
)

// ValidDay reports whether d is a usable day-of-month setting.
func ValidDay(d int) bool {
	return d >= 1 && d <= 31
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	switch t.Status {
	case "", StatusPending, StatusConfirmed:
	default:
		return ErrInvalidStatus
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !ValidDay(c.ClosingDay) {
		return fmt.Errorf("closing day: %w", ErrInvalidDay)
	}
	if !ValidDay(c.DueDay) {
		return fmt.Errorf("due day: %w", ErrInvalidDay)
	}
	if c.Limit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p InstallmentPurchase) Validate() error {
	if strings.TrimSpace(p.CardID) == "" {
		return ErrMissingCard
	}
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	if p.TotalInstallments < 1 {
		return ErrInvalidInstallment
	}
	if p.TotalAmount.Cents <= 0 || p.InstallmentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if p.ConfirmedInstallments < 0 || p.ConfirmedInstallments > p.TotalInstallments {
		return fmt.Errorf("confirmed installments %d out of range: %w", p.ConfirmedInstallments, ErrInvalidInstallment)
	}
	return p.PurchaseDate.Validate()
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Description) == "" {
		return ErrEmptyDescription
	}
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	switch b.Status {
	case "", BillPending, BillPaid:
	default:
		return ErrInvalidStatus
	}
	return b.DueDate.Validate()
}

func (e TimeEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.ExpectedHours < 0 || e.ExpectedHours > 24 {
		return ErrInvalidHours
	}
	return nil
}
