// Package installment derives the parcel schedule of credit-card purchases.
//
// A card closes its statement on ClosingDay: purchases made up to and
// including that day are billed in the purchase month, later ones roll over
// to the next month. Each parcel is due on DueDay of its billing month,
// clamped to the month length.
package installment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"financy/internal/core"
)

// ErrInvalidRule is returned for rules the schedule cannot be computed for.
var ErrInvalidRule = errors.New("invalid installment rule")

// Rule describes one parcelled purchase together with its card cycle.
type Rule struct {
	InstallmentAmount core.Money
	TotalInstallments int
	TotalAmount       core.Money
	PurchaseDate      core.Date
	ClosingDay        int
	DueDay            int
	StartParcel       int // 1-based; 0 means 1
}

// Parcel is one installment payment.
type Parcel struct {
	Number       int        `json:"parcel_number"`
	BillingMonth core.Date  `json:"billing_month"`
	DueDate      core.Date  `json:"due_date"`
	Amount       core.Money `json:"amount"`
}

// RuleFor builds the rule of a stored purchase on its card.
func RuleFor(p core.InstallmentPurchase, card core.CreditCard) Rule {
	return Rule{
		InstallmentAmount: p.InstallmentAmount,
		TotalInstallments: p.TotalInstallments,
		TotalAmount:       p.TotalAmount,
		PurchaseDate:      p.PurchaseDate,
		ClosingDay:        card.ClosingDay,
		DueDay:            card.DueDay,
		StartParcel:       1,
	}
}

func (r Rule) startParcel() int {
	if r.StartParcel == 0 {
		return 1
	}
	return r.StartParcel
}

// Validate checks the preconditions of Schedule.
func (r Rule) Validate() error {
	switch {
	case r.TotalInstallments < 1:
		return fmt.Errorf("%w: total installments %d < 1", ErrInvalidRule, r.TotalInstallments)
	case r.TotalAmount.Cents <= 0:
		return fmt.Errorf("%w: total amount %s must be positive", ErrInvalidRule, r.TotalAmount)
	case r.InstallmentAmount.Cents < 0:
		return fmt.Errorf("%w: negative installment amount", ErrInvalidRule)
	case !core.ValidDay(r.ClosingDay):
		return fmt.Errorf("%w: closing day %d", ErrInvalidRule, r.ClosingDay)
	case !core.ValidDay(r.DueDay):
		return fmt.Errorf("%w: due day %d", ErrInvalidRule, r.DueDay)
	case r.PurchaseDate.IsEmpty():
		return fmt.Errorf("%w: missing purchase date", ErrInvalidRule)
	}
	if s := r.startParcel(); s < 1 || s > r.TotalInstallments {
		return fmt.Errorf("%w: start parcel %d outside [1, %d]", ErrInvalidRule, s, r.TotalInstallments)
	}
	return nil
}

// FirstBillingMonth returns the first day of the statement month a purchase
// falls in.
func FirstBillingMonth(purchaseDate core.Date, closingDay int) core.Date {
	if purchaseDate.Day() <= closingDay {
		return purchaseDate.MonthStart()
	}
	return purchaseDate.AddMonths(1)
}

// DueDate returns dueDay of billingMonth, clamped to the last day of the month.
func DueDate(billingMonth core.Date, dueDay int) core.Date {
	day := min(dueDay, billingMonth.DaysInMonth())
	return core.NewDate(billingMonth.Year(), billingMonth.Month(), day)
}

// Schedule returns the parcels from StartParcel through the last one.
//
// Every parcel but the last carries TotalAmount/TotalInstallments rounded to
// the cent. The last one carries InstallmentAmount plus the rounding
// remainder, so that with InstallmentAmount equal to the rounded share the
// full schedule sums to TotalAmount exactly.
func Schedule(r Rule) ([]Parcel, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	first := FirstBillingMonth(r.PurchaseDate, r.ClosingDay)
	base := BaseInstallment(r.TotalAmount, r.TotalInstallments).Cents
	roundingDiff := r.TotalAmount.Cents - base*int64(r.TotalInstallments)

	start := r.startParcel()
	parcels := make([]Parcel, 0, r.TotalInstallments-start+1)
	for i := start - 1; i < r.TotalInstallments; i++ {
		billing := first.AddMonths(i)
		amount := core.Money{Cents: base}
		if i == r.TotalInstallments-1 {
			amount = core.Money{Cents: r.InstallmentAmount.Cents + roundingDiff}
		}
		parcels = append(parcels, Parcel{
			Number:       i + 1,
			BillingMonth: billing,
			DueDate:      DueDate(billing, r.DueDay),
			Amount:       amount,
		})
	}
	return parcels, nil
}

// BaseInstallment is total/n rounded half away from zero to the cent.
// n below 1 yields zero.
func BaseInstallment(total core.Money, n int) core.Money {
	if n < 1 {
		return core.Money{}
	}
	base := decimal.NewFromInt(total.Cents).Div(decimal.NewFromInt(int64(n))).Round(0)
	return core.Money{Cents: base.IntPart()}
}

// PendingParcels returns the parcels of p not yet confirmed. A fully confirmed
// purchase has none.
func PendingParcels(p core.InstallmentPurchase, card core.CreditCard) ([]Parcel, error) {
	if p.ConfirmedInstallments >= p.TotalInstallments && p.TotalInstallments >= 1 {
		return nil, nil
	}
	r := RuleFor(p, card)
	r.StartParcel = p.ConfirmedInstallments + 1
	return Schedule(r)
}

// Sum adds up parcel amounts.
func Sum(parcels []Parcel) core.Money {
	var total core.Money
	for _, p := range parcels {
		total = total.Add(p.Amount)
	}
	return total
}

// BilledIn returns the parcels whose billing month is the given period.
func BilledIn(parcels []Parcel, period core.Period) []Parcel {
	var out []Parcel
	for _, p := range parcels {
		if p.BillingMonth.Year() == period.Year && p.BillingMonth.Month() == period.Month {
			out = append(out, p)
		}
	}
	return out
}

var monthAbbrev = [12]string{"Jan", "Fev", "Mar", "Abr", "Mai", "Jun", "Jul", "Ago", "Set", "Out", "Nov", "Dez"}

// FormatBillingMonth renders a billing month as e.g. "Mar/2025".
func FormatBillingMonth(billingMonth core.Date) string {
	return fmt.Sprintf("%s/%d", monthAbbrev[billingMonth.Month()-1], billingMonth.Year())
}
