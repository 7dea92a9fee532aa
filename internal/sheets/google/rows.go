package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"financy/internal/installment"
	"financy/internal/sheets"
)

// keyColumn holds ParcelRecord.Key for deduplication.
const keyColumn = "H"

// Header is the expected first row of a parcels tab.
var Header = []any{"Vencimento", "Fatura", "Descrição", "Parcela", "Valor", "Cartão", "Compra", "Chave"}

func validateRecord(r sheets.ParcelRecord) error {
	switch {
	case r.PurchaseID == "":
		return errors.New("missing purchase id")
	case r.ParcelNumber < 1 || r.ParcelNumber > r.TotalInstallments:
		return fmt.Errorf("parcel %d out of range 1..%d", r.ParcelNumber, r.TotalInstallments)
	case r.DueDate.IsEmpty() || r.BillingMonth.IsEmpty():
		return errors.New("missing parcel dates")
	}
	return nil
}

// parcelRow lays out a record as columns A..H.
func parcelRow(r sheets.ParcelRecord) []any {
	return []any{
		r.DueDate.String(),
		installment.FormatBillingMonth(r.BillingMonth),
		r.Description,
		fmt.Sprintf("%d/%d", r.ParcelNumber, r.TotalInstallments),
		r.Amount.String(),
		r.CardID,
		r.PurchaseID,
		r.Key(),
	}
}

// findKey returns the 1-based row holding key in a single-column range, or 0.
func findKey(values [][]any, key string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return i + 1
		}
	}
	return 0
}

func rowRef(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, row, keyColumn, row)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
