package sheets

import (
	"context"
	"fmt"

	"financy/internal/core"
)

// ParcelRecord is one confirmed installment parcel as exported to a sheet.
type ParcelRecord struct {
	PurchaseID        string
	CardID            string
	Description       string
	ParcelNumber      int
	TotalInstallments int
	Amount            core.Money
	BillingMonth      core.Date
	DueDate           core.Date
}

// Key identifies a parcel across redeliveries.
func (r ParcelRecord) Key() string {
	return fmt.Sprintf("%s/%d", r.PurchaseID, r.ParcelNumber)
}

// Ports for outbound adapters.
type (
	ParcelWriter interface {
		// AppendParcel writes r once. Writing a record whose Key already
		// exists is a no-op that returns the existing reference.
		AppendParcel(ctx context.Context, r ParcelRecord) (rowRef string, err error)
	}
)
