package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"financy/internal/core"
)

// ParcelConfirmedMessage announces that one parcel of an installment
// purchase was confirmed and posted as an expense.
type ParcelConfirmedMessage struct {
	PurchaseID        string     `json:"purchase_id"`
	CardID            string     `json:"card_id"`
	Description       string     `json:"description"`
	ParcelNumber      int        `json:"parcel_number"`
	TotalInstallments int        `json:"total_installments"`
	Amount            core.Money `json:"amount"`
	BillingMonth      core.Date  `json:"billing_month"`
	DueDate           core.Date  `json:"due_date"`
	TransactionID     string     `json:"transaction_id,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
}

// Validate checks the fields a consumer relies on.
func (m *ParcelConfirmedMessage) Validate() error {
	if m.PurchaseID == "" {
		return fmt.Errorf("missing purchase id")
	}
	if m.ParcelNumber < 1 || m.ParcelNumber > m.TotalInstallments {
		return fmt.Errorf("parcel %d out of range 1..%d", m.ParcelNumber, m.TotalInstallments)
	}
	return nil
}

func (m *ParcelConfirmedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParcelConfirmedMessageFromJSON(data []byte) (*ParcelConfirmedMessage, error) {
	var msg ParcelConfirmedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
