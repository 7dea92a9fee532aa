package worker

import (
	"context"
	"fmt"
	"log/slog"

	"financy/internal/amqp"
	"financy/internal/sheets"
)

// Consumer delivers parcel messages to a handler until ctx ends.
// *amqp.Client implements it.
type Consumer interface {
	ConsumeParcelConfirmed(ctx context.Context, handler func(context.Context, *amqp.ParcelConfirmedMessage) error) error
}

// ExportWorker writes confirmed parcels to a spreadsheet.
type ExportWorker struct {
	writer sheets.ParcelWriter
}

func NewExportWorker(writer sheets.ParcelWriter) *ExportWorker {
	return &ExportWorker{writer: writer}
}

// Run consumes messages until ctx is cancelled or the consumer fails.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	slog.InfoContext(ctx, "Export worker consuming parcel messages")
	return consumer.ConsumeParcelConfirmed(ctx, w.HandleParcelConfirmed)
}

// HandleParcelConfirmed exports one message. A returned error requeues it.
func (w *ExportWorker) HandleParcelConfirmed(ctx context.Context, msg *amqp.ParcelConfirmedMessage) error {
	rec := RecordFromMessage(msg)
	ref, err := w.writer.AppendParcel(ctx, rec)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export parcel",
			"key", rec.Key(),
			"error", err)
		return fmt.Errorf("export parcel %s: %w", rec.Key(), err)
	}

	slog.InfoContext(ctx, "Parcel exported",
		"key", rec.Key(),
		"sheets_ref", ref,
		"amount_cents", rec.Amount.Cents)
	return nil
}

// RecordFromMessage maps a queue message to a spreadsheet row.
func RecordFromMessage(msg *amqp.ParcelConfirmedMessage) sheets.ParcelRecord {
	return sheets.ParcelRecord{
		PurchaseID:        msg.PurchaseID,
		CardID:            msg.CardID,
		Description:       msg.Description,
		ParcelNumber:      msg.ParcelNumber,
		TotalInstallments: msg.TotalInstallments,
		Amount:            msg.Amount,
		BillingMonth:      msg.BillingMonth,
		DueDate:           msg.DueDate,
	}
}
