package worker

import (
	"context"
	"log/slog"
	"time"

	"financy/internal/core"
)

// DueConfirmer confirms every parcel due on or before today.
// *services.InstallmentService implements it.
type DueConfirmer interface {
	ConfirmDue(ctx context.Context, today core.Date) (int, error)
}

// DueParcelWorker periodically confirms due parcels.
type DueParcelWorker struct {
	confirmer DueConfirmer
	interval  time.Duration
	now       func() time.Time
}

func NewDueParcelWorker(confirmer DueConfirmer, interval time.Duration) *DueParcelWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &DueParcelWorker{confirmer: confirmer, interval: interval, now: time.Now}
}

// RunOnce processes the parcels due today.
func (w *DueParcelWorker) RunOnce(ctx context.Context) int {
	today := core.DateOf(w.now())
	count, err := w.confirmer.ConfirmDue(ctx, today)
	if err != nil {
		slog.ErrorContext(ctx, "Due parcel processing failed", "error", err)
		return count
	}
	slog.InfoContext(ctx, "Due parcel processing complete",
		"confirmed", count,
		"next_check", w.now().Add(w.interval).Format("15:04:05"))
	return count
}

// Run processes once at startup and then on every tick until ctx ends.
func (w *DueParcelWorker) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Due parcel worker configured", "interval", w.interval)
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}
