package memory

import (
	"context"
	"fmt"
	"sync"

	"financy/internal/sheets"
)

// Writer keeps exported parcels in memory. It stands in for the Sheets
// client when no spreadsheet is configured.
type Writer struct {
	mu   sync.Mutex
	rows []sheets.ParcelRecord
	refs map[string]string
}

var _ sheets.ParcelWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{refs: map[string]string{}}
}

// AppendParcel stores the record and returns a synthetic row reference.
func (w *Writer) AppendParcel(_ context.Context, r sheets.ParcelRecord) (string, error) {
	if r.PurchaseID == "" {
		return "", fmt.Errorf("missing purchase id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if ref, ok := w.refs[r.Key()]; ok {
		return ref, nil
	}
	w.rows = append(w.rows, r)
	ref := fmt.Sprintf("mem:%d", len(w.rows))
	w.refs[r.Key()] = ref
	return ref, nil
}

// Rows returns a copy of every exported record in write order.
func (w *Writer) Rows() []sheets.ParcelRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sheets.ParcelRecord(nil), w.rows...)
}
