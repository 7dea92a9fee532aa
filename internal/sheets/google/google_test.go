package google

import (
	"context"
	"strings"
	"testing"

	"financy/internal/core"
	"financy/internal/sheets"
)

func sampleRecord() sheets.ParcelRecord {
	return sheets.ParcelRecord{
		PurchaseID:        "p-1",
		CardID:            "c-1",
		Description:       "Notebook",
		ParcelNumber:      2,
		TotalInstallments: 3,
		Amount:            core.Money{Cents: 33333},
		BillingMonth:      core.NewDate(2025, 5, 1),
		DueDate:           core.NewDate(2025, 5, 17),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "id", CredentialsFile: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParcelRow(t *testing.T) {
	row := parcelRow(sampleRecord())
	want := []any{"2025-05-17", "Mai/2025", "Notebook", "2/3", "333.33", "c-1", "p-1", "p-1/2"}
	if len(row) != len(want) || len(row) != len(Header) {
		t.Fatalf("row has %d columns, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestFindKey(t *testing.T) {
	values := [][]any{{"Chave"}, {}, {"p-1/1"}, {" p-1/2 "}}
	if got := findKey(values, "p-1/2"); got != 4 {
		t.Errorf("findKey = %d, want 4", got)
	}
	if got := findKey(values, "p-9/1"); got != 0 {
		t.Errorf("findKey missing = %d, want 0", got)
	}
	if got := rowRef("2025 Parcelas", 4); got != "2025 Parcelas!A4:H4" {
		t.Errorf("rowRef = %q", got)
	}
}

func TestYearPrefixedName(t *testing.T) {
	cases := map[string]string{
		"Parcelas":      "2025 Parcelas",
		"2024 Parcelas": "2024 Parcelas",
		"  ":            "",
	}
	for in, want := range cases {
		if got := yearPrefixedName(in, 2025); got != want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAppendParcel_Validation(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	r := sampleRecord()
	r.ParcelNumber = 4
	if _, err := c.AppendParcel(context.Background(), r); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.AppendParcel(context.Background(), sampleRecord()); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized service error, got %v", err)
	}
}
