package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"financy/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID string
	// SheetName is the base tab name; the parcel's due year is prefixed,
	// e.g. "2025 Parcelas".
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ sheets.ParcelWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Parcelas"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base}, nil
}

// newSheetsService uses inline JSON, then the credentials file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credsJSON := strings.TrimSpace(opts.CredentialsJSON)
	credsFile := strings.TrimSpace(opts.CredentialsFile)
	if credsJSON == "" && credsFile == "" {
		credsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var data []byte
	switch {
	case credsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		data = []byte(credsJSON)
	case credsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", credsFile)
		var err error
		data, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(data),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendParcel appends one row per parcel to the tab of the parcel's due
// year. Rows carry the record key in column H; a key already present is
// not written again.
func (c *Client) AppendParcel(ctx context.Context, r sheets.ParcelRecord) (string, error) {
	if err := validateRecord(r); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, r.DueDate.Year())
	keyRange := fmt.Sprintf("%s!%s:%s", sheet, keyColumn, keyColumn)
	existing, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, keyRange).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read keys of %s: %w", sheet, err)
	}
	if row := findKey(existing.Values, r.Key()); row > 0 {
		slog.InfoContext(ctx, "Parcel already exported", "key", r.Key(), "row", row)
		return rowRef(sheet, row), nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{parcelRow(r)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, fmt.Sprintf("%s!A:%s", sheet, keyColumn), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Parcel exported to Google Sheets", "key", r.Key(), "range", ref)
	return ref, nil
}
