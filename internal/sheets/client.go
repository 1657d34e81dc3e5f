package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ErrNotConfigured is returned by every call when credentials or the
// spreadsheet id are missing. Callers turn it into a failure result
var ErrNotConfigured = errors.New("ledger sheet is not configured")

const (
	valueInputRaw  = "RAW"
	insertDataRows = "INSERT_ROWS"
)

type Config struct {
	SpreadsheetID string
	ClientEmail   string
	PrivateKey    string
}

func (c Config) complete() bool {
	return c.SpreadsheetID != "" && c.ClientEmail != "" && c.PrivateKey != ""
}

// Client is a thin wrapper over the Sheets v4 values API scoped to one spreadsheet
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewClient authenticates with a service account. Missing credentials are not
// an error at construction time: the client degrades to ErrNotConfigured
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if !cfg.complete() {
		logger.Warn("Google Sheets credentials missing, ledger sync disabled")
		return &Client{logger: logger}, nil
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes:     []string{gsheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	svc, err := gsheets.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	logger.Info("Google Sheets client ready", "spreadsheet_id", cfg.SpreadsheetID)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, logger: logger}, nil
}

func (c *Client) Configured() bool {
	return c != nil && c.svc != nil
}

// Get reads a range; trailing empty cells and rows are omitted by the API
func (c *Client) Get(ctx context.Context, rng string) ([][]any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("values.get %s: %w", rng, err)
	}
	return resp.Values, nil
}

// Update overwrites rng with rows
func (c *Client) Update(ctx context.Context, rng string, rows [][]any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("values.update %s: %w", rng, err)
	}
	return nil
}

// Append inserts rows after the table found in rng without overwriting
func (c *Client) Append(ctx context.Context, rng string, rows [][]any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("values.append %s: %w", rng, err)
	}
	return nil
}

func (c *Client) Clear(ctx context.Context, rng string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("values.clear %s: %w", rng, err)
	}
	return nil
}

// EnsureSheet returns the id of the tab named title, creating it when missing
func (c *Client) EnsureSheet(ctx context.Context, title string) (int64, bool, error) {
	if !c.Configured() {
		return 0, false, ErrNotConfigured
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("spreadsheets.get: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, false, nil
		}
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{Properties: &gsheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("add sheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, false, fmt.Errorf("add sheet %q: empty reply", title)
	}

	c.logger.Info("Created ledger tab", "sheet", title)
	return resp.Replies[0].AddSheet.Properties.SheetId, true, nil
}

// BoldHeader formats the first row of a tab in bold
func (c *Client) BoldHeader(ctx context.Context, sheetID int64) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: &gsheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1},
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{TextFormat: &gsheets.TextFormat{Bold: true}},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("bold header: %w", err)
	}
	return nil
}

// Range builds an A1 range on a quoted tab name: Range("Due Payments", "A2:J")
func Range(sheet, a1 string) string {
	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if a1 == "" {
		return quoted
	}
	return quoted + "!" + a1
}
