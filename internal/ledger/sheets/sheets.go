// Package sheets stores the ledger in one tab of a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

// DefaultSheetName is the tab holding the ledger.
const DefaultSheetName = "Финансы"

// Ledger is a spreadsheet-backed ledger. Row 1 holds ledger.Header.
type Ledger struct {
	svc           *gsheets.Service
	spreadsheetID string
	sheet         string
	sheetID       *int64
}

// New creates a Sheets client. Pass option.WithCredentialsFile or
// option.WithCredentialsJSON for a service account.
func New(ctx context.Context, spreadsheetID, sheet string, opts ...option.ClientOption) (*Ledger, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets.New: spreadsheet id is required")
	}
	if sheet == "" {
		sheet = DefaultSheetName
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets.New: creating service: %w", err)
	}
	return &Ledger{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func (l *Ledger) columns() string {
	return fmt.Sprintf("'%s'!A:F", l.sheet)
}

// EnsureHeader writes ledger.Header into row 1 if the tab is empty.
func (l *Ledger) EnsureHeader(ctx context.Context) error {
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, fmt.Sprintf("'%s'!A1:F1", l.sheet)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets.EnsureHeader: reading header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	return l.writeHeader(ctx)
}

func (l *Ledger) writeHeader(ctx context.Context) error {
	header := make([]interface{}, len(ledger.Header))
	for i, h := range ledger.Header {
		header[i] = h
	}
	_, err := l.svc.Spreadsheets.Values.Update(l.spreadsheetID, fmt.Sprintf("'%s'!A1:F1", l.sheet), &gsheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

func (l *Ledger) Append(ctx context.Context, t domain.Transaction) (int, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("sheets.Append: %w", err)
	}
	resp, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, l.columns(), &gsheets.ValueRange{
		Values: [][]interface{}{ledger.EncodeRow(t)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheets.Append: %w", err)
	}

	if resp.Updates != nil {
		if m := updatedRowRe.FindStringSubmatch(resp.Updates.UpdatedRange); m != nil {
			if row, err := strconv.Atoi(m[1]); err == nil {
				return row, nil
			}
		}
	}

	// The API did not report where the row went; the tail is authoritative.
	logger.FromContext(ctx).Warn().Msg("append response lacked updated range, reading tail")
	last, ok, err := l.Tail(ctx)
	if err != nil {
		return 0, fmt.Errorf("sheets.Append: locating appended row: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("sheets.Append: appended row not found")
	}
	return last.Row, nil
}

func (l *Ledger) Delete(ctx context.Context, row int) error {
	if row < 2 {
		return fmt.Errorf("sheets.Delete: row %d is not a data row", row)
	}
	sheetID, err := l.lookupSheetID(ctx)
	if err != nil {
		return fmt.Errorf("sheets.Delete: %w", err)
	}
	_, err = l.svc.Spreadsheets.BatchUpdate(l.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets.Delete: row %d: %w", row, err)
	}
	return nil
}

func (l *Ledger) lookupSheetID(ctx context.Context) (int64, error) {
	if l.sheetID != nil {
		return *l.sheetID, nil
	}
	ss, err := l.svc.Spreadsheets.Get(l.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("reading spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == l.sheet {
			id := s.Properties.SheetId
			l.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", l.sheet)
}

func (l *Ledger) ReadAll(ctx context.Context) ([]ledger.Entry, error) {
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, l.columns()).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets.ReadAll: %w", err)
	}

	log := logger.FromContext(ctx)
	var entries []ledger.Entry
	for i, cells := range resp.Values {
		if i == 0 || len(cells) == 0 {
			continue
		}
		t, err := ledger.DecodeRow(cells)
		if err != nil {
			log.Warn().Err(err).Int("row", i+1).Msg("skipping unreadable ledger row")
			continue
		}
		entries = append(entries, ledger.Entry{Row: i + 1, Transaction: t})
	}
	return entries, nil
}

func (l *Ledger) Tail(ctx context.Context) (ledger.Entry, bool, error) {
	entries, err := l.ReadAll(ctx)
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("sheets.Tail: %w", err)
	}
	if len(entries) == 0 {
		return ledger.Entry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

func (l *Ledger) Reset(ctx context.Context) error {
	if _, err := l.svc.Spreadsheets.Values.Clear(l.spreadsheetID, l.columns(), &gsheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets.Reset: clearing: %w", err)
	}
	if err := l.writeHeader(ctx); err != nil {
		return fmt.Errorf("sheets.Reset: %w", err)
	}
	return nil
}

var (
	_ ledger.Ledger = (*Ledger)(nil)
	_ ledger.Tailer = (*Ledger)(nil)
)
