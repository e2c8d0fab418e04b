package roster

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/winhacks/hackbot/config"
)

// SheetLayout locates the roster columns in the spreadsheet.
type SheetLayout struct {
	SpreadsheetID   string
	Sheet           string
	EmailColumn     string
	FirstNameColumn string
	LastNameColumn  string
}

// values is the slice of the Sheets API the roster reads.
type values interface {
	// column returns the cells of rng read in column-major order.
	column(ctx context.Context, spreadsheetID, rng string) ([]string, error)
	// cells returns the first cell of each range, in order.
	cells(ctx context.Context, spreadsheetID string, ranges ...string) ([]string, error)
}

// Sheets finds registrants in a Google spreadsheet.
type Sheets struct {
	api    values
	layout SheetLayout
	logger *zap.Logger
}

// NewSheets authenticates with a service account and returns a roster
// backed by the configured spreadsheet.
func NewSheets(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*Sheets, error) {
	jc := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(cfg.PrivateKey),
		Scopes:     cfg.Scopes,
		TokenURL:   google.JWTTokenURL,
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jc.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	layout := SheetLayout{
		SpreadsheetID:   cfg.SpreadsheetID,
		Sheet:           cfg.SheetName,
		EmailColumn:     cfg.EmailColumn,
		FirstNameColumn: cfg.FirstNameColumn,
		LastNameColumn:  cfg.LastNameColumn,
	}
	logger.Info("Sheets roster configured", zap.String("sheet", layout.Sheet), zap.String("client", cfg.ClientEmail))
	return newSheets(&sheetsValues{svc: svc}, layout, logger), nil
}

func newSheets(api values, layout SheetLayout, logger *zap.Logger) *Sheets {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sheets{api: api, layout: layout, logger: logger}
}

// buildRange formats an A1 range on sheet.
func buildRange(sheet, start, end string) string {
	return fmt.Sprintf("%s!%s:%s", sheet, start, end)
}

func singleCell(sheet, column string, row int) string {
	cell := fmt.Sprintf("%s%d", column, row)
	return buildRange(sheet, cell, cell)
}

// Find implements Lookup.
func (s *Sheets) Find(ctx context.Context, email string) (*Registrant, error) {
	l := s.layout
	column, err := s.api.column(ctx, l.SpreadsheetID, buildRange(l.Sheet, l.EmailColumn, l.EmailColumn))
	if err != nil {
		return nil, fmt.Errorf("read email column: %w", err)
	}
	idx := lastMatch(column, email)
	if idx < 0 {
		s.logger.Debug("email not in roster", zap.String("email", email))
		return nil, nil
	}
	row := idx + 1
	s.logger.Debug("email found in roster", zap.String("email", email), zap.Int("row", row))

	cells, err := s.api.cells(ctx, l.SpreadsheetID,
		singleCell(l.Sheet, l.FirstNameColumn, row),
		singleCell(l.Sheet, l.LastNameColumn, row),
		singleCell(l.Sheet, l.EmailColumn, row),
	)
	if err != nil {
		return nil, fmt.Errorf("read row %d: %w", row, err)
	}
	if len(cells) != 3 {
		return nil, fmt.Errorf("read row %d: got %d cells", row, len(cells))
	}
	return &Registrant{FirstName: cells[0], LastName: cells[1], Email: normalize(cells[2])}, nil
}

// sheetsValues calls the real Sheets API.
type sheetsValues struct {
	svc *sheets.Service
}

func (v *sheetsValues) column(ctx context.Context, spreadsheetID, rng string) ([]string, error) {
	vr, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	return stringify(vr.Values[0]), nil
}

func (v *sheetsValues) cells(ctx context.Context, spreadsheetID string, ranges ...string) ([]string, error) {
	resp, err := v.svc.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(ranges...).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		if len(vr.Values) == 0 || len(vr.Values[0]) == 0 {
			return nil, errors.New("empty cell in registrant row")
		}
		out = append(out, fmt.Sprint(vr.Values[0][0]))
	}
	return out, nil
}

func stringify(row []interface{}) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = fmt.Sprint(c)
	}
	return out
}
