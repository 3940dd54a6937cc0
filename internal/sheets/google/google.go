package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"smartsave/internal/core"
	ports "smartsave/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Exporter appends growth snapshots to a sheet, one row per month:
// exported_at, user, year, month, month name, cumulative savings.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time
	logger        *slog.Logger
}

var _ ports.GrowthExporter = (*Exporter)(nil)

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Growth"
	}

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		now:           time.Now,
		logger:        logger,
	}, nil
}

// newSheetsService authenticates with a service account taken from inline
// JSON, a file, or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context, cfg Config, logger *slog.Logger) (*gsheet.Service, error) {
	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (e *Exporter) ExportGrowth(ctx context.Context, userID string, points []core.GrowthPoint) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthenticated
	}
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(points) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", e.sheetName)
	vr := &gsheet.ValueRange{Values: growthRows(userID, points, e.now())}
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append growth rows to sheet %s: %w", e.sheetName, err)
	}

	e.logger.InfoContext(ctx, "Growth series exported",
		"user_id", userID,
		"rows", len(points),
		"sheet", e.sheetName)
	return nil
}

func growthRows(userID string, points []core.GrowthPoint, exportedAt time.Time) [][]any {
	stamp := exportedAt.UTC().Format("2006-01-02 15:04:05")
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, []any{
			stamp,
			userID,
			p.Year,
			p.Month,
			p.MonthName,
			p.CumulativeSavings.StringFixed(2),
		})
	}
	return rows
}
