package google

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{ServiceAccountJSON: "{}"}, nil)
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	t.Run("inline wins", func(t *testing.T) {
		b, err := loadCredentials(Config{ServiceAccountJSON: ` {"type":"service_account"} `, ServiceAccountFile: "/nope"})
		if err != nil || string(b) != `{"type":"service_account"}` {
			t.Fatalf("got %q, %v", b, err)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sa.json")
		if err := os.WriteFile(path, []byte(`{"a":1}`), 0o600); err != nil {
			t.Fatal(err)
		}
		b, err := loadCredentials(Config{ServiceAccountFile: path})
		if err != nil || string(b) != `{"a":1}` {
			t.Fatalf("got %q, %v", b, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := loadCredentials(Config{ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
			t.Fatal("expected read error")
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := loadCredentials(Config{})
		if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestGrowthRows(t *testing.T) {
	at := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	pts := []core.GrowthPoint{
		{MonthName: "Feb", Year: 2024, Month: 2, CumulativeSavings: decimal.RequireFromString("12.5")},
		{MonthName: "Mar", Year: 2024, Month: 3, CumulativeSavings: decimal.Zero},
	}
	rows := growthRows("u1", pts, at)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := []any{"2024-03-15 10:30:00", "u1", 2024, 2, "Feb", "12.50"}
	for i, v := range want {
		if rows[0][i] != v {
			t.Fatalf("column %d: got %v, want %v", i, rows[0][i], v)
		}
	}
	if rows[1][5] != "0.00" {
		t.Fatalf("expected zero formatted with two decimals, got %v", rows[1][5])
	}
}

func TestExportGrowthGuards(t *testing.T) {
	e := &Exporter{sheetName: "Growth", now: time.Now}
	if err := e.ExportGrowth(context.Background(), "", nil); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if err := e.ExportGrowth(context.Background(), "u1", nil); err == nil {
		t.Fatal("expected error without a service")
	}
}
