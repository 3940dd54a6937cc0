package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "smartsave.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartsave.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if repo.Schema().Version != 1 || repo.Schema().Dirty {
		t.Fatalf("unexpected schema after open: %+v", repo.Schema())
	}
	repo.Close()
	v, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second migration run should be a no-op: %v", err)
	}
	if v.Version != 1 {
		t.Fatalf("expected schema version 1, got %+v", v)
	}
}

func TestCurrentSchemaOnFreshDatabase(t *testing.T) {
	v, err := CurrentSchema(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("CurrentSchema: %v", err)
	}
	if v != (SchemaVersion{}) {
		t.Fatalf("expected no version on a fresh database, got %+v", v)
	}
}

func TestDirtySchemaRefusesToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartsave.db")
	if _, err := RunMigrations(path); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatalf("mark dirty: %v", err)
	}
	db.Close()

	if _, err := NewSQLiteRepository(path); !errors.Is(err, ErrDirtySchema) {
		t.Fatalf("expected ErrDirtySchema, got %v", err)
	}
	if v, err := CurrentSchema(path); err != nil || !v.Dirty {
		t.Fatalf("expected dirty schema, got %+v err=%v", v, err)
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := []core.Transaction{
		{UserID: "u1", Description: "Salary", Type: "income", Amount: decimal.RequireFromString("2500.00"), SavingsCalculated: decimal.RequireFromString("250.00"), Timestamp: 2000, Currency: "EUR"},
		{UserID: "u1", Description: "ATM", Type: core.Withdraw, Amount: decimal.RequireFromString("20"), Timestamp: 1000},
		{UserID: "u1", Description: "Pending", Type: core.SavingsDeposit, Amount: decimal.RequireFromString("5"), Timestamp: 0},
		{UserID: "u2", Description: "Other user", Type: core.Income, SavingsCalculated: decimal.RequireFromString("1"), Timestamp: 1500},
	}
	for _, tx := range in {
		id, err := repo.AppendTransaction(ctx, tx)
		if err != nil || id == "" {
			t.Fatalf("append: id=%q err=%v", id, err)
		}
	}

	all, err := repo.ListTransactions(ctx, "u1", ledger.All())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transactions for u1, got %d", len(all))
	}
	if all[0].Timestamp != 0 || all[2].Type != core.Income {
		t.Fatalf("expected rows ordered by timestamp with normalized type, got %+v", all)
	}
	if !all[2].SavingsCalculated.Equal(decimal.NewFromInt(250)) || all[2].Currency != "EUR" {
		t.Fatalf("decimal or currency lost: %+v", all[2])
	}

	window, err := repo.ListTransactions(ctx, "u1", ledger.Between(1000, 2000))
	if err != nil || len(window) != 2 {
		t.Fatalf("expected 2 inclusive rows, got %d err=%v", len(window), err)
	}
	until, err := repo.ListTransactions(ctx, "u1", ledger.Until(999))
	if err != nil || len(until) != 1 {
		t.Fatalf("expected only the pending row, got %d err=%v", len(until), err)
	}
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.GetProfile(ctx, "u1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.SetTotalSaved(ctx, "u1", decimal.RequireFromString("12.5")); err != nil {
		t.Fatalf("set total on missing profile: %v", err)
	}
	p, err := repo.GetProfile(ctx, "u1")
	if err != nil || !p.TotalSaved.Equal(decimal.RequireFromString("12.5")) || p.Active {
		t.Fatalf("unexpected profile %+v err=%v", p, err)
	}

	p.SavingsPercentage = decimal.NewFromInt(15)
	p.StartDate = core.NewDate(2024, 1, 31)
	p.Active = true
	if err := repo.SaveProfile(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SetTotalSaved(ctx, "u1", decimal.NewFromInt(40)); err != nil {
		t.Fatalf("set total: %v", err)
	}
	p, err = repo.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.Active || p.StartDate.String() != "2024-01-31" || !p.SavingsPercentage.Equal(decimal.NewFromInt(15)) || !p.TotalSaved.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("SetTotalSaved should only replace the total: %+v", p)
	}

	if err := repo.SaveProfile(ctx, core.Profile{UserID: "u1", SavingsPercentage: decimal.NewFromInt(200)}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
