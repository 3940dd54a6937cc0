package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	schema  SchemaVersion
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		schema:  schema,
	}, nil
}

// Schema is the ledger schema version the repository was opened at.
func (r *SQLiteRepository) Schema() SchemaVersion {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendTransaction implements ledger.TransactionWriter
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.UserID == "" {
		return "", core.ErrUnauthenticated
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:                tx.ID,
		UserID:            tx.UserID,
		Description:       tx.Description,
		Amount:            tx.Amount.String(),
		Type:              string(core.NormalizeType(string(tx.Type))),
		SavingsCalculated: tx.SavingsCalculated.String(),
		TimestampMs:       tx.Timestamp,
		Currency:          tx.Currency,
	})
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"user_id", tx.UserID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"timestamp_ms", tx.Timestamp)

	return tx.ID, nil
}

// ListTransactions implements ledger.TransactionReader
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, rng ledger.Range) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsInRange(ctx, ListTransactionsInRangeParams{
		UserID: userID,
		Start:  rng.Start,
		End:    rng.End,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toCore()
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetProfile implements ledger.ProfileReader
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	row, err := r.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return row.toCore()
}

// SaveProfile implements ledger.ProfileWriter
func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var active int64
	if p.Active {
		active = 1
	}
	err := r.queries.UpsertProfile(ctx, UpsertProfileParams{
		UserID:            p.UserID,
		SavingsPercentage: p.SavingsPercentage.String(),
		StartDate:         p.StartDate.String(),
		TotalSaved:        p.TotalSaved.String(),
		IsActive:          active,
	})
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	slog.InfoContext(ctx, "Profile saved to SQLite", "user_id", p.UserID, "active", p.Active)
	return nil
}

// SetTotalSaved implements ledger.ProfileWriter
func (r *SQLiteRepository) SetTotalSaved(ctx context.Context, userID string, total decimal.Decimal) error {
	if err := r.queries.SetTotalSaved(ctx, SetTotalSavedParams{UserID: userID, TotalSaved: total.String()}); err != nil {
		return fmt.Errorf("set total saved: %w", err)
	}
	return nil
}

func (t Transaction) toCore() (core.Transaction, error) {
	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	saved, err := decimal.NewFromString(t.SavingsCalculated)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("savings_calculated: %w", err)
	}
	return core.Transaction{
		ID:                t.ID,
		UserID:            t.UserID,
		Description:       t.Description,
		Amount:            amount,
		Type:              core.TransactionType(t.Type),
		SavingsCalculated: saved,
		Timestamp:         t.TimestampMs,
		Currency:          t.Currency,
	}, nil
}

func (p Profile) toCore() (core.Profile, error) {
	pct, err := decimal.NewFromString(p.SavingsPercentage)
	if err != nil {
		return core.Profile{}, fmt.Errorf("savings_percentage: %w", err)
	}
	total, err := decimal.NewFromString(p.TotalSaved)
	if err != nil {
		return core.Profile{}, fmt.Errorf("total_saved: %w", err)
	}
	out := core.Profile{
		UserID:            p.UserID,
		SavingsPercentage: pct,
		TotalSaved:        total,
		Active:            p.IsActive != 0,
	}
	if p.StartDate != "" {
		if out.StartDate, err = core.ParseDate(p.StartDate); err != nil {
			return core.Profile{}, fmt.Errorf("start_date: %w", err)
		}
	}
	return out, nil
}
