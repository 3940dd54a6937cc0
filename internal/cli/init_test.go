package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/config"
	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/ledger/memory"
	applog "smartsave/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestNewCalculatorAppliesExpensePolicy(t *testing.T) {
	ctx := identity.WithUser(context.Background(), "u1")
	store := memory.New()
	ts := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC).UnixMilli()
	for _, tx := range []core.Transaction{
		{UserID: "u1", Description: "salary", Amount: decimal.NewFromInt(1000), Type: core.Income,
			SavingsCalculated: decimal.NewFromInt(100), Timestamp: ts},
		{UserID: "u1", Description: "groceries", Amount: decimal.NewFromInt(50), Type: core.Expense,
			SavingsCalculated: decimal.NewFromInt(5), Timestamp: ts},
	} {
		if _, err := store.AppendTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name          string
		countExpenses bool
		want          int64
	}{
		{"expenses counted", true, 105},
		{"expenses ignored", false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DefaultCurrency: "CHF", CountExpenseSavings: tt.countExpenses}
			calc := NewCalculator(cfg, store, quietLogger())
			total, err := calc.TotalSaved(ctx)
			if err != nil {
				t.Fatalf("TotalSaved: %v", err)
			}
			if !total.Equal(decimal.NewFromInt(tt.want)) {
				t.Fatalf("total = %s, want %d", total, tt.want)
			}
			if calc.Currency() != "CHF" {
				t.Fatalf("currency = %q, want CHF", calc.Currency())
			}
		})
	}
}

func TestTopology(t *testing.T) {
	cfg := &config.Config{AMQPExchange: "ex", AMQPRecalcQueue: "rq", AMQPPaymentQueue: "pq"}
	top := Topology(cfg)
	if top.Exchange != "ex" || top.RecalcQueue != "rq" || top.PaymentQueue != "pq" {
		t.Fatalf("unexpected topology: %+v", top)
	}
}

func TestSetupLoggerInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("error")
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be disabled at error level")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger should accept errors")
	}
}
