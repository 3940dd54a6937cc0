package savings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/ledger"
	applog "smartsave/internal/log"
)

// Store is the subset of the ledger the calculator needs.
type Store interface {
	ledger.TransactionReader
	ledger.ProfileWriter
}

type Options struct {
	Rules    RuleTable
	Currency string // fallback label for windowed metrics
	Now      func() time.Time
	Logger   *slog.Logger
}

// Calculator runs the savings operations for the user resolved from the
// request context. It performs one store read per operation and, for
// RecalculateTotalSaved, one write.
type Calculator struct {
	store    Store
	ids      identity.Provider
	rules    RuleTable
	currency string
	now      func() time.Time
	logger   *slog.Logger
}

func NewCalculator(store Store, ids identity.Provider, opts Options) *Calculator {
	c := &Calculator{
		store:    store,
		ids:      ids,
		rules:    opts.Rules,
		currency: strings.TrimSpace(opts.Currency),
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if c.ids == nil {
		c.ids = identity.ContextProvider{}
	}
	if c.rules == nil {
		c.rules = DefaultRules()
	}
	if c.currency == "" {
		c.currency = core.DefaultCurrency
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Rules exposes the policy the calculator folds with.
func (c *Calculator) Rules() RuleTable { return c.rules }

// Currency is the fallback label for metrics with no labeled transaction.
func (c *Calculator) Currency() string { return c.currency }

func (c *Calculator) user(ctx context.Context) (string, error) {
	id, ok := c.ids.CurrentUser(ctx)
	if !ok {
		return "", core.ErrUnauthenticated
	}
	return id, nil
}

func (c *Calculator) list(ctx context.Context, userID string, r ledger.Range) ([]core.Transaction, error) {
	txs, err := c.store.ListTransactions(ctx, userID, r)
	if err != nil {
		return nil, core.StoreFailure("failed to read transactions", err)
	}
	return txs, nil
}

// TotalSaved folds the whole ledger without persisting the result.
func (c *Calculator) TotalSaved(ctx context.Context) (decimal.Decimal, error) {
	userID, err := c.user(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := c.list(ctx, userID, ledger.All())
	if err != nil {
		return decimal.Zero, err
	}
	return TotalSaved(c.rules, txs), nil
}

// RecalculateTotalSaved replays the full ledger and overwrites the stored
// total, including when the ledger is empty.
func (c *Calculator) RecalculateTotalSaved(ctx context.Context) (decimal.Decimal, error) {
	userID, err := c.user(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := c.list(ctx, userID, ledger.All())
	if err != nil {
		return decimal.Zero, err
	}
	total := TotalSaved(c.rules, txs)
	if err := c.store.SetTotalSaved(ctx, userID, total); err != nil {
		return decimal.Zero, core.StoreFailure("failed to update total saved", err)
	}
	c.logger.InfoContext(ctx, "Total saved recalculated", applog.NewFields().
		WithOperation(applog.OpRecalculate).
		WithUser(userID).
		WithTotal(total, "").
		ToSlice()...)
	return total, nil
}

// InterestEarnedLastMonth sums interest payments in the rolling window.
func (c *Calculator) InterestEarnedLastMonth(ctx context.Context) (WindowSum, error) {
	return c.windowed(ctx, applog.OpInterestLast, RollingWindow(c.now()), InterestOnly)
}

// ProgressThisMonth sums income round-ups and interest in the rolling window.
func (c *Calculator) ProgressThisMonth(ctx context.Context) (WindowSum, error) {
	return c.windowed(ctx, applog.OpProgress, RollingWindow(c.now()), IncomeSavingsAndInterest)
}

// InterestForMonth sums interest payments in a calendar month.
func (c *Calculator) InterestForMonth(ctx context.Context, year, month int) (WindowSum, error) {
	return c.calendar(ctx, applog.OpInterestMonth, year, month, InterestOnly)
}

// IncomeSavingsForMonth sums income round-ups in a calendar month.
func (c *Calculator) IncomeSavingsForMonth(ctx context.Context, year, month int) (WindowSum, error) {
	return c.calendar(ctx, applog.OpIncomeMonth, year, month, IncomeSavingsOnly)
}

// ProgressForMonth is ProgressThisMonth over a calendar month.
func (c *Calculator) ProgressForMonth(ctx context.Context, year, month int) (WindowSum, error) {
	return c.calendar(ctx, applog.OpProgressMonth, year, month, IncomeSavingsAndInterest)
}

func (c *Calculator) calendar(ctx context.Context, op string, year, month int, counted TypeSet) (WindowSum, error) {
	if _, err := c.user(ctx); err != nil {
		return WindowSum{}, err
	}
	w, err := CalendarMonthWindow(year, month)
	if err != nil {
		return WindowSum{}, err
	}
	return c.windowed(ctx, op, w, counted)
}

func (c *Calculator) windowed(ctx context.Context, op string, w Window, counted TypeSet) (WindowSum, error) {
	userID, err := c.user(ctx)
	if err != nil {
		return WindowSum{}, err
	}
	txs, err := c.list(ctx, userID, ledger.Between(w.Start, w.End))
	if err != nil {
		return WindowSum{}, err
	}
	sum := SumWindow(c.rules, txs, w, counted, c.currency)
	c.logger.DebugContext(ctx, "Windowed savings computed", applog.NewFields().
		WithOperation(op).
		WithUser(userID).
		WithWindow(w.Start, w.End).
		WithTotal(sum.Total, sum.Currency).
		ToSlice()...)
	return sum, nil
}

// MonthlySavingsGrowth returns n cumulative month-end balances ending at
// (year, month), oldest first. All transactions are fetched in one read.
func (c *Calculator) MonthlySavingsGrowth(ctx context.Context, year, month, n int) ([]core.GrowthPoint, error) {
	userID, err := c.user(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := CalendarMonthWindow(year, month); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: number of months must be positive, got %d", core.ErrInvalidArgument, n)
	}
	txs, err := c.list(ctx, userID, ledger.Until(monthEnd(year, month).UnixMilli()))
	if err != nil {
		return nil, err
	}
	points, err := BuildGrowthSeries(c.rules, txs, year, month, n)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "Growth series built", applog.NewFields().
		WithOperation(applog.OpGrowth).
		WithUser(userID).
		ToSlice()...)
	return points, nil
}
