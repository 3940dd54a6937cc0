package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/savings"
)

// DashboardService assembles the read models shown on the main screen.
type DashboardService struct {
	calc   *savings.Calculator
	txs    *TransactionService
	ids    identity.Provider
	views  *Views
	rate   decimal.Decimal
	recent int
	logger *slog.Logger
}

func NewDashboardService(calc *savings.Calculator, txs *TransactionService, ids identity.Provider, views *Views, annualRate decimal.Decimal, recent int, logger *slog.Logger) *DashboardService {
	if ids == nil {
		ids = identity.ContextProvider{}
	}
	if recent < 1 {
		recent = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		calc:   calc,
		txs:    txs,
		ids:    ids,
		views:  views,
		rate:   annualRate,
		recent: recent,
		logger: logger,
	}
}

// Build recomputes and persists the total, projects half a year of interest on
// it and lists the most recent transactions. The total and the listing are
// fetched concurrently; either failure fails the whole build.
func (s *DashboardService) Build(ctx context.Context) (core.DashboardState, error) {
	userID, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return core.DashboardState{}, core.ErrUnauthenticated
	}
	if st, hit := s.views.dashboard(userID); hit {
		return st, nil
	}
	gen := s.views.generation(userID)

	var (
		total  decimal.Decimal
		recent []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.calc.RecalculateTotalSaved(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.txs.ListRecent(gctx, s.recent)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.DashboardState{}, err
	}

	// an overdrawn balance earns nothing
	expected := decimal.Zero
	if !total.IsNegative() {
		proj, err := savings.ProjectHalfYear(total, s.rate)
		if err != nil {
			return core.DashboardState{}, err
		}
		expected = proj.InterestEarned
	}

	st := core.DashboardState{
		TotalSaved:         total,
		ExpectedReturn:     expected,
		Currency:           s.calc.Currency(),
		RecentTransactions: recent,
	}
	s.views.putDashboard(userID, gen, st)
	return st, nil
}

// Growth serves the monthly series through the per-user cache.
func (s *DashboardService) Growth(ctx context.Context, year, month, n int) ([]core.GrowthPoint, error) {
	userID, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return nil, core.ErrUnauthenticated
	}
	if pts, hit := s.views.growthSeries(userID, year, month, n); hit {
		return pts, nil
	}
	gen := s.views.generation(userID)
	pts, err := s.calc.MonthlySavingsGrowth(ctx, year, month, n)
	if err != nil {
		return nil, err
	}
	s.views.putGrowth(userID, gen, year, month, n, pts)
	return pts, nil
}

// Projection projects the current total at rate, or at the configured rate
// when rate is nil.
func (s *DashboardService) Projection(ctx context.Context, rate *decimal.Decimal) (savings.Projection, error) {
	total, err := s.calc.TotalSaved(ctx)
	if err != nil {
		return savings.Projection{}, err
	}
	r := s.rate
	if rate != nil {
		r = *rate
	}
	return savings.ProjectHalfYear(total, r)
}

// AnnualRate is the rate used when a caller does not pick one.
func (s *DashboardService) AnnualRate() decimal.Decimal { return s.rate }
