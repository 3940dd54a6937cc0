package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/ledger"
	applog "smartsave/internal/log"
)

type ProfileService struct {
	store  ledger.Store
	ids    identity.Provider
	views  *Views
	now    func() time.Time
	logger *slog.Logger
}

func NewProfileService(store ledger.Store, ids identity.Provider, views *Views, now func() time.Time, logger *slog.Logger) *ProfileService {
	if ids == nil {
		ids = identity.ContextProvider{}
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{store: store, ids: ids, views: views, now: now, logger: logger}
}

// Get returns ledger.ErrNotFound for users who never ran Setup.
func (s *ProfileService) Get(ctx context.Context) (core.Profile, error) {
	userID, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return core.Profile{}, core.ErrUnauthenticated
	}
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return core.Profile{}, err
	}
	if err != nil {
		return core.Profile{}, core.StoreFailure("failed to read profile", err)
	}
	return p, nil
}

// Setup activates the round-up plan. A first call starts the plan today with
// nothing saved; later calls only change the percentage.
func (s *ProfileService) Setup(ctx context.Context, percentage decimal.Decimal) (core.Profile, error) {
	userID, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return core.Profile{}, core.ErrUnauthenticated
	}

	p, err := s.store.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		p = core.Profile{UserID: userID, TotalSaved: decimal.Zero}
	case err != nil:
		return core.Profile{}, core.StoreFailure("failed to read profile", err)
	}
	// a recomputation may have created the row before the plan was set up
	if p.StartDate.IsZero() {
		today := s.now().UTC()
		p.StartDate = core.NewDate(today.Year(), int(today.Month()), today.Day())
	}
	p.SavingsPercentage = percentage
	p.Active = true

	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return core.Profile{}, core.StoreFailure("failed to save profile", err)
	}
	s.views.Invalidate(userID)

	s.logger.InfoContext(ctx, "Profile saved", applog.NewFields().
		WithOperation(applog.OpProfile).
		WithUser(userID).
		ToSlice()...)
	return p, nil
}
