package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/ledger"
	applog "smartsave/internal/log"
	"smartsave/internal/payment"
	"smartsave/internal/savings"
)

// RecalcPublisher hands a total recomputation to the worker.
type RecalcPublisher interface {
	PublishRecalculate(ctx context.Context, userID, reason string) error
}

// RecordInput is a transaction as submitted by a client. A zero Timestamp is
// stamped with the current time; an invalid SavingsCalculated is derived from
// the profile percentage for INCOME and EXPENSE.
type RecordInput struct {
	Description       string
	Amount            decimal.Decimal
	Type              string
	SavingsCalculated decimal.NullDecimal
	Timestamp         int64
	Currency          string
}

// TransactionService writes to the ledger and keeps the stored total in step,
// either through the broker or inline when none is configured.
type TransactionService struct {
	store     ledger.Store
	calc      *savings.Calculator
	ids       identity.Provider
	publisher RecalcPublisher
	initiator payment.Initiator
	views     *Views
	now       func() time.Time
	logger    *slog.Logger
}

type TransactionServiceDeps struct {
	Store     ledger.Store
	Calc      *savings.Calculator
	IDs       identity.Provider
	Publisher RecalcPublisher // nil: recalculate inline
	Initiator payment.Initiator
	Views     *Views
	Now       func() time.Time
	Logger    *slog.Logger
}

func NewTransactionService(d TransactionServiceDeps) *TransactionService {
	s := &TransactionService{
		store:     d.Store,
		calc:      d.Calc,
		ids:       d.IDs,
		publisher: d.Publisher,
		initiator: d.Initiator,
		views:     d.Views,
		now:       d.Now,
		logger:    d.Logger,
	}
	if s.ids == nil {
		s.ids = identity.ContextProvider{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.initiator == nil {
		s.initiator = payment.LogInitiator{Logger: s.logger}
	}
	return s
}

func (s *TransactionService) user(ctx context.Context) (string, error) {
	id, ok := s.ids.CurrentUser(ctx)
	if !ok {
		return "", core.ErrUnauthenticated
	}
	return id, nil
}

// Record validates and appends a transaction, then requests a recomputation of
// the stored total. The returned transaction carries the assigned id.
func (s *TransactionService) Record(ctx context.Context, in RecordInput) (core.Transaction, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		UserID:            userID,
		Description:       strings.TrimSpace(in.Description),
		Amount:            in.Amount,
		Type:              core.NormalizeType(in.Type),
		SavingsCalculated: in.SavingsCalculated.Decimal,
		Timestamp:         in.Timestamp,
		Currency:          strings.TrimSpace(in.Currency),
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = s.now().UnixMilli()
	}
	if tx.Currency == "" {
		tx.Currency = s.calc.Currency()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if tx.Type.HasRoundUp() && !in.SavingsCalculated.Valid {
		pct, err := s.savingsPercentage(ctx, userID)
		if err != nil {
			return core.Transaction{}, err
		}
		tx.SavingsCalculated = core.RoundUpPortion(tx.Amount, pct)
	}

	id, err := s.store.AppendTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, core.StoreFailure("failed to append transaction", err)
	}
	tx.ID = id
	s.views.Invalidate(userID)

	s.logger.InfoContext(ctx, "Transaction recorded", applog.NewFields().
		WithOperation(applog.OpRecord).
		WithUser(userID).
		ToSlice()...)

	s.requestRecalculation(ctx, userID, string(tx.Type))
	return tx, nil
}

// savingsPercentage is zero for users who have not set up a profile yet.
func (s *TransactionService) savingsPercentage(ctx context.Context, userID string) (decimal.Decimal, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, core.StoreFailure("failed to read profile", err)
	}
	if !p.Active {
		return decimal.Zero, nil
	}
	return p.SavingsPercentage, nil
}

// requestRecalculation never fails the caller: the transaction is already
// stored and the next recomputation will pick it up.
func (s *TransactionService) requestRecalculation(ctx context.Context, userID, reason string) {
	if s.publisher != nil {
		err := s.publisher.PublishRecalculate(ctx, userID, reason)
		if err == nil {
			return
		}
		s.logger.WarnContext(ctx, "Failed to publish recalculation, recalculating inline",
			applog.NewFields().WithUser(userID).WithError(err).ToSlice()...)
	}
	if _, err := s.calc.RecalculateTotalSaved(identity.WithUser(ctx, userID)); err != nil {
		s.logger.ErrorContext(ctx, "Inline recalculation failed",
			applog.NewFields().WithOperation(applog.OpRecalculate).WithUser(userID).WithError(err).ToSlice()...)
	}
}

// Withdraw records a WITHDRAW transaction after checking the freshly
// recomputed total covers it.
func (s *TransactionService) Withdraw(ctx context.Context, amount decimal.Decimal, description string) (core.Transaction, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if !amount.IsPositive() {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	total, err := s.calc.RecalculateTotalSaved(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if amount.GreaterThan(total) {
		s.logger.WarnContext(ctx, "Withdrawal rejected", applog.NewFields().
			WithOperation(applog.OpWithdraw).
			WithUser(userID).
			WithTotal(total, "").
			ToSlice()...)
		return core.Transaction{}, fmt.Errorf("%w: requested %s, available %s",
			core.ErrInsufficientSavings, amount.StringFixed(2), total.StringFixed(2))
	}

	if strings.TrimSpace(description) == "" {
		description = "Withdrawal"
	}
	return s.Record(ctx, RecordInput{
		Description: description,
		Amount:      amount,
		Type:        string(core.Withdraw),
	})
}

// StartDeposit hands a top-up to the payment flow. Only invalid input is
// reported; initiator failures are logged.
func (s *TransactionService) StartDeposit(ctx context.Context, amount decimal.Decimal, currency string) (payment.Request, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return payment.Request{}, err
	}
	if strings.TrimSpace(currency) == "" {
		currency = s.calc.Currency()
	}
	req := payment.NewRequest(userID, amount, currency)
	if err := req.Validate(); err != nil {
		return payment.Request{}, err
	}
	if err := s.initiator.Initiate(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "Payment initiation failed", applog.NewFields().
			WithOperation(applog.OpDeposit).
			WithUser(userID).
			WithError(err).
			ToSlice()...)
	}
	return req, nil
}

// ListRecent returns up to limit transactions, newest first. Pending entries
// (timestamp 0) sort last.
func (s *TransactionService) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	userID, err := s.user(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", core.ErrInvalidArgument)
	}
	txs, err := s.store.ListTransactions(ctx, userID, ledger.All())
	if err != nil {
		return nil, core.StoreFailure("failed to read transactions", err)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Timestamp != txs[j].Timestamp {
			return txs[i].Timestamp > txs[j].Timestamp
		}
		return txs[i].ID > txs[j].ID
	})
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}
