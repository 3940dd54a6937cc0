// Package worker consumes the broker queues: it keeps stored totals in step
// with the ledger, exports growth series and hands deposits to the payment flow.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"smartsave/internal/amqp"
	"smartsave/internal/cache"
	"smartsave/internal/identity"
	applog "smartsave/internal/log"
	"smartsave/internal/payment"
	"smartsave/internal/savings"
	"smartsave/internal/sheets"
)

const seenTokens = 4096

type Config struct {
	GrowthMonths int
	// TokenTTL bounds how long a payment idempotency token is remembered.
	TokenTTL time.Duration
}

type Worker struct {
	calc      *savings.Calculator
	exporter  sheets.GrowthExporter
	initiator payment.Initiator
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger

	tokens *cache.LRUCache[struct{}]

	mu    sync.Mutex
	users map[string]struct{}
}

// New builds a worker. exporter and initiator may be nil: exports are then
// skipped and payments only logged.
func New(calc *savings.Calculator, exporter sheets.GrowthExporter, initiator payment.Initiator, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GrowthMonths < 1 {
		cfg.GrowthMonths = 6
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if initiator == nil {
		initiator = payment.LogInitiator{Logger: logger}
	}
	return &Worker{
		calc:      calc,
		exporter:  exporter,
		initiator: initiator,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
		tokens:    cache.NewLRUCache[struct{}](seenTokens, cfg.TokenTTL),
		users:     map[string]struct{}{},
	}
}

// Handlers adapts the worker to the AMQP consumer.
func (w *Worker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		Recalculate: w.HandleRecalculate,
		Payment:     w.HandlePayment,
	}
}

// HandleRecalculate persists the user's total and refreshes their export.
// Only the recalculation decides redelivery; export failures are logged.
func (w *Worker) HandleRecalculate(ctx context.Context, msg *amqp.RecalculateMessage) error {
	ctx = identity.WithUser(ctx, msg.UserID)
	total, err := w.calc.RecalculateTotalSaved(ctx)
	if err != nil {
		return fmt.Errorf("recalculate total for %s: %w", msg.UserID, err)
	}

	w.mu.Lock()
	w.users[msg.UserID] = struct{}{}
	w.mu.Unlock()

	w.logger.DebugContext(ctx, "Recalculation message processed", applog.NewFields().
		WithComponent(applog.ComponentWorker).
		WithUser(msg.UserID).
		WithTotal(total, w.calc.Currency()).
		ToSlice()...)

	if err := w.export(ctx, msg.UserID); err != nil {
		w.logger.ErrorContext(ctx, "Growth export failed", applog.NewFields().
			WithOperation(applog.OpExport).
			WithUser(msg.UserID).
			WithError(err).
			ToSlice()...)
	}
	return nil
}

// HandlePayment forwards a deposit once per idempotency token.
func (w *Worker) HandlePayment(ctx context.Context, msg *amqp.PaymentRequestMessage) error {
	if _, dup := w.tokens.Get(msg.IdempotencyToken); dup {
		w.logger.InfoContext(ctx, "Duplicate payment request dropped",
			"user_id", msg.UserID,
			"idempotency_token", msg.IdempotencyToken)
		return nil
	}

	req := payment.Request{
		UserID:           msg.UserID,
		Amount:           msg.Amount,
		Currency:         msg.Currency,
		IdempotencyToken: msg.IdempotencyToken,
	}
	if err := w.initiator.Initiate(ctx, req); err != nil {
		return fmt.Errorf("initiate payment %s: %w", msg.IdempotencyToken, err)
	}
	w.tokens.Set(msg.IdempotencyToken, struct{}{})
	return nil
}

func (w *Worker) export(ctx context.Context, userID string) error {
	if w.exporter == nil {
		return nil
	}
	now := w.now().UTC()
	pts, err := w.calc.MonthlySavingsGrowth(identity.WithUser(ctx, userID), now.Year(), int(now.Month()), w.cfg.GrowthMonths)
	if err != nil {
		return err
	}
	return w.exporter.ExportGrowth(ctx, userID, pts)
}

// Users lists everyone the worker has recalculated, sorted.
func (w *Worker) Users() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.users))
	for u := range w.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// ExportAll re-exports every known user. It returns the number of failures.
func (w *Worker) ExportAll(ctx context.Context) int {
	failed := 0
	for _, u := range w.Users() {
		if ctx.Err() != nil {
			return failed
		}
		if err := w.export(ctx, u); err != nil {
			failed++
			w.logger.ErrorContext(ctx, "Periodic growth export failed", applog.NewFields().
				WithOperation(applog.OpExport).
				WithUser(u).
				WithError(err).
				ToSlice()...)
		}
	}
	return failed
}

// RunExports calls ExportAll every interval until ctx is done. Months roll
// over without any message arriving, so the series needs the periodic refresh.
func (w *Worker) RunExports(ctx context.Context, interval time.Duration) {
	if w.exporter == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.ExportAll(ctx); n > 0 {
				w.logger.WarnContext(ctx, "Periodic export finished with failures", "failed", n)
			}
		}
	}
}
