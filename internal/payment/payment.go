// Package payment hands deposit requests to an external payment flow. Every
// initiator is best-effort: callers log failures and carry on.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartsave/internal/amqp"
	"smartsave/internal/core"
)

type Request struct {
	UserID           string
	Amount           decimal.Decimal
	Currency         string
	IdempotencyToken string
}

// NewRequest mints a fresh idempotency token. An empty currency falls back to
// core.DefaultCurrency.
func NewRequest(userID string, amount decimal.Decimal, currency string) Request {
	if strings.TrimSpace(currency) == "" {
		currency = core.DefaultCurrency
	}
	return Request{
		UserID:           userID,
		Amount:           amount,
		Currency:         currency,
		IdempotencyToken: uuid.NewString(),
	}
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return core.ErrUnauthenticated
	}
	if !r.Amount.IsPositive() {
		return core.ErrInvalidAmount
	}
	if r.IdempotencyToken == "" {
		return fmt.Errorf("%w: missing idempotency token", core.ErrInvalidArgument)
	}
	return nil
}

type Initiator interface {
	Initiate(ctx context.Context, req Request) error
}

// Publisher is the slice of the AMQP client the initiator needs.
type Publisher interface {
	PublishPaymentRequest(ctx context.Context, msg *amqp.PaymentRequestMessage) error
}

// AMQPInitiator publishes the request for the payment worker.
type AMQPInitiator struct {
	pub Publisher
}

func NewAMQPInitiator(pub Publisher) *AMQPInitiator {
	return &AMQPInitiator{pub: pub}
}

func (a *AMQPInitiator) Initiate(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return a.pub.PublishPaymentRequest(ctx, &amqp.PaymentRequestMessage{
		UserID:           req.UserID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		IdempotencyToken: req.IdempotencyToken,
	})
}

// LogInitiator only records the request. Used when no broker is configured.
type LogInitiator struct {
	Logger *slog.Logger
}

func (l LogInitiator) Initiate(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Payment requested",
		"user_id", req.UserID,
		"amount", req.Amount.String(),
		"currency", req.Currency,
		"idempotency_token", req.IdempotencyToken)
	return nil
}
