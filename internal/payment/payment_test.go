package payment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"smartsave/internal/amqp"
	"smartsave/internal/core"
)

type fakePublisher struct {
	got []*amqp.PaymentRequestMessage
	err error
}

func (f *fakePublisher) PublishPaymentRequest(_ context.Context, msg *amqp.PaymentRequestMessage) error {
	f.got = append(f.got, msg)
	return f.err
}

func TestNewRequest(t *testing.T) {
	a := NewRequest("u1", decimal.NewFromInt(10), "")
	b := NewRequest("u1", decimal.NewFromInt(10), "BGN")
	if a.Currency != core.DefaultCurrency || b.Currency != "BGN" {
		t.Fatalf("unexpected currencies %q %q", a.Currency, b.Currency)
	}
	if a.IdempotencyToken == "" || a.IdempotencyToken == b.IdempotencyToken {
		t.Fatalf("each request needs its own token")
	}
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		err  error
	}{
		{"ok", NewRequest("u1", decimal.NewFromInt(1), "EUR"), nil},
		{"no user", NewRequest("", decimal.NewFromInt(1), "EUR"), core.ErrUnauthenticated},
		{"zero amount", NewRequest("u1", decimal.Zero, "EUR"), core.ErrInvalidArgument},
		{"no token", Request{UserID: "u1", Amount: decimal.NewFromInt(1)}, core.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.err == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestAMQPInitiator(t *testing.T) {
	pub := &fakePublisher{}
	initiator := NewAMQPInitiator(pub)
	req := NewRequest("u1", decimal.RequireFromString("12.5"), "EUR")
	if err := initiator.Initiate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].IdempotencyToken != req.IdempotencyToken || !pub.got[0].Amount.Equal(req.Amount) {
		t.Fatalf("unexpected published message %+v", pub.got)
	}

	pub.err = errors.New("broker down")
	if err := initiator.Initiate(context.Background(), req); err == nil {
		t.Fatal("publisher errors should be returned to the caller for logging")
	}
	if err := initiator.Initiate(context.Background(), Request{}); err == nil || len(pub.got) != 2 {
		t.Fatal("invalid requests must not be published")
	}
}

func TestLogInitiator(t *testing.T) {
	var buf bytes.Buffer
	l := LogInitiator{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	req := NewRequest("u1", decimal.NewFromInt(3), "EUR")
	if err := l.Initiate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), req.IdempotencyToken) {
		t.Fatalf("token not logged: %q", buf.String())
	}
}
