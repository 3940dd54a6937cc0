package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecalculateMessage asks the worker to replay a user's ledger and persist the total.
type RecalculateMessage struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentRequestMessage hands a top-up to the external payment flow.
type PaymentRequestMessage struct {
	UserID           string          `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	IdempotencyToken string          `json:"idempotency_token"`
	Timestamp        time.Time       `json:"timestamp"`
}

func NewRecalculateMessage(userID, reason string) *RecalculateMessage {
	return &RecalculateMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *RecalculateMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errors.New("recalculate message without user")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RecalculateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecalculateMessageFromJSON(data []byte) (*RecalculateMessage, error) {
	var msg RecalculateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *PaymentRequestMessage) Validate() error {
	switch {
	case strings.TrimSpace(m.UserID) == "":
		return errors.New("payment request without user")
	case !m.Amount.IsPositive():
		return errors.New("payment request amount must be positive")
	case strings.TrimSpace(m.IdempotencyToken) == "":
		return errors.New("payment request without idempotency token")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *PaymentRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PaymentRequestMessageFromJSON(data []byte) (*PaymentRequestMessage, error) {
	var msg PaymentRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
