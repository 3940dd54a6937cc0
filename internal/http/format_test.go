package http

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(0); got != "Processing" {
		t.Fatalf("pending entry: got %q", got)
	}
	ts := time.Date(2024, time.February, 3, 14, 5, 0, 0, time.UTC).UnixMilli()
	if got := formatTimestamp(ts); got != "03 Feb 2024, 14:05" {
		t.Fatalf("got %q", got)
	}
}

func TestSavingsImpact(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name string
		tx   core.Transaction
		want string
	}{
		{"income with round-up", core.Transaction{Type: core.Income, Amount: d("100"), SavingsCalculated: d("1.2"), Currency: "EUR"}, "+ 1.20 EUR"},
		{"expense without round-up", core.Transaction{Type: core.Expense, Amount: d("5")}, ""},
		{"negative round-up", core.Transaction{Type: core.Expense, SavingsCalculated: d("-0.5"), Currency: "USD"}, "-0.50 USD"},
		{"withdraw", core.Transaction{Type: core.Withdraw, Amount: d("20")}, "- 20.00 EUR"},
		{"deposit", core.Transaction{Type: core.SavingsDeposit, Amount: d("7.5"), Currency: "EUR"}, "+ 7.50 EUR"},
		{"interest", core.Transaction{Type: core.InterestPayment, Amount: d("0.33"), Currency: "EUR"}, "+ 0.33 EUR"},
		{"unknown", core.Transaction{Type: "REFUND", Amount: d("1")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := savingsImpact(tt.tx); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
