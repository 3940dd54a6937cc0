package http

import (
	"time"

	"smartsave/internal/core"
)

const displayTimeLayout = "02 Jan 2006, 15:04"

// formatTimestamp renders a ledger timestamp for lists. Entries still being
// finalized carry timestamp 0.
func formatTimestamp(ts int64) string {
	if ts == 0 {
		return "Processing"
	}
	return time.UnixMilli(ts).UTC().Format(displayTimeLayout)
}

// savingsImpact is the signed change a transaction makes to the savings
// balance, e.g. "+ 1.20 EUR". Round-up entries with no savings render empty.
func savingsImpact(tx core.Transaction) string {
	cur := tx.CurrencyOr(core.DefaultCurrency)
	switch tx.Type {
	case core.Income, core.Expense:
		switch {
		case tx.SavingsCalculated.IsPositive():
			return "+ " + core.FormatAmount(tx.SavingsCalculated, cur)
		case tx.SavingsCalculated.IsNegative():
			return core.FormatAmount(tx.SavingsCalculated, cur)
		}
		return ""
	case core.Withdraw:
		return "- " + core.FormatAmount(tx.Amount, cur)
	case core.SavingsDeposit, core.InterestPayment:
		return "+ " + core.FormatAmount(tx.Amount, cur)
	default:
		return ""
	}
}
