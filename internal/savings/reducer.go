package savings

import (
	"sort"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

// WindowSum is a windowed metric with the currency label reported alongside it.
type WindowSum struct {
	Total    decimal.Decimal
	Currency string
}

// TotalSaved folds every transaction through the rule table. The result does
// not depend on the order of txs.
func TotalSaved(rules RuleTable, txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(rules.Contribution(tx))
	}
	return total
}

// SumWindow sums the contributions of transactions inside w whose type is in
// counted. The currency is taken from the chronologically first counted
// transaction that carries one; fallback is used when none does.
func SumWindow(rules RuleTable, txs []core.Transaction, w Window, counted TypeSet, fallback string) WindowSum {
	total := decimal.Zero
	currency := ""
	for _, tx := range sortedByTime(txs) {
		if !w.Contains(tx.Timestamp) || !counted.Has(tx.Type) {
			continue
		}
		total = total.Add(rules.Contribution(tx))
		if currency == "" {
			currency = tx.CurrencyOr("")
		}
	}
	if currency == "" {
		currency = fallback
	}
	return WindowSum{Total: total, Currency: currency}
}

// sortedByTime returns a copy of txs ordered by timestamp, ties broken by id.
func sortedByTime(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}
