// Package savings holds the aggregation engine: the classification rule table,
// whole-ledger and windowed reducers, the monthly growth series and the
// half-year interest projection.
package savings

import (
	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

// Field names the transaction value a rule reads.
type Field int

const (
	FieldSavingsCalculated Field = iota + 1
	FieldAmount
)

func (f Field) String() string {
	switch f {
	case FieldSavingsCalculated:
		return "savingsCalculated"
	case FieldAmount:
		return "amount"
	default:
		return "unknown"
	}
}

// Rule says which field of a transaction counts toward savings and with what sign.
type Rule struct {
	Field Field
	Sign  int // +1 or -1
}

// RuleTable maps a transaction type to its contribution rule. Types absent
// from the table contribute zero.
type RuleTable map[core.TransactionType]Rule

// DefaultRules is the canonical policy shared by every reducer.
func DefaultRules() RuleTable {
	return RuleTable{
		core.Income:          {Field: FieldSavingsCalculated, Sign: +1},
		core.Expense:         {Field: FieldSavingsCalculated, Sign: +1},
		core.Withdraw:        {Field: FieldAmount, Sign: -1},
		core.SavingsDeposit:  {Field: FieldAmount, Sign: +1},
		core.InterestPayment: {Field: FieldAmount, Sign: +1},
	}
}

// Without returns a copy of the table with the given types removed.
func (rt RuleTable) Without(types ...core.TransactionType) RuleTable {
	out := make(RuleTable, len(rt))
	for k, v := range rt {
		out[k] = v
	}
	for _, t := range types {
		delete(out, core.NormalizeType(string(t)))
	}
	return out
}

// Contribution returns the signed amount tx adds to the savings balance.
func (rt RuleTable) Contribution(tx core.Transaction) decimal.Decimal {
	rule, ok := rt[core.NormalizeType(string(tx.Type))]
	if !ok {
		return decimal.Zero
	}
	var v decimal.Decimal
	switch rule.Field {
	case FieldSavingsCalculated:
		v = tx.SavingsCalculated
	case FieldAmount:
		v = tx.Amount
	default:
		return decimal.Zero
	}
	if rule.Sign < 0 {
		return v.Neg()
	}
	return v
}

// TypeSet is the subset of types a windowed metric counts.
type TypeSet []core.TransactionType

var (
	InterestOnly             = TypeSet{core.InterestPayment}
	IncomeSavingsOnly        = TypeSet{core.Income}
	IncomeSavingsAndInterest = TypeSet{core.Income, core.InterestPayment}
)

func (s TypeSet) Has(t core.TransactionType) bool {
	n := core.NormalizeType(string(t))
	for _, v := range s {
		if v == n {
			return true
		}
	}
	return false
}
