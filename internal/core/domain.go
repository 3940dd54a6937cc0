package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income          TransactionType = "INCOME"
	Expense         TransactionType = "EXPENSE"
	Withdraw        TransactionType = "WITHDRAW"
	SavingsDeposit  TransactionType = "SAVINGS_DEPOSIT"
	InterestPayment TransactionType = "INTEREST_PAYMENT"
)

// DefaultCurrency is the label reported when no counted transaction carries one.
const DefaultCurrency = "EUR"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	// Transaction is a single ledger entry. Timestamp is epoch milliseconds UTC;
	// zero marks an entry that has not been finalized yet.
	Transaction struct {
		ID                string
		UserID            string
		Description       string
		Amount            decimal.Decimal
		Type              TransactionType
		SavingsCalculated decimal.Decimal // round-up portion, meaningful for INCOME and EXPENSE
		Timestamp         int64
		Currency          string
	}

	Profile struct {
		UserID            string
		SavingsPercentage decimal.Decimal
		StartDate         Date
		TotalSaved        decimal.Decimal
		Active            bool
	}
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidMonth     = fmt.Errorf("%w: invalid month", ErrInvalidArgument)
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrInvalidArgument)
	ErrInvalidType      = fmt.Errorf("%w: unknown transaction type", ErrInvalidArgument)
	ErrEmptyDescription = fmt.Errorf("%w: empty description", ErrInvalidArgument)
	ErrInvalidPercent   = fmt.Errorf("%w: savings percentage must be between 0 and 100", ErrInvalidArgument)

	ErrUnauthenticated     = errors.New("user not logged in")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInsufficientSavings = errors.New("insufficient savings")
)

// StoreFailure wraps a persistence fault so callers can match ErrStoreUnavailable
// while keeping the underlying cause.
func StoreFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// NormalizeType upper-cases and trims a raw type label.
func NormalizeType(s string) TransactionType {
	return TransactionType(strings.ToUpper(strings.TrimSpace(s)))
}

func (t TransactionType) IsKnown() bool {
	switch NormalizeType(string(t)) {
	case Income, Expense, Withdraw, SavingsDeposit, InterestPayment:
		return true
	}
	return false
}

// HasRoundUp reports whether the type carries a savingsCalculated portion.
func (t TransactionType) HasRoundUp() bool {
	n := NormalizeType(string(t))
	return n == Income || n == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a yyyy-MM-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrInvalidArgument, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// IsPending reports whether the transaction is still waiting for a timestamp.
func (t Transaction) IsPending() bool {
	return t.Timestamp == 0
}

// CurrencyOr returns the transaction currency or fallback when unlabeled.
func (t Transaction) CurrencyOr(fallback string) string {
	if c := strings.TrimSpace(t.Currency); c != "" {
		return c
	}
	return fallback
}

// Time returns the timestamp as a UTC time.
func (t Transaction) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidArgument)
	}
	if !t.Type.IsKnown() {
		return ErrInvalidType
	}
	if !t.Type.HasRoundUp() && !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidArgument)
	}
	return nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return ErrUnauthenticated
	}
	if p.SavingsPercentage.IsNegative() || p.SavingsPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidPercent
	}
	return nil
}
