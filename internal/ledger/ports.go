// Package ledger defines the persistence ports for transactions and savings profiles.
package ledger

import (
	"context"
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

// ErrNotFound is returned by ProfileReader when the user has no profile yet.
var ErrNotFound = errors.New("not found")

// Range selects transactions by timestamp, inclusive on both ends.
type Range struct {
	Start int64
	End   int64
}

// All matches every timestamp, including the pending sentinel 0.
func All() Range { return Range{Start: math.MinInt64, End: math.MaxInt64} }

// Until matches every timestamp up to and including end.
func Until(end int64) Range { return Range{Start: math.MinInt64, End: end} }

// Between matches timestamps in [start, end].
func Between(start, end int64) Range { return Range{Start: start, End: end} }

func (r Range) Contains(ts int64) bool { return ts >= r.Start && ts <= r.End }

type (
	TransactionReader interface {
		// ListTransactions returns the user's transactions whose timestamp falls in r.
		// Order is unspecified.
		ListTransactions(ctx context.Context, userID string, r Range) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (id string, err error)
	}

	ProfileReader interface {
		GetProfile(ctx context.Context, userID string) (core.Profile, error)
	}

	ProfileWriter interface {
		SaveProfile(ctx context.Context, p core.Profile) error
		// SetTotalSaved overwrites only the derived total, creating a profile if needed.
		SetTotalSaved(ctx context.Context, userID string, total decimal.Decimal) error
	}

	// Store is the full persistence surface a backend provides.
	Store interface {
		TransactionReader
		TransactionWriter
		ProfileReader
		ProfileWriter
	}
)
