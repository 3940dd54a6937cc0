package savings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

// BuildGrowthSeries returns n points, oldest first, each holding the
// cumulative balance as of the last millisecond of a month. The last point is
// (year, month). Transactions are expected to have been fetched up to the end
// of the target month; later ones are ignored anyway.
func BuildGrowthSeries(rules RuleTable, txs []core.Transaction, year, month, n int) ([]core.GrowthPoint, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: number of months must be positive, got %d", core.ErrInvalidArgument, n)
	}

	sorted := sortedByTime(txs)
	points := make([]core.GrowthPoint, 0, n)
	running := decimal.Zero
	next := 0
	for i := n - 1; i >= 0; i-- {
		end := monthEnd(year, month-i)
		cutoff := end.UnixMilli()
		for next < len(sorted) && sorted[next].Timestamp <= cutoff {
			running = running.Add(rules.Contribution(sorted[next]))
			next++
		}
		points = append(points, core.GrowthPoint{
			MonthName:         end.Month().String()[:3],
			Year:              end.Year(),
			Month:             int(end.Month()),
			CumulativeSavings: running,
		})
	}
	return points, nil
}
