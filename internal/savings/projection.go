package savings

import (
	"fmt"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
)

var two = decimal.NewFromInt(2)

// Projection is the simple-interest outlook over half a year.
type Projection struct {
	FutureValue    decimal.Decimal
	InterestEarned decimal.Decimal
}

// ProjectHalfYear applies half of annualRate to currentTotal once.
func ProjectHalfYear(currentTotal, annualRate decimal.Decimal) (Projection, error) {
	if currentTotal.IsNegative() {
		return Projection{}, fmt.Errorf("%w: no current savings to project", core.ErrInvalidArgument)
	}
	if annualRate.IsNegative() {
		return Projection{}, fmt.Errorf("%w: invalid interest rate", core.ErrInvalidArgument)
	}
	interest := currentTotal.Mul(annualRate).Div(two)
	return Projection{
		FutureValue:    currentTotal.Add(interest),
		InterestEarned: interest,
	}, nil
}
