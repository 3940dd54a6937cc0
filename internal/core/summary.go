package core

import "github.com/shopspring/decimal"

// GrowthPoint is the cumulative balance at the end of one month.
type GrowthPoint struct {
	MonthName         string // English three-letter abbreviation
	Year              int
	Month             int // 1-12
	CumulativeSavings decimal.Decimal
}

// DashboardState is what the dashboard screen renders.
type DashboardState struct {
	TotalSaved         decimal.Decimal
	ExpectedReturn     decimal.Decimal
	Currency           string
	RecentTransactions []Transaction
}
