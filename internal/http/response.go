package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"smartsave/internal/core"
	"smartsave/internal/ledger"
	applog "smartsave/internal/log"
	"smartsave/internal/payment"
	"smartsave/internal/savings"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInsufficientSavings):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and hides their detail from clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		msg = "storage unavailable, try again later"
	case http.StatusInternalServerError:
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).Failure(r.Context(), "Request failed", op, err, nil)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

type transactionJSON struct {
	ID                string `json:"id"`
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	Type              string `json:"type"`
	SavingsCalculated string `json:"savings_calculated"`
	Timestamp         int64  `json:"timestamp"`
	Currency          string `json:"currency"`
	DisplayTime       string `json:"display_time"`
	SavingsImpact     string `json:"savings_impact"`
}

func toTransactionJSON(tx core.Transaction) transactionJSON {
	return transactionJSON{
		ID:                tx.ID,
		Description:       tx.Description,
		Amount:            tx.Amount.StringFixed(2),
		Type:              string(tx.Type),
		SavingsCalculated: tx.SavingsCalculated.StringFixed(2),
		Timestamp:         tx.Timestamp,
		Currency:          tx.Currency,
		DisplayTime:       formatTimestamp(tx.Timestamp),
		SavingsImpact:     savingsImpact(tx),
	}
}

func toTransactionsJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionJSON(tx))
	}
	return out
}

type amountJSON struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func toAmountJSON(ws savings.WindowSum) amountJSON {
	return amountJSON{
		Total:    ws.Total.StringFixed(2),
		Currency: ws.Currency,
		Display:  core.FormatAmount(ws.Total, ws.Currency),
	}
}

type growthPointJSON struct {
	Month             string `json:"month"`
	Year              int    `json:"year"`
	MonthNumber       int    `json:"month_number"`
	CumulativeSavings string `json:"cumulative_savings"`
}

func toGrowthJSON(pts []core.GrowthPoint) []growthPointJSON {
	out := make([]growthPointJSON, 0, len(pts))
	for _, p := range pts {
		out = append(out, growthPointJSON{
			Month:             p.MonthName,
			Year:              p.Year,
			MonthNumber:       p.Month,
			CumulativeSavings: p.CumulativeSavings.StringFixed(2),
		})
	}
	return out
}

type projectionJSON struct {
	FutureValue    string `json:"future_value"`
	InterestEarned string `json:"interest_earned"`
	AnnualRate     string `json:"annual_rate"`
}

type dashboardJSON struct {
	TotalSaved         string            `json:"total_saved"`
	ExpectedReturn     string            `json:"expected_return"`
	Currency           string            `json:"currency"`
	RecentTransactions []transactionJSON `json:"recent_transactions"`
}

func toDashboardJSON(st core.DashboardState) dashboardJSON {
	return dashboardJSON{
		TotalSaved:         st.TotalSaved.StringFixed(2),
		ExpectedReturn:     st.ExpectedReturn.StringFixed(2),
		Currency:           st.Currency,
		RecentTransactions: toTransactionsJSON(st.RecentTransactions),
	}
}

type profileJSON struct {
	UserID            string `json:"user_id"`
	SavingsPercentage string `json:"savings_percentage"`
	StartDate         string `json:"start_date"`
	TotalSaved        string `json:"total_saved"`
	Active            bool   `json:"active"`
}

func toProfileJSON(p core.Profile) profileJSON {
	start := ""
	if !p.StartDate.IsZero() {
		start = p.StartDate.String()
	}
	return profileJSON{
		UserID:            p.UserID,
		SavingsPercentage: p.SavingsPercentage.String(),
		StartDate:         start,
		TotalSaved:        p.TotalSaved.StringFixed(2),
		Active:            p.Active,
	}
}

type paymentJSON struct {
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	IdempotencyToken string `json:"idempotency_token"`
	Status           string `json:"status"`
}

func toPaymentJSON(req payment.Request) paymentJSON {
	return paymentJSON{
		Amount:           req.Amount.StringFixed(2),
		Currency:         req.Currency,
		IdempotencyToken: req.IdempotencyToken,
		Status:           "initiated",
	}
}
