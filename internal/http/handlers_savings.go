package http

import (
	"net/http"

	"smartsave/internal/core"
	applog "smartsave/internal/log"
	"smartsave/internal/savings"
)

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.deps.Calc.TotalSaved(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRecalculate, err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountJSON(savings.WindowSum{Total: total, Currency: s.deps.Calc.Currency()}))
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	total, err := s.deps.Calc.RecalculateTotalSaved(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRecalculate, err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountJSON(savings.WindowSum{Total: total, Currency: s.deps.Calc.Currency()}))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Calc.ProgressThisMonth(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpProgress, err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountJSON(sum))
}

// handleInterest serves the rolling window unless a calendar month is given.
func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	year, month, calendar, err := parseYearMonth(r)
	op := interestOp(r)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	var sum savings.WindowSum
	if calendar {
		sum, err = s.deps.Calc.InterestForMonth(r.Context(), year, month)
	} else {
		sum, err = s.deps.Calc.InterestEarnedLastMonth(r.Context())
	}
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountJSON(sum))
}

// interestOp names the window the caller asked for, even when the
// parameters fail to parse.
func interestOp(r *http.Request) string {
	q := r.URL.Query()
	if q.Has("year") || q.Has("month") {
		return applog.OpInterestMonth
	}
	return applog.OpInterestLast
}

func (s *Server) handleIncomeSavings(w http.ResponseWriter, r *http.Request) {
	year, month, err := requireYearMonth(r)
	if err != nil {
		s.writeError(w, r, applog.OpIncomeMonth, err)
		return
	}
	sum, err := s.deps.Calc.IncomeSavingsForMonth(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, applog.OpIncomeMonth, err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountJSON(sum))
}

func (s *Server) handleMonthProgress(w http.ResponseWriter, r *http.Request) {
	year, month, err := requireYearMonth(r)
	if err != nil {
		s.writeError(w, r, applog.OpProgressMonth, err)
		return
	}
	sum, err := s.deps.Calc.ProgressForMonth(r.Context(), year, month)
	if err != nil {
		s.writeError(w, r, applog.OpProgressMonth, err)
		return
	}
	writeJSON(w, http.StatusOK, toAmountJSON(sum))
}

// handleGrowth defaults to the current month and the configured series length.
func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	year, month, ok, err := parseYearMonth(r)
	if err != nil {
		s.writeError(w, r, applog.OpGrowth, err)
		return
	}
	if !ok {
		now := s.now().UTC()
		year, month = now.Year(), int(now.Month())
	}
	n, given, err := queryInt(r, "months")
	if err != nil {
		s.writeError(w, r, applog.OpGrowth, err)
		return
	}
	if !given {
		n = s.deps.GrowthMonths
	}

	pts, err := s.deps.Dashboard.Growth(r.Context(), year, month, n)
	if err != nil {
		s.writeError(w, r, applog.OpGrowth, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Points   []growthPointJSON `json:"points"`
		Currency string            `json:"currency"`
	}{toGrowthJSON(pts), s.deps.Calc.Currency()})
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	rate, err := rateParam(r)
	if err != nil {
		s.writeError(w, r, applog.OpProjection, err)
		return
	}
	proj, err := s.deps.Dashboard.Projection(r.Context(), rate)
	if err != nil {
		s.writeError(w, r, applog.OpProjection, err)
		return
	}
	out := projectionJSON{
		FutureValue:    proj.FutureValue.StringFixed(2),
		InterestEarned: proj.InterestEarned.StringFixed(2),
	}
	if rate != nil {
		out.AnnualRate = rate.String()
	} else {
		out.AnnualRate = s.deps.Dashboard.AnnualRate().String()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Dashboard.Build(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRecalculate, err)
		return
	}
	if st.Currency == "" {
		st.Currency = core.DefaultCurrency
	}
	writeJSON(w, http.StatusOK, toDashboardJSON(st))
}
