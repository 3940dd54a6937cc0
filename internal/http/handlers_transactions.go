package http

import (
	"net/http"

	applog "smartsave/internal/log"
	"smartsave/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, given, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, applog.OpRecord, err)
		return
	}
	if !given {
		limit = s.deps.RecentLimit
	}
	txs, err := s.deps.Transactions.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, applog.OpRecord, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Transactions []transactionJSON `json:"transactions"`
	}{toTransactionsJSON(txs)})
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpRecord, err)
		return
	}
	tx, err := s.deps.Transactions.Record(r.Context(), services.RecordInput{
		Description:       sanitizeInput(req.Description),
		Amount:            req.Amount.Decimal,
		Type:              req.Type,
		SavingsCalculated: req.SavingsCalculated.nullable(),
		Timestamp:         req.Timestamp,
		Currency:          sanitizeInput(req.Currency),
	})
	if err != nil {
		s.writeError(w, r, applog.OpRecord, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpWithdraw, err)
		return
	}
	tx, err := s.deps.Transactions.Withdraw(r.Context(), req.Amount.Decimal, sanitizeInput(req.Description))
	if err != nil {
		s.writeError(w, r, applog.OpWithdraw, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpDeposit, err)
		return
	}
	p, err := s.deps.Transactions.StartDeposit(r.Context(), req.Amount.Decimal, sanitizeInput(req.Currency))
	if err != nil {
		s.writeError(w, r, applog.OpDeposit, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toPaymentJSON(p))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.Get(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpProfile, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}

func (s *Server) handleSetupProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpProfile, err)
		return
	}
	if !req.SavingsPercentage.Set {
		s.writeError(w, r, applog.OpProfile, errMissingField("savings_percentage"))
		return
	}
	p, err := s.deps.Profiles.Setup(r.Context(), req.SavingsPercentage.Decimal)
	if err != nil {
		s.writeError(w, r, applog.OpProfile, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}
