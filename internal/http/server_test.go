package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/identity"
	"smartsave/internal/ledger"
	"smartsave/internal/ledger/memory"
	applog "smartsave/internal/log"
	"smartsave/internal/savings"
	"smartsave/internal/services"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

// flakyStore fails reads on demand.
type flakyStore struct {
	*memory.Store
	failReads bool
}

func (s *flakyStore) ListTransactions(ctx context.Context, userID string, r ledger.Range) ([]core.Transaction, error) {
	if s.failReads {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListTransactions(ctx, userID, r)
}

func newTestServer(t *testing.T, ready func(context.Context) error) (*Server, *flakyStore) {
	t.Helper()
	return newTestServerWithLog(t, ready, io.Discard)
}

func newTestServerWithLog(t *testing.T, ready func(context.Context) error, logOut io.Writer) (*Server, *flakyStore) {
	t.Helper()
	store := &flakyStore{Store: memory.New()}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return fixedNow }
	// each recorded transaction lands a minute after the previous one
	tick := fixedNow
	txNow := func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	calc := savings.NewCalculator(store, identity.ContextProvider{}, savings.Options{Now: now, Logger: quiet})
	views := services.NewViews(16, time.Minute, nil)
	txs := services.NewTransactionService(services.TransactionServiceDeps{
		Store: store, Calc: calc, Views: views, Now: txNow, Logger: quiet,
	})
	srv := NewServer(":0", Deps{
		Calc:         calc,
		Transactions: txs,
		Profiles:     services.NewProfileService(store, nil, views, now, quiet),
		Dashboard:    services.NewDashboardService(calc, txs, nil, views, decimal.RequireFromString("0.04"), 5, quiet),
		Ready:        ready,
		Logger:       applog.New(applog.Config{Level: slog.LevelError, Handler: slog.NewTextHandler(logOut, nil)}),
		Now:          now,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = "203.0.113.7:1234"
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, "", ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down, _ := newTestServer(t, func(context.Context) error { return errors.New("table missing") })
	rr := do(t, down, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable || decode[readyJSON](t, rr).Status != "not ready" {
		t.Fatalf("expected 503 when the store is down, got %d", rr.Code)
	}
}

func TestSecurityHeadersAndMethods(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/api/savings/total", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Fatalf("missing %s header", h)
		}
	}

	rr = do(t, srv, http.MethodDelete, "/api/transactions", "u1", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "GET, POST" {
		t.Fatalf("Allow = %q", got)
	}
}

func TestUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/savings/total", "/api/dashboard", "/api/savings/progress"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rr.Code)
		}
		if body := decode[errorBody](t, rr); body.Error != core.ErrUnauthenticated.Error() {
			t.Fatalf("%s: unexpected error body %q", path, body.Error)
		}
	}
}

func TestSavingsFlow(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPut, "/api/profile", "u1", `{"savings_percentage": 10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("profile setup: %d %s", rr.Code, rr.Body)
	}
	if p := decode[profileJSON](t, rr); p.StartDate != "2024-03-15" || !p.Active {
		t.Fatalf("unexpected profile: %+v", p)
	}

	feb := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC).UnixMilli()
	rr = do(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"description":"salary","amount":"500,00","type":"income","timestamp":`+itoa(feb)+`}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("record: %d %s", rr.Code, rr.Body)
	}
	tx := decode[transactionJSON](t, rr)
	if tx.SavingsCalculated != "50.00" || tx.Type != "INCOME" || tx.SavingsImpact != "+ 50.00 EUR" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"description":"interest","amount":1.5,"type":"INTEREST_PAYMENT"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("record interest: %d %s", rr.Code, rr.Body)
	}

	if got := decode[amountJSON](t, do(t, srv, http.MethodGet, "/api/savings/total", "u1", "")); got.Total != "51.50" {
		t.Fatalf("total = %+v", got)
	}
	if got := decode[amountJSON](t, do(t, srv, http.MethodGet, "/api/savings/interest", "u1", "")); got.Total != "1.50" {
		t.Fatalf("rolling interest = %+v", got)
	}
	if got := decode[amountJSON](t, do(t, srv, http.MethodGet, "/api/savings/income?year=2024&month=2", "u1", "")); got.Total != "50.00" || got.Currency != "EUR" {
		t.Fatalf("february income savings = %+v", got)
	}
	if got := decode[amountJSON](t, do(t, srv, http.MethodGet, "/api/savings/month-progress?year=2024&month=3", "u1", "")); got.Total != "1.50" {
		t.Fatalf("march progress = %+v", got)
	}

	growth := decode[struct {
		Points []growthPointJSON `json:"points"`
	}](t, do(t, srv, http.MethodGet, "/api/savings/growth?months=3", "u1", ""))
	if len(growth.Points) != 3 || growth.Points[1].Month != "Feb" || growth.Points[1].CumulativeSavings != "50.00" || growth.Points[2].CumulativeSavings != "51.50" {
		t.Fatalf("unexpected growth: %+v", growth.Points)
	}

	dash := decode[dashboardJSON](t, do(t, srv, http.MethodGet, "/api/dashboard", "u1", ""))
	if dash.TotalSaved != "51.50" || dash.ExpectedReturn != "1.03" || len(dash.RecentTransactions) != 2 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
	if dash.RecentTransactions[0].Description != "interest" {
		t.Fatalf("recent transactions must be newest first: %+v", dash.RecentTransactions)
	}

	proj := decode[projectionJSON](t, do(t, srv, http.MethodGet, "/api/savings/projection?rate=0.10", "u1", ""))
	if proj.InterestEarned != "2.58" || proj.AnnualRate != "0.1" {
		t.Fatalf("unexpected projection: %+v", proj)
	}

	rr = do(t, srv, http.MethodPost, "/api/withdrawals", "u1", `{"amount":"100"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overdraw, got %d %s", rr.Code, rr.Body)
	}
	rr = do(t, srv, http.MethodPost, "/api/withdrawals", "u1", `{"amount":"20"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("withdraw: %d %s", rr.Code, rr.Body)
	}
	if got := decode[amountJSON](t, do(t, srv, http.MethodPost, "/api/savings/recalculate", "u1", "")); got.Total != "31.50" {
		t.Fatalf("recalculated total = %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/api/payments", "u1", `{"amount":"25"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("deposit: %d %s", rr.Code, rr.Body)
	}
	if p := decode[paymentJSON](t, rr); p.IdempotencyToken == "" || p.Currency != "EUR" {
		t.Fatalf("unexpected payment: %+v", p)
	}

	list := decode[struct {
		Transactions []transactionJSON `json:"transactions"`
	}](t, do(t, srv, http.MethodGet, "/api/transactions?limit=2", "u1", ""))
	if len(list.Transactions) != 2 || list.Transactions[0].Type != "WITHDRAW" {
		t.Fatalf("unexpected listing: %+v", list.Transactions)
	}

	// another user sees nothing
	if got := decode[amountJSON](t, do(t, srv, http.MethodGet, "/api/savings/total", "u2", "")); got.Total != "0.00" {
		t.Fatalf("users must be isolated: %+v", got)
	}
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"month out of range", http.MethodGet, "/api/savings/income?year=2024&month=13", "", http.StatusBadRequest},
		{"month zero", http.MethodGet, "/api/savings/month-progress?year=2024&month=0", "", http.StatusBadRequest},
		{"missing month", http.MethodGet, "/api/savings/income?year=2024", "", http.StatusBadRequest},
		{"calendar endpoint without params", http.MethodGet, "/api/savings/month-progress", "", http.StatusBadRequest},
		{"non-numeric year", http.MethodGet, "/api/savings/interest?year=abc&month=1", "", http.StatusBadRequest},
		{"zero months", http.MethodGet, "/api/savings/growth?months=0", "", http.StatusBadRequest},
		{"bad rate", http.MethodGet, "/api/savings/projection?rate=x", "", http.StatusBadRequest},
		{"negative rate", http.MethodGet, "/api/savings/projection?rate=-0.1", "", http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/transactions", `{"description":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/transactions", `{"description":"x","amount":1,"type":"INCOME","extra":1}`, http.StatusBadRequest},
		{"negative amount", http.MethodPost, "/api/transactions", `{"description":"x","amount":"-3","type":"INCOME"}`, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/transactions", `{"description":"x","amount":1,"type":"REFUND"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/withdrawals", "", http.StatusBadRequest},
		{"missing percentage", http.MethodPut, "/api/profile", `{}`, http.StatusBadRequest},
		{"percentage over 100", http.MethodPut, "/api/profile", `{"savings_percentage":"150"}`, http.StatusBadRequest},
		{"no profile yet", http.MethodGet, "/api/profile", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, "u1", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body)
			}
			if decode[errorBody](t, rr).Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestStoreFailureMapsTo503(t *testing.T) {
	srv, store := newTestServer(t, nil)
	store.failReads = true

	rr := do(t, srv, http.MethodGet, "/api/savings/total", "u1", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if body := decode[errorBody](t, rr); strings.Contains(body.Error, "connection reset") {
		t.Fatalf("store detail must not leak: %q", body.Error)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{core.ErrInvalidMonth, http.StatusBadRequest},
		{core.ErrInsufficientSavings, http.StatusConflict},
		{ledger.ErrNotFound, http.StatusNotFound},
		{core.StoreFailure("read", errors.New("boom")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestInterestFailureLogsRequestedWindow(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"rolling", "/api/savings/interest", "operation=" + applog.OpInterestLast},
		{"calendar", "/api/savings/interest?year=2024&month=2", "operation=" + applog.OpInterestMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			srv, store := newTestServerWithLog(t, nil, &logs)
			store.failReads = true
			if rr := do(t, srv, http.MethodGet, tt.path, "u1", ""); rr.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rr.Code)
			}
			if !strings.Contains(logs.String(), tt.want) {
				t.Fatalf("expected %q in logs, got %q", tt.want, logs.String())
			}
		})
	}
}

func TestGuardThrottlesMoneyMovesAndReportsOnReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	_ = do(t, srv, http.MethodGet, "/.env", "", "")
	for i := 0; i < moveBurst; i++ {
		rr := do(t, srv, http.MethodPost, "/api/withdrawals", "u1", `{"amount":"1"}`)
		if rr.Code == http.StatusTooManyRequests {
			t.Fatalf("withdrawal %d throttled too early", i+1)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/payments", "u1", `{"amount":"5"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "6" {
		t.Fatalf("unexpected Retry-After %q", rr.Header().Get("Retry-After"))
	}

	rr = do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	body := decode[readyJSON](t, rr)
	if body.Status != "ready" || body.Guard.MoveLimited != 1 || body.Guard.Suspicious != 1 {
		t.Fatalf("unexpected readiness body: %+v", body)
	}
}
