package http

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smartsave/internal/identity"
	applog "smartsave/internal/log"
	"smartsave/internal/savings"
	"smartsave/internal/services"
)

const requestTimeout = 7 * time.Second

// Deps are the collaborators the API serves. Ready may be nil when the
// backend has no health check.
type Deps struct {
	Calc         *savings.Calculator
	Transactions *services.TransactionService
	Profiles     *services.ProfileService
	Dashboard    *services.DashboardService
	Ready        func(ctx context.Context) error
	Logger       *applog.Logger
	UserHeader   string
	GrowthMonths int
	RecentLimit  int
	Now          func() time.Time
}

type Server struct {
	http.Server
	deps   Deps
	logger *applog.Logger
	guard  *guard
	now    func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires the JSON API routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.UserHeader == "" {
		deps.UserHeader = "X-User-ID"
	}
	if deps.GrowthMonths < 1 {
		deps.GrowthMonths = 6
	}
	if deps.RecentLimit < 1 {
		deps.RecentLimit = 10
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.WithComponent(applog.ComponentHTTP)
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		deps:   deps,
		logger: logger,
		guard:  newGuard(deps.Now),
		now:    deps.Now,
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("/api/dashboard", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleDashboard,
	}))
	api.HandleFunc("/api/savings/total", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleTotal,
	}))
	api.HandleFunc("/api/savings/recalculate", methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handleRecalculate,
	}))
	api.HandleFunc("/api/savings/progress", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleProgress,
	}))
	api.HandleFunc("/api/savings/interest", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleInterest,
	}))
	api.HandleFunc("/api/savings/income", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleIncomeSavings,
	}))
	api.HandleFunc("/api/savings/month-progress", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleMonthProgress,
	}))
	api.HandleFunc("/api/savings/growth", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleGrowth,
	}))
	api.HandleFunc("/api/savings/projection", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleProjection,
	}))
	api.HandleFunc("/api/transactions", methods(map[string]http.HandlerFunc{
		http.MethodGet:  s.handleListTransactions,
		http.MethodPost: s.handleRecordTransaction,
	}))
	api.HandleFunc("/api/withdrawals", methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handleWithdraw,
	}))
	api.HandleFunc("/api/payments", methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handleDeposit,
	}))
	api.HandleFunc("/api/profile", methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handleGetProfile,
		http.MethodPut: s.handleSetupProfile,
	}))

	mux.Handle("/api/", identity.Middleware(deps.UserHeader)(withTimeout(api)))

	s.Handler = applog.Middleware(logger, requestID)(s.withGuard(mux))
	return s
}

// methods dispatches on the request method and answers 405 with an Allow
// header for anything else.
func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(handlers))
	for m := range handlers {
		allowed = append(allowed, m)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
			return
		}
		h(w, r)
	}
}

func withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestID honours an inbound X-Request-ID so traces survive a proxy hop.
func requestID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 64 {
		return id
	}
	return generateRequestID()
}

// withGuard logs every request, throttles writes and sets the response
// security headers.
func (s *Server) withGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		ip := clientIP(r)
		logger := applog.FromContext(ctx)
		logger.RequestStarted(ctx, r, ip)

		if reason := scanReason(r); reason != "" {
			s.guard.suspicious.Add(1)
			fields := applog.NewFields().
				WithClientIP(ip).
				WithHTTPRequest(r.Method, r.URL.Path, "", r.UserAgent())
			logger.WarnContext(ctx, "Suspicious request", append(fields.ToSlice(), "reason", reason)...)
		}

		user := strings.TrimSpace(r.Header.Get(s.deps.UserHeader))
		if wait := s.guard.admit(r, ip, user); wait > 0 {
			logger.WarnContext(ctx, "Write budget exhausted", "client_ip", ip, "user_id", user, "path", r.URL.Path, "retry_after", wait)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(wait)))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
			return
		}

		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.RequestFinished(ctx, applog.Access{
			Method:   r.Method,
			Path:     r.URL.Path,
			Query:    r.URL.RawQuery,
			ClientIP: ip,
			UserID:   user,
			Status:   rw.statusCode,
			Elapsed:  time.Since(start),
		})
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		st := s.guard.stats()
		s.logger.Info("HTTP server stopped",
			"write_limited", st.WriteLimited,
			"move_limited", st.MoveLimited,
			"suspicious_requests", st.Suspicious)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readyJSON struct {
	Status string     `json:"status"`
	Guard  guardStats `json:"guard"`
}

// handleReady checks the ledger backend and reports the guard counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	body := readyJSON{Status: "ready", Guard: s.guard.stats()}
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			body.Status = "not ready"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// rateParam reads an optional decimal query parameter.
func rateParam(r *http.Request) (*decimal.Decimal, error) {
	v := strings.TrimSpace(r.URL.Query().Get("rate"))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, errInvalidQuery("rate")
	}
	return &d, nil
}
