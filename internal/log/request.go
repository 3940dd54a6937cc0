package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ctxKey struct{}

// IntoContext returns a copy of ctx carrying l.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or the process default tagged
// with an unknown component when none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// Middleware attaches base, tagged with the request id, to every request
// context and echoes the id back in X-Request-ID.
func Middleware(base *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestID(r)
			w.Header().Set("X-Request-ID", id)
			ctx := IntoContext(r.Context(), base.With(FieldRequestID, id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Access is one served request as the access log records it.
type Access struct {
	Method   string
	Path     string
	Query    string
	ClientIP string
	UserID   string
	Status   int
	Elapsed  time.Duration
}

// RequestStarted logs an inbound request at debug level.
func (l *Logger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
		WithClientIP(clientIP)
	l.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// RequestFinished logs a served request; client errors warn and server
// errors log at error level.
func (l *Logger) RequestFinished(ctx context.Context, a Access) {
	fields := NewFields().
		WithHTTPRequest(a.Method, a.Path, a.Query, "").
		WithHTTPResponse(a.Status, a.Elapsed.Milliseconds(), a.Status < 400).
		WithClientIP(a.ClientIP).
		WithComponent(l.component)
	if a.UserID != "" {
		fields = fields.WithUser(a.UserID)
	}
	l.Logger.Log(ctx, statusLevel(a.Status), "HTTP request completed", fields.ToSlice()...)
}

// Failure logs err under op with any extra fields.
func (l *Logger) Failure(ctx context.Context, msg, op string, err error, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	l.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(op).ToSlice()...)
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
