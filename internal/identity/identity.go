// Package identity resolves the opaque id of the user a request acts for.
package identity

import (
	"context"
	"net/http"
	"strings"
)

// Provider returns the current user id, or false when nobody is logged in.
type Provider interface {
	CurrentUser(ctx context.Context) (string, bool)
}

type contextKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// FromContext reads the user stored by WithUser.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// ContextProvider resolves the user from the request context.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (string, bool) {
	return FromContext(ctx)
}

// Static always resolves to the same user. Workers use it to act on behalf of
// the user named in a message.
type Static string

func (s Static) CurrentUser(context.Context) (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// Middleware lifts the value of header into the request context. Requests
// without the header pass through unauthenticated.
func Middleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(WithUser(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
