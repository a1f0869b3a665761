// Package middleware provides HTTP middlewares for sessions and logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/atinyakov/asrcollect/internal/session"
	"github.com/go-chi/jwtauth/v5"
)

type ctxKey string

const sessionKey ctxKey = "session"

// Session reads the token verified by jwtauth.Verify and, when it is valid,
// stores the user's session in the request context. Requests without a
// valid token pass through anonymous.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err == nil && token != nil {
			if s, err := session.FromClaims(claims); err == nil {
				r = r.WithContext(WithSession(r.Context(), s))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession passes anonymous requests to onMissing instead of next.
func RequireSession(onMissing http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFromContext(r.Context()); !ok {
				onMissing(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by Session, if any.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(session.Session)
	return s, ok
}

// GetUserIDFromContext extracts the logged-in user's ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	s, _ := SessionFromContext(ctx)
	return s.UserID
}
