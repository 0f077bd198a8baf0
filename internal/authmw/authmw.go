// Package authmw provides HTTP middleware that identifies the caller:
// administrators by bearer token, citizens by the email the front end
// signs them in with.
package authmw

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/mail"
	"strings"
)

// UserHeader carries the signed-in citizen's email.
const UserHeader = "X-User-Email"

type ctxKeyUser struct{}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// BearerToken returns middleware that validates the Authorization header
// contains a Bearer token matching the expected value. Comparison uses
// constant-time equality.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				unauthorized(w, "missing or malformed authorization header")
				return
			}

			got := []byte(auth[len("Bearer "):])

			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without a well-formed UserHeader and stores
// the normalized address in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		if raw == "" {
			unauthorized(w, "sign in to see your reports")
			return
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			unauthorized(w, "invalid user email")
			return
		}
		ctx := WithUser(r.Context(), strings.ToLower(addr.Address))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUser returns ctx carrying the caller's email.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, email)
}

// User returns the caller's email set by RequireUser, or "".
func User(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyUser{}).(string)
	return s
}
