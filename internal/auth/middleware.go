package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type ctxKey int

const claimsKey ctxKey = 1

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

type TokenParser interface {
	ParseAndValidate(tokenStr string) (*Claims, error)
}

// Missing, malformed, mis-signed, and expired credentials all get the
// same message so the failure mode is not disclosed to the caller.
const (
	msgUnauthorized = "unauthorized"
	msgForbidden    = "admin access required"
)

// RequireAuth extracts the session cookie, verifies it, and forwards the
// resolved claims to the wrapped handler. Any failure short-circuits with
// 401; the wrapped handler is never invoked without a valid identity.
func RequireAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				deny(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			claims, err := parser.ParseAndValidate(c.Value)
			if err != nil {
				deny(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin gates admin-only operations. It must sit behind
// RequireAuth; a request with no claims in context is rejected as
// unauthenticated, never passed through.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok {
				deny(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			if !claims.IsAdmin() {
				deny(w, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MustClaims is a helper for handlers that sit behind RequireAuth.
func MustClaims(r *http.Request) (*Claims, error) {
	if c, ok := FromContext(r.Context()); ok {
		return c, nil
	}
	return nil, errors.New("no claims in context")
}

func deny(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
