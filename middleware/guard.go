// Package middleware provides net/http middleware that guards routes
// with sessionauth access tokens.
package middleware

import (
	"context"
	"net/http"
	"strings"

	sessionauth "github.com/MrEthical07/sessionauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the validation result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*sessionauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessionauth.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid, unrevoked bearer access token
// and stores the validation result in the request context.
func Guard(engine *sessionauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps Guard's result with a role check.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok || res.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
