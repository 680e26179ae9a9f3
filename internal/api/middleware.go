// Package api implements the daybook REST API using chi.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/identity"
)

// Resolver maps a bearer token to the identity holding it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

type ctxKey int

const (
	identityKey ctxKey = iota
	tokenKey
)

// IdentityFrom returns the identity attached by AuthMiddleware.
func IdentityFrom(ctx context.Context) identity.Identity {
	if ident, ok := ctx.Value(identityKey).(identity.Identity); ok {
		return ident
	}
	return identity.Local
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}

// bearerToken reads "Authorization: Bearer <token>". EventSource clients
// cannot set headers, so an access_token query parameter is accepted too.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// AuthMiddleware attaches the caller's identity to the request context.
// With a nil resolver (sign-in disabled) every request acts as
// identity.Local. Otherwise requests must carry a token the resolver knows.
func AuthMiddleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				ctx := context.WithValue(r.Context(), identityKey, identity.Local)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			token := bearerToken(r)
			ident, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, apperr.ErrUnauthorized) {
					slog.Error("resolve token failed", slog.String("error", err.Error()))
				}
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, ident)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
