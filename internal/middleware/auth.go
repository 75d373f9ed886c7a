package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/auth"
)

type contextKey string

// IdentityContextKey carries the resolved caller identity
const IdentityContextKey contextKey = "identity"

// Auth verifies bearer tokens and stores the resolved Identity in the
// request context. Everything behind it can assume an authenticated caller.
func Auth(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, apperr.Unauthenticated("authorization header required"))
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, apperr.Unauthenticated("invalid authorization header format"))
				return
			}

			identity, err := gate.Authenticate(parts[1])
			if err != nil {
				writeError(w, apperr.From(err))
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom extracts the caller identity from the request context
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(auth.Identity)
	return identity, ok
}

func writeError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   err.Message,
		"code":    string(err.Code),
	})
}
