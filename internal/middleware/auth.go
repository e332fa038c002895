package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/netline/simplenet/internal/admin"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsContextKey is the key used to store the verified admin claims
// in the request context.
const ClaimsContextKey contextKey = "admin-claims"

// AdminAuth creates middleware that validates bearer tokens against
// the control API's Authenticator.
func AdminAuth(authn *admin.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token := parts[1]
			if token == "" {
				http.Error(w, "Token required", http.StatusUnauthorized)
				return
			}

			claims, err := authn.Verify(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext retrieves the verified admin claims from the
// request context, if AdminAuth ran.
func ClaimsFromContext(ctx context.Context) *admin.Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*admin.Claims)
	if !ok {
		return nil
	}
	return claims
}
