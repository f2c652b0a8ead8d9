package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
)

type contextKey string

const identityContextKey contextKey = "identity"

// AuthMiddleware validates the session (cookie or bearer token) and injects
// the caller's Identity into the context. An invalid cookie is cleared and
// the request continues unauthenticated; "logged out" is never an error
// here.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetSessionCookie(r)
			fromCookie := token != ""
			if token == "" {
				if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
					token = strings.TrimPrefix(header, "Bearer ")
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Msg("Invalid session token")
				if fromCookie {
					ClearSessionCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ident := Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
			ctx := context.WithValue(r.Context(), identityContextKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is middleware that requires an authenticated caller.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetIdentity(r.Context()); !ok {
			apperrors.WriteErrorStatus(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin is middleware that requires an admin caller. The rejection is
// a fixed generic message regardless of why the caller is not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := GetIdentity(r.Context())
		if !ok || !ident.IsAdmin() {
			apperrors.WriteErrorStatus(w, r, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetIdentity retrieves the authenticated caller from the request context.
func GetIdentity(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(Identity)
	return ident, ok
}

// WithIdentity returns a context carrying the given identity. Used by the
// admin CLI and tests to run service calls as a known caller.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, ident)
}
