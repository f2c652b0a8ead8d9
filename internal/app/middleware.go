package app

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/identity"
)

// LoggingMiddleware logs HTTP requests with structured fields.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Str("request_id", apperrors.GetRequestID(r.Context())).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				apperrors.WriteErrorStatus(w, r, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// ContentTypeJSON sets Content-Type to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// AdminOnly guards the invite issuance endpoint. Either the shared admin key
// header or an admin session is accepted; the rejection never says which
// check failed or whether a key is configured at all.
func AdminOnly(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" {
				key := r.Header.Get("X-Admin-Key")
				if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}

			if ident, ok := identity.GetIdentity(r.Context()); ok && ident.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Admin endpoint rejected")
			apperrors.WriteErrorStatus(w, r, http.StatusForbidden, "forbidden", "Admin access required")
		})
	}
}

// LoginRateLimitMiddleware limits credential attempts per IP address to 10/minute.
func LoginRateLimitMiddleware() func(http.Handler) http.Handler {
	return rateLimit(10)
}

// OTPRateLimitMiddleware limits code requests and verification attempts per
// IP address. Brute-forcing a 6-digit code has to go through this.
func OTPRateLimitMiddleware(rpm int) func(http.Handler) http.Handler {
	return rateLimit(rpm)
}

func rateLimit(rpm int) func(http.Handler) http.Handler {
	return httprate.Limit(
		rpm,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			apperrors.WriteErrorStatus(w, r, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Try again later.")
		}),
	)
}
