package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/audit"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /api/v1/auth/login.
func HandleLogin(service *Service, auditor *audit.Writer, jwtSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
			return
		}

		user, role, err := service.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				if auditErr := auditor.LogLoginFailed(ctx, req.Email); auditErr != nil {
					log.Error().Err(auditErr).Msg("Failed to log audit event")
				}
			}
			apperrors.WriteError(w, r, err)
			return
		}

		ident := Identity{UserID: user.ID, Email: user.Email, Role: role}
		token, err := CreateToken(ident, jwtSecret, sessionDays)
		if err != nil {
			apperrors.WriteError(w, r, apperrors.Internal(err))
			return
		}
		SetSessionCookie(w, token, sessionDays, isProduction)

		if err := auditor.LogLogin(ctx, user.ID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":       true,
			"identity": ident,
		})
	}
}

// HandleLogout handles POST /api/v1/auth/logout. The cookie is cleared only
// after the sign-out event is published.
func HandleLogout(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ident, ok := GetIdentity(ctx)
		if !ok {
			apperrors.WriteErrorStatus(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		if err := service.SignOut(ctx, ident); err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		ClearSessionCookie(w)

		if err := auditor.LogLogout(ctx, ident.UserID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true,
		})
	}
}

// HandleSession handles GET /api/v1/auth/session. An anonymous caller gets
// a 200 with authenticated=false; being logged out is not an error.
func HandleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := GetIdentity(r.Context())
		if !ok {
			apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"ok":            true,
				"authenticated": false,
			})
			return
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":            true,
			"authenticated": true,
			"identity":      ident,
		})
	}
}
