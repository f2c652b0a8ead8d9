package authgate

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/audit"
	"github.com/viewdeck/viewdeck/internal/fieldcase"
	"github.com/viewdeck/viewdeck/internal/identity"
	"github.com/viewdeck/viewdeck/internal/invites"
)

// SessionIssuer mints a session for a freshly bound identity.
type SessionIssuer func(w http.ResponseWriter, ident identity.Identity)

// NewSessionIssuer builds the cookie-session issuer used by the gate
// endpoints after a successful redemption.
func NewSessionIssuer(jwtSecret string, sessionDays int, isProduction bool) SessionIssuer {
	return func(w http.ResponseWriter, ident identity.Identity) {
		token, err := identity.CreateToken(ident, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session token")
			return
		}
		identity.SetSessionCookie(w, token, sessionDays, isProduction)
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type signupRequest struct {
	Name string `json:"name"`
}

type verifyRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// HandleCheck handles GET /invite/{token}.
func HandleCheck(gate *Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var caller *identity.Identity
		if ident, ok := identity.GetIdentity(r.Context()); ok {
			caller = &ident
		}

		outcome, err := gate.Check(r.Context(), chi.URLParam(r, "token"), caller)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if outcome.State == StateInvalid {
			apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"ok":      false,
				"state":   StateInvalid,
				"error":   "invalid_or_expired",
				"message": "Invalid or expired invitation",
			})
			return
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":     true,
			"state":  outcome.State,
			"invite": inviteSummary(outcome.Invite),
		})
	}
}

// HandleBind handles POST /invite/{token}/bind for authenticated callers.
func HandleBind(gate *Gate, auditor *audit.Writer, issueSession SessionIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identity.GetIdentity(r.Context())
		if !ok {
			apperrors.WriteErrorStatus(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		outcome, err := gate.Bind(r.Context(), chi.URLParam(r, "token"), ident)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		finishRedemption(w, r, outcome, auditor, issueSession)
	}
}

// HandleLogin handles POST /invite/{token}/login.
func HandleLogin(gate *Gate, auditor *audit.Writer, issueSession SessionIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
			return
		}

		outcome, err := gate.LoginAndRedeem(r.Context(), chi.URLParam(r, "token"), req.Password)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		finishRedemption(w, r, outcome, auditor, issueSession)
	}
}

// HandleSignup handles POST /invite/{token}/signup. Calling it again acts
// as a resend: a fresh code is issued, earlier ones stay valid.
func HandleSignup(gate *Gate, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
			return
		}

		outcome, err := gate.BeginSignup(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := auditor.LogOTPRequested(r.Context(), outcome.Invite.Email); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"state":   StateOTPPending,
			"message": "Verification code sent to " + outcome.Invite.Email,
		})
	}
}

// HandleVerify handles POST /invite/{token}/verify.
func HandleVerify(gate *Gate, auditor *audit.Writer, issueSession SessionIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
			return
		}

		outcome, err := gate.CompleteSignup(r.Context(), chi.URLParam(r, "token"), req.Name, req.Code)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := auditor.LogOTPVerified(r.Context(), outcome.Invite.Email); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}
		if err := auditor.LogUserRegistered(r.Context(), outcome.Identity.UserID, outcome.Identity.Email); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		finishRedemption(w, r, outcome, auditor, issueSession)
	}
}

func finishRedemption(w http.ResponseWriter, r *http.Request, outcome *Outcome, auditor *audit.Writer, issueSession SessionIssuer) {
	if err := auditor.LogInviteAccepted(r.Context(), outcome.Invite.ID, outcome.Identity.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to log audit event")
	}

	issueSession(w, *outcome.Identity)

	log.Info().
		Str("invite_id", outcome.Invite.ID.String()).
		Str("user_id", outcome.Identity.UserID.String()).
		Str("role", string(outcome.Identity.Role)).
		Msg("Invite redeemed")

	apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"state":    StateComplete,
		"route":    outcome.Route,
		"identity": outcome.Identity,
	})
}

// inviteSummary exposes only what the recipient needs to drive the flow.
// The token hash, issuer, and timestamps stay server-side.
func inviteSummary(invite *invites.Invite) interface{} {
	record := map[string]interface{}{
		"email":       invite.Email,
		"name":        invite.Name,
		"invite_type": string(invite.InviteType),
		"expires_at":  invite.ExpiresAt.Format(time.RFC3339),
	}
	if invite.ResourceType != nil {
		record["resource_type"] = string(*invite.ResourceType)
	}
	if invite.ResourceID != nil {
		record["resource_id"] = invite.ResourceID.String()
	}
	return fieldcase.ToApplication(record, fieldcase.InviteFields)
}
