package otp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/audit"
)

// SendRequest is the POST /send-otp payload. Name is optional and only
// used to address the recipient in the delivery message.
type SendRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleSend handles POST /send-otp, the standalone verification entry
// point. It uses the legacy success envelope its existing callers expect.
func HandleSend(service *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
			return
		}

		verification, err := service.RequestCode(ctx, req.Email)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := auditor.LogOTPRequested(ctx, verification.Email); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Verification code sent to " + verification.Email,
		})
	}
}
