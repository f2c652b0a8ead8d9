package invites

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/audit"
	"github.com/viewdeck/viewdeck/internal/fieldcase"
	"github.com/viewdeck/viewdeck/internal/identity"
)

// IssueRequest is the POST /admin-invite payload. Data carries optional
// fields in application naming (name, inviteType, resourceType, resourceId).
type IssueRequest struct {
	Email string                 `json:"email"`
	Data  map[string]interface{} `json:"data"`
}

// HandleIssue handles POST /admin-invite. Authorization (shared admin key
// or admin session) is enforced by middleware before this runs.
func HandleIssue(pool *pgxpool.Pool, auditor *audit.Writer, baseURL string, ttlDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req IssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid request body")
			return
		}

		params, err := issueParamsFromRequest(req)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}
		if ident, ok := identity.GetIdentity(ctx); ok {
			params.InvitedBy = &ident.UserID
		}

		service := NewService(pool, ttlDays)
		invite, token, err := service.Issue(ctx, params)
		if err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := auditor.LogInviteIssued(ctx, invite.ID, invite.Email, string(invite.InviteType)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		inviteURL := baseURL + "/invite/" + url.PathEscape(token)
		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"invite":  fieldcase.ToApplication(inviteRecord(invite, token, inviteURL), fieldcase.InviteFields),
			"message": fmt.Sprintf("Invitation created for %s", invite.Email),
		})
	}
}

// HandleList handles GET /api/v1/invites (admin only).
func HandleList(pool *pgxpool.Pool, ttlDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service := NewService(pool, ttlDays)
		open, err := service.ListOpen(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list invites")
			apperrors.WriteError(w, r, apperrors.Internal(err))
			return
		}

		records := make([]interface{}, 0, len(open))
		for i := range open {
			records = append(records, inviteRecord(&open[i], "", ""))
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"invites": fieldcase.ToApplication(records, fieldcase.InviteFields),
		})
	}
}

// HandleRevoke handles DELETE /api/v1/invites/{invite_id} (admin only).
func HandleRevoke(pool *pgxpool.Pool, auditor *audit.Writer, ttlDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusBadRequest, "bad_request", "Invalid invite ID")
			return
		}

		service := NewService(pool, ttlDays)
		if err := service.Revoke(ctx, inviteID); err != nil {
			apperrors.WriteError(w, r, err)
			return
		}

		if err := auditor.LogInviteRevoked(ctx, inviteID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"revoked": true,
		})
	}
}

func issueParamsFromRequest(req IssueRequest) (IssueParams, error) {
	params := IssueParams{
		Email:      req.Email,
		InviteType: identity.RoleViewer,
	}

	if req.Data == nil {
		return params, nil
	}

	storage, ok := fieldcase.ToStorage(req.Data, fieldcase.InviteFields).(map[string]interface{})
	if !ok {
		return params, nil
	}

	if name, ok := storage["name"].(string); ok {
		params.Name = name
	}
	if inviteType, ok := storage["invite_type"].(string); ok {
		params.InviteType = identity.Role(strings.ToLower(strings.TrimSpace(inviteType)))
	}
	if resourceType, ok := storage["resource_type"].(string); ok {
		rt := ResourceType(strings.ToLower(strings.TrimSpace(resourceType)))
		params.ResourceType = &rt
	}
	if resourceID, ok := storage["resource_id"].(string); ok {
		id, err := uuid.Parse(resourceID)
		if err != nil {
			return params, apperrors.New(apperrors.KindValidation, "invalid_resource_id", "Resource ID must be a UUID")
		}
		params.ResourceID = &id
	}

	return params, nil
}

// inviteRecord renders an invite in storage naming; callers convert through
// fieldcase at the boundary. Token fields are only present at issuance.
func inviteRecord(invite *Invite, token, inviteURL string) map[string]interface{} {
	record := map[string]interface{}{
		"id":          invite.ID.String(),
		"email":       invite.Email,
		"name":        invite.Name,
		"invite_type": string(invite.InviteType),
		"status":      string(invite.Status),
		"created_at":  invite.CreatedAt.Format(time.RFC3339),
		"expires_at":  invite.ExpiresAt.Format(time.RFC3339),
	}
	if invite.ResourceType != nil {
		record["resource_type"] = string(*invite.ResourceType)
	}
	if invite.ResourceID != nil {
		record["resource_id"] = invite.ResourceID.String()
	}
	if invite.InvitedBy != nil {
		record["invited_by"] = invite.InvitedBy.String()
	}
	if invite.AcceptedAt != nil {
		record["accepted_at"] = invite.AcceptedAt.Format(time.RFC3339)
	}
	if token != "" {
		record["token"] = token
		record["invite_url"] = inviteURL
	}
	return record
}
