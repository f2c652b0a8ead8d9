package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventInviteIssued   = "invite.issued"
	EventInviteRevoked  = "invite.revoked"
	EventInviteAccepted = "invite.accepted"
	EventInvitesExpired = "invite.expired"
	EventOTPRequested   = "otp.requested"
	EventOTPVerified    = "otp.verified"
	EventUserRegistered = "user.registered"
	EventLogin          = "auth.login"
	EventLoginFailed    = "auth.login_failed"
	EventLogout         = "auth.logout"
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID              `db:"id"`
	ActorUserID uuid.NullUUID          `db:"actor_user_id"`
	InviteID    uuid.NullUUID          `db:"invite_id"`
	Action      string                 `db:"action"`
	Meta        map[string]interface{} `db:"meta"`
	CreatedAt   time.Time              `db:"created_at"`
}

// Writer provides methods to write audit log entries. Failures are logged
// and reported but never abort the operation being audited.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	ActorUserID *uuid.UUID
	InviteID    *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (actor_user_id, invite_id, action, meta)
		VALUES ($1, $2, $3, $4)
	`

	_, err := w.pool.Exec(ctx, query, toNullUUID(params.ActorUserID), toNullUUID(params.InviteID), params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	return nil
}

func (w *Writer) LogInviteIssued(ctx context.Context, inviteID uuid.UUID, email, inviteType string) error {
	return w.Log(ctx, LogParams{
		InviteID: &inviteID,
		Action:   EventInviteIssued,
		Meta:     map[string]interface{}{"email": email, "invite_type": inviteType},
	})
}

func (w *Writer) LogInviteRevoked(ctx context.Context, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{InviteID: &inviteID, Action: EventInviteRevoked})
}

func (w *Writer) LogInviteAccepted(ctx context.Context, inviteID, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{ActorUserID: &userID, InviteID: &inviteID, Action: EventInviteAccepted})
}

// LogInvitesExpired records one batch event per sweep rather than a row per
// invite.
func (w *Writer) LogInvitesExpired(ctx context.Context, count int64) error {
	return w.Log(ctx, LogParams{Action: EventInvitesExpired, Meta: map[string]interface{}{"count": count}})
}

func (w *Writer) LogOTPRequested(ctx context.Context, email string) error {
	return w.Log(ctx, LogParams{Action: EventOTPRequested, Meta: map[string]interface{}{"email": email}})
}

func (w *Writer) LogOTPVerified(ctx context.Context, email string) error {
	return w.Log(ctx, LogParams{Action: EventOTPVerified, Meta: map[string]interface{}{"email": email}})
}

func (w *Writer) LogUserRegistered(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{ActorUserID: &userID, Action: EventUserRegistered, Meta: map[string]interface{}{"email": email}})
}

func (w *Writer) LogLogin(ctx context.Context, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{ActorUserID: &userID, Action: EventLogin})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email string) error {
	return w.Log(ctx, LogParams{Action: EventLoginFailed, Meta: map[string]interface{}{"email": email}})
}

func (w *Writer) LogLogout(ctx context.Context, userID uuid.UUID) error {
	return w.Log(ctx, LogParams{ActorUserID: &userID, Action: EventLogout})
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
