package invites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/identity"
	"github.com/viewdeck/viewdeck/internal/validation"
)

const inviteColumns = `id, email, name, invite_type, resource_type, resource_id, status, invited_by, created_at, expires_at, accepted_at`

// Service provides invite issuance and lifecycle operations.
type Service struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewService creates a new invite service with the given TTL in days.
func NewService(pool *pgxpool.Pool, ttlDays int) *Service {
	return &Service{pool: pool, ttl: time.Duration(ttlDays) * 24 * time.Hour}
}

// IssueParams describes the invite to create. Authorization is the
// caller's responsibility: the HTTP layer and the admin CLI both prove
// admin access before reaching Issue.
type IssueParams struct {
	Email        string
	Name         string
	InviteType   identity.Role
	ResourceType *ResourceType
	ResourceID   *uuid.UUID
	InvitedBy    *uuid.UUID
}

// Issue creates a single-use invite and returns it with the raw token for
// the delivery link. A pending, unexpired invite for the same email fails
// with ErrDuplicate; the storage constraint text never leaves the service.
func (s *Service) Issue(ctx context.Context, params IssueParams) (*Invite, string, error) {
	email, err := validation.NormalizeEmail(params.Email)
	if err != nil {
		return nil, "", ErrInvalidEmail
	}

	if !params.InviteType.IsValid() {
		return nil, "", apperrors.New(apperrors.KindValidation, "invalid_invite_type", "Invite type must be admin or viewer")
	}
	if (params.ResourceType == nil) != (params.ResourceID == nil) {
		return nil, "", apperrors.New(apperrors.KindValidation, "invalid_resource_scope", "Resource type and resource ID must be provided together")
	}
	if params.ResourceType != nil && !params.ResourceType.IsValid() {
		return nil, "", apperrors.New(apperrors.KindValidation, "invalid_resource_type", "Resource type must be product, video, or playlist")
	}
	name := validation.NormalizeName(params.Name)

	// Postgres aborts the whole transaction on a unique violation, so each
	// attempt gets a fresh one; the pre-expiry step is idempotent.
	for attempt := 0; attempt < 3; attempt++ {
		invite, token, err := s.issueOnce(ctx, email, name, params)
		if errors.Is(err, errTokenCollision) {
			continue
		}
		return invite, token, err
	}

	return nil, "", fmt.Errorf("failed to create invite: token collision retry exhausted")
}

// errTokenCollision marks a unique violation on token_hash (extremely
// unlikely); Issue retries with a fresh token.
var errTokenCollision = errors.New("token hash collision")

func (s *Service) issueOnce(ctx context.Context, email, name string, params IssueParams) (*Invite, string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// A pending invite whose clock has run out no longer blocks reissue.
	_, err = tx.Exec(ctx, `
		UPDATE invites
		SET status = 'expired'
		WHERE email = $1
		  AND status = 'pending'
		  AND expires_at <= NOW()
	`, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to expire elapsed invites: %w", err)
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	expiresAt := time.Now().UTC().Add(s.ttl)

	row := tx.QueryRow(ctx, `
		INSERT INTO invites (
		  email, name, token_hash, invite_type, resource_type, resource_id, invited_by, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+inviteColumns,
		email, name, tokenHash, params.InviteType, params.ResourceType, params.ResourceID, params.InvitedBy, expiresAt)

	invite, err := scanInvite(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "invites_pending_email_idx" {
				log.Debug().Str("email", email).Msg("Invite issuance rejected: open invite exists")
				return nil, "", ErrDuplicate
			}
			return nil, "", errTokenCollision
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return invite, token, nil
}

// GetByToken loads an invite by its raw token. Malformed tokens and unknown
// hashes both come back as ErrNotRedeemable.
func (s *Service) GetByToken(ctx context.Context, token string) (*Invite, error) {
	if !ValidateTokenFormat(token) {
		return nil, ErrNotRedeemable
	}
	tokenHash := HashToken(token)

	invite, err := scanInvite(s.pool.QueryRow(ctx, `
		SELECT `+inviteColumns+` FROM invites WHERE token_hash = $1
	`, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRedeemable
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	return invite, nil
}

// Accept atomically transitions an invite from pending to accepted. The
// guard on status and expiry closes the window between two concurrent
// redemptions: exactly one caller observes an affected row.
func (s *Service) Accept(ctx context.Context, inviteID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invites
		SET status = 'accepted', accepted_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND expires_at > NOW()
	`, inviteID)
	if err != nil {
		return fmt.Errorf("failed to accept invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRedeemable
	}

	return nil
}

// ListOpen returns pending, unexpired invites, newest first.
func (s *Service) ListOpen(ctx context.Context) ([]Invite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+inviteColumns+`
		FROM invites
		WHERE status = 'pending'
		  AND expires_at > NOW()
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var open []Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		open = append(open, *invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}

	return open, nil
}

// Revoke closes a pending invite so its token can never be redeemed.
func (s *Service) Revoke(ctx context.Context, inviteID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invites
		SET status = 'revoked'
		WHERE id = $1
		  AND status = 'pending'
	`, inviteID)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkElapsed flips long-elapsed pending invites to expired. Purely
// housekeeping for reporting; redemption enforces expiry at read time.
func (s *Service) MarkElapsed(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invites
		SET status = 'expired'
		WHERE status = 'pending'
		  AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark elapsed invites: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanInvite(row pgx.Row) (*Invite, error) {
	var invite Invite
	err := row.Scan(
		&invite.ID,
		&invite.Email,
		&invite.Name,
		&invite.InviteType,
		&invite.ResourceType,
		&invite.ResourceID,
		&invite.Status,
		&invite.InvitedBy,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&invite.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}
	return &invite, nil
}
