package invites

import (
	"time"

	"github.com/google/uuid"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/identity"
)

// Status is the invite lifecycle state. Expiry is enforced lazily at read
// time; a stored "pending" past its expires_at is treated as invalid.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// ResourceType scopes an invite to a single content resource.
type ResourceType string

const (
	ResourceProduct  ResourceType = "product"
	ResourceVideo    ResourceType = "video"
	ResourcePlaylist ResourceType = "playlist"
)

// IsValid reports whether the resource type is one of the closed set.
func (r ResourceType) IsValid() bool {
	return r == ResourceProduct || r == ResourceVideo || r == ResourcePlaylist
}

// Invite is a single-use, time-bound authorization record binding an email
// to a role and optional resource scope. The raw token is returned once at
// creation; only its hash is stored.
type Invite struct {
	ID           uuid.UUID     `db:"id"`
	Email        string        `db:"email"`
	Name         string        `db:"name"`
	InviteType   identity.Role `db:"invite_type"`
	ResourceType *ResourceType `db:"resource_type"`
	ResourceID   *uuid.UUID    `db:"resource_id"`
	Status       Status        `db:"status"`
	InvitedBy    *uuid.UUID    `db:"invited_by"`
	CreatedAt    time.Time     `db:"created_at"`
	ExpiresAt    time.Time     `db:"expires_at"`
	AcceptedAt   *time.Time    `db:"accepted_at"`
}

// Redeemable reports whether the invite can still be consumed at the given
// instant.
func (i *Invite) Redeemable(now time.Time) bool {
	return i.Status == StatusPending && i.ExpiresAt.After(now)
}

var (
	// ErrInvalidEmail rejects malformed addresses before any store mutation.
	ErrInvalidEmail = apperrors.New(apperrors.KindValidation, "invalid_email", "Invalid email address")

	// ErrDuplicate is returned when a pending, unexpired invite already
	// exists for the email. The message is the full caller-facing text;
	// storage constraint details stay in the logs.
	ErrDuplicate = apperrors.New(apperrors.KindConflict, "duplicate_invite", "This email has already been invited.")

	// ErrNotRedeemable collapses not-found, consumed, revoked, and expired
	// into one outcome so valid tokens cannot be enumerated.
	ErrNotRedeemable = apperrors.New(apperrors.KindExpired, "invalid_or_expired", "Invalid or expired invitation")

	// ErrNotFound is returned by admin operations on a missing invite.
	ErrNotFound = apperrors.New(apperrors.KindExpired, "not_found", "Invite not found")
)
