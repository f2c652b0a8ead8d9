package identity

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system. PasswordHash is nil for users
// registered through the OTP path; they have no password until one is set.
type User struct {
	ID           uuid.UUID              `db:"id"`
	Email        string                 `db:"email"`
	Name         string                 `db:"name"`
	PasswordHash *string                `db:"password_hash"`
	Metadata     map[string]interface{} `db:"metadata"`
	CreatedAt    time.Time              `db:"created_at"`
	UpdatedAt    time.Time              `db:"updated_at"`
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}

// IsAdmin reports whether the caller's derived role is admin.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
