package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/validation"
)

var (
	// ErrUserNotFound is returned when no account exists for a lookup.
	// Never surfaced directly; sign-in collapses it into ErrInvalidCredentials.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = apperrors.New(apperrors.KindUnauthorized, "invalid_credentials", "Invalid credentials")
)

const userColumns = `id, email, name, password_hash, metadata, created_at, updated_at`

// Service is the credential/session store: the single source of truth for
// who the current caller is and what their role resolves to.
type Service struct {
	pool        *pgxpool.Pool
	roleCfg     RoleConfig
	broadcaster *Broadcaster
}

// NewService creates a new identity service.
func NewService(pool *pgxpool.Pool, roleCfg RoleConfig, broadcaster *Broadcaster) *Service {
	return &Service{pool: pool, roleCfg: roleCfg, broadcaster: broadcaster}
}

// Broadcaster exposes the session-change feed for consumers that need to
// observe sign-in/sign-out events.
func (s *Service) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// GetByEmail retrieves a user by normalized email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetByID retrieves a user by ID.
func (s *Service) GetByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// SignIn verifies credentials and returns the user with a freshly derived
// role. The role is recomputed here rather than read from stored metadata
// verbatim, because metadata may be stale relative to a just-processed
// invite.
func (s *Service) SignIn(ctx context.Context, email, password string) (*User, Role, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Debug().Str("email", email).Msg("Sign-in failed: user not found")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", apperrors.Wrap(err, apperrors.KindTransient, "service_error", "Sign-in is temporarily unavailable")
	}

	if user.PasswordHash == nil {
		log.Debug().Str("email", user.Email).Msg("Sign-in failed: account has no password")
		return nil, "", ErrInvalidCredentials
	}
	if err := VerifyPassword(*user.PasswordHash, password); err != nil {
		log.Debug().Str("email", user.Email).Msg("Sign-in failed: wrong password")
		return nil, "", ErrInvalidCredentials
	}

	role := DeriveRole(user.Metadata, user.Email, s.roleCfg)

	s.broadcaster.Publish(SessionEvent{
		Type:     EventSignedIn,
		Identity: &Identity{UserID: user.ID, Email: user.Email, Role: role},
	})

	return user, role, nil
}

// SignOut publishes the sign-out event. The HTTP layer clears the cookie
// only after this returns, so a failure leaves local state untouched.
func (s *Service) SignOut(ctx context.Context, ident Identity) error {
	s.broadcaster.Publish(SessionEvent{Type: EventSignedOut})
	return nil
}

// UpsertFromInvite creates or updates the account for a redeemed invite.
// The role lands in the metadata bag, which is input to DeriveRole; this is
// the identity-mutating half of redemption and runs before the invite's
// accept transition.
func (s *Service) UpsertFromInvite(ctx context.Context, email, name string, role Role) (*User, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return nil, apperrors.New(apperrors.KindValidation, "invalid_email", "Invalid email address")
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role: %q", role)
	}
	name = validation.NormalizeName(name)

	query := `
		INSERT INTO users (email, name, metadata)
		VALUES ($1, $2, jsonb_build_object('role', $3::text))
		ON CONFLICT (email) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
		    metadata = users.metadata || jsonb_build_object('role', $3::text),
		    updated_at = NOW()
		RETURNING ` + userColumns

	user, err := s.scanUser(s.pool.QueryRow(ctx, query, email, name, string(role)))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	s.broadcaster.Publish(SessionEvent{
		Type:     EventRoleChanged,
		Identity: &Identity{UserID: user.ID, Email: user.Email, Role: role},
	})

	return user, nil
}

// SetRole updates the role stored in a user's metadata bag.
func (s *Service) SetRole(ctx context.Context, userID uuid.UUID, role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role: %q", role)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET metadata = metadata || jsonb_build_object('role', $2::text), updated_at = NOW()
		WHERE id = $1
	`, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetPassword replaces a user's password hash. Used by the admin CLI.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE email = $1
	`, email, hash)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// DeriveRoleFor applies the configured derivation rule to a user record.
func (s *Service) DeriveRoleFor(user *User) Role {
	return DeriveRole(user.Metadata, user.Email, s.roleCfg)
}

func (s *Service) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Metadata,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}
