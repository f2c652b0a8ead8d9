// Package otp issues and checks short-lived numeric codes proving control
// of an email address during self-service registration.
package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/validation"
)

// Verification is a stored one-time passcode. Rows are never deleted; the
// verified flag flips exactly once and the table doubles as an audit trail.
type Verification struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Code      string    `db:"otp_code"`
	Verified  bool      `db:"verified"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

var (
	// ErrInvalidEmail rejects malformed addresses before any store mutation.
	ErrInvalidEmail = apperrors.New(apperrors.KindValidation, "invalid_email", "Invalid email address")

	// ErrInvalidOrExpired deliberately covers wrong code, expired code, and
	// already-consumed code so failures give no guessing signal.
	ErrInvalidOrExpired = apperrors.New(apperrors.KindExpired, "invalid_or_expired", "Invalid or expired code")
)

// Service provides OTP issuance and verification.
type Service struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewService creates a new OTP service with the given TTL in minutes.
func NewService(pool *pgxpool.Pool, ttlMinutes int) *Service {
	return &Service{pool: pool, ttl: time.Duration(ttlMinutes) * time.Minute}
}

// RequestCode generates and persists a fresh code for the email. Codes
// already outstanding for the same email stay valid until they expire or
// are consumed, so a resend never locks the recipient out of an email that
// is still in flight.
func (s *Service) RequestCode(ctx context.Context, email string) (*Verification, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.ttl)

	var verification Verification
	err = s.pool.QueryRow(ctx, `
		INSERT INTO otp_verifications (email, otp_code, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, email, otp_code, verified, created_at, expires_at
	`, email, code, expiresAt).Scan(
		&verification.ID,
		&verification.Email,
		&verification.Code,
		&verification.Verified,
		&verification.CreatedAt,
		&verification.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification: %w", err)
	}

	log.Info().Str("email", email).Time("expires_at", expiresAt).Msg("OTP code issued")
	return &verification, nil
}

// VerifyCode consumes the newest matching, unconsumed, unexpired code for
// the email. The match and the verified flip happen in one conditional
// UPDATE; zero affected rows means failure and nothing is consumed.
func (s *Service) VerifyCode(ctx context.Context, email, code string) error {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return ErrInvalidOrExpired
	}
	if len(code) != CodeLength {
		return ErrInvalidOrExpired
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE otp_verifications
		SET verified = TRUE
		WHERE id = (
			SELECT id FROM otp_verifications
			WHERE email = $1
			  AND otp_code = $2
			  AND verified = FALSE
			  AND expires_at >= NOW()
			ORDER BY created_at DESC
			LIMIT 1
		)
	`, email, code)
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Debug().Str("email", email).Msg("OTP verification failed")
		return ErrInvalidOrExpired
	}

	log.Info().Str("email", email).Msg("OTP code verified")
	return nil
}
