package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/viewdeck/viewdeck/internal/audit"
	"github.com/viewdeck/viewdeck/internal/invites"
)

// MarkElapsedInvites flips pending invites whose deadline has passed to
// 'expired'. Validity checks never trust the stored status alone (expiry is
// evaluated against the clock at read time), so this is bookkeeping for the
// admin listing, not an enforcement step. Idempotent.
//
// Returns the number of rows updated.
func MarkElapsedInvites(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	return invites.NewService(pool, 1).MarkElapsed(ctx)
}

// DeleteOldAuditEvents deletes audit_log rows older than the specified days.
// Idempotent.
//
// Returns the number of rows deleted.
func DeleteOldAuditEvents(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	query := `
		DELETE FROM audit_log
		WHERE created_at < NOW() - INTERVAL '1 day' * $1
	`

	tag, err := pool.Exec(ctx, query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RunRetentionJob executes both retention operations and logs the results.
// This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, pool *pgxpool.Pool, auditDays int) error {
	log.Info().
		Int("audit_retention_days", auditDays).
		Msg("Starting retention job")

	startTime := time.Now()

	invitesMarked, err := MarkElapsedInvites(ctx, pool)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark elapsed invites")
		return fmt.Errorf("invite sweep failed: %w", err)
	}
	if invitesMarked > 0 {
		if err := audit.NewWriter(pool).LogInvitesExpired(ctx, invitesMarked); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}
	}

	auditDeleted, err := DeleteOldAuditEvents(ctx, pool, auditDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete old audit events")
		return fmt.Errorf("audit cleanup failed: %w", err)
	}

	duration := time.Since(startTime)

	log.Info().
		Int64("invites_marked_expired", invitesMarked).
		Int64("audit_events_deleted", auditDeleted).
		Dur("duration", duration).
		Msg("Retention job completed")

	return nil
}
