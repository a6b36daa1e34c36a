package postgres

import (
	"context"
	"database/sql"
	"time"

	"reconned/internal/domain"
)

type cleanupRepository struct {
	DB DBTX
}

func NewCleanupRepository(db DBTX) domain.CleanupRepository {
	return &cleanupRepository{DB: db}
}

func (r *cleanupRepository) DeleteUnverifiedUsers(ctx context.Context, cutoff time.Time) (int64, []string, error) {
	query := `
		DELETE FROM users
		WHERE email_verified = FALSE AND created_at < $1
		RETURNING image
	`
	rows, err := r.DB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var deleted int64
	keys := make([]string, 0)
	for rows.Next() {
		var image sql.NullString
		if err := rows.Scan(&image); err != nil {
			return 0, nil, err
		}
		deleted++
		if image.Valid && image.String != "" {
			keys = append(keys, image.String)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return deleted, keys, nil
}

func (r *cleanupRepository) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE club_invitations
		SET status = 'EXPIRED', updated_at = $1
		WHERE status IN ('PENDING', 'REQUESTED') AND expires_at <= $1
	`
	return r.exec(ctx, query, now)
}

func (r *cleanupRepository) DeleteExpiredInvitations(ctx context.Context, expiredBefore time.Time) (int64, error) {
	query := `DELETE FROM club_invitations WHERE status = 'EXPIRED' AND expires_at < $1`
	return r.exec(ctx, query, expiredBefore)
}

func (r *cleanupRepository) DeleteExpiredEventInvites(ctx context.Context, expiredBefore time.Time) (int64, error) {
	query := `DELETE FROM event_invites_not_on_app WHERE expires_at < $1`
	return r.exec(ctx, query, expiredBefore)
}

func (r *cleanupRepository) LiftUserBans(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET banned = FALSE, ban_reason = NULL, ban_expires = NULL, updated_at = $1
		WHERE ban_expires IS NOT NULL AND ban_expires < $1
	`
	return r.exec(ctx, query, now)
}

func (r *cleanupRepository) LiftClubBans(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE clubs
		SET banned = FALSE, ban_reason = NULL, ban_expires = NULL
		WHERE ban_expires IS NOT NULL AND ban_expires < $1
	`
	return r.exec(ctx, query, now)
}

// DeleteAuditLogs also purges processed outbox rows of the same age.
func (r *cleanupRepository) DeleteAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	query := `
		WITH purged_outbox AS (
			DELETE FROM audit_outbox WHERE status = 'processed' AND processed_at < $1
		)
		DELETE FROM audit_logs WHERE created_at < $1
	`
	return r.exec(ctx, query, before)
}

func (r *cleanupRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
