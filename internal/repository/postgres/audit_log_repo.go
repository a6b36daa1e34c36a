package postgres

import (
	"context"

	"reconned/internal/domain"
)

type auditLogRepository struct {
	DB DBTX
}

func NewAuditLogRepository(db DBTX) domain.AuditLogRepository {
	return &auditLogRepository{DB: db}
}

// Insert writes the audit row once per outbox event; replays are no-ops.
func (r *auditLogRepository) Insert(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (outbox_id, club_id, actor_id, action_type, action_data, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT audit_logs_outbox_id_key DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query,
		log.OutboxID, log.ClubID, log.ActorID, string(log.Action), string(log.Data), log.IP, log.UserAgent, log.CreatedAt,
	)
	return err
}
