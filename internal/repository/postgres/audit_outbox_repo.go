package postgres

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"reconned/internal/domain"
)

type auditOutboxRepository struct {
	DB DBTX
}

func NewAuditOutboxRepository(db DBTX) domain.AuditOutboxRepository {
	return &auditOutboxRepository{DB: db}
}

func (r *auditOutboxRepository) Enqueue(ctx context.Context, ev *domain.AuditOutboxEvent) error {
	query := `
		INSERT INTO audit_outbox (id, club_id, actor_id, action_type, action_data, ip, user_agent, status, attempt_count, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.DB.ExecContext(ctx, query,
		ev.ID, ev.ClubID, ev.ActorID, string(ev.Action), string(ev.Data), ev.IP, ev.UserAgent,
		ev.Status, ev.AttemptCount, ev.NextAttemptAt, ev.CreatedAt,
	)
	return err
}

// Lease claims due events, including leased ones whose lease has lapsed.
// SKIP LOCKED lets several dispatchers poll the same table.
func (r *auditOutboxRepository) Lease(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]*domain.AuditOutboxEvent, error) {
	query := `
		UPDATE audit_outbox
		SET status = 'leased', lease_owner = $1, lease_expires_at = $2, attempt_count = attempt_count + 1
		WHERE id IN (
			SELECT id
			FROM audit_outbox
			WHERE (status = 'pending' AND next_attempt_at <= $3)
			   OR (status = 'leased' AND lease_expires_at <= $3)
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, club_id, actor_id, action_type, action_data, ip, user_agent, status, attempt_count, next_attempt_at, lease_owner, lease_expires_at, created_at
	`
	rows, err := r.DB.QueryContext(ctx, query, consumer, now.Add(leaseTTL), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.AuditOutboxEvent, 0)
	for rows.Next() {
		ev := &domain.AuditOutboxEvent{}
		var actorID, leaseOwner sql.NullString
		var leaseExpiresAt sql.NullTime
		var data []byte
		if err := rows.Scan(
			&ev.ID, &ev.ClubID, &actorID, &ev.Action, &data, &ev.IP, &ev.UserAgent,
			&ev.Status, &ev.AttemptCount, &ev.NextAttemptAt, &leaseOwner, &leaseExpiresAt, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		ev.ActorID = nullStringPtr(actorID)
		ev.LeaseOwner = leaseOwner.String
		ev.LeaseExpiresAt = nullTimePtr(leaseExpiresAt)
		ev.Data = data
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (r *auditOutboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE audit_outbox
		SET status = 'processed', processed_at = $2, lease_owner = NULL, lease_expires_at = NULL, last_error = NULL
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, id, at)
	return err
}

func (r *auditOutboxRepository) MarkFailed(ctx context.Context, id, lastError string, nextAttemptAt time.Time, dead bool) error {
	status := domain.OutboxPending
	if dead {
		status = domain.OutboxDead
	}
	query := `
		UPDATE audit_outbox
		SET status = $2, last_error = $3, next_attempt_at = $4, lease_owner = NULL, lease_expires_at = NULL
		WHERE id = $1
	`
	_, err := r.DB.ExecContext(ctx, query, id, status, lastError, nextAttemptAt)
	return err
}
