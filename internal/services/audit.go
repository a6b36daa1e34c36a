package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reconned/internal/domain"
)

type auditRecorder struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditRecorder returns a recorder that writes to the transactional outbox.
func NewAuditRecorder(logger *slog.Logger) domain.AuditRecorder {
	return &auditRecorder{logger: logger, now: time.Now}
}

// Record enqueues entry through outbox, which must belong to the caller's
// transaction. An unencodable payload is logged and replaced by {} so the
// mutation itself never fails on it.
func (a *auditRecorder) Record(ctx context.Context, outbox domain.AuditOutboxRepository, entry domain.AuditEntry) error {
	data := json.RawMessage(`{}`)
	if entry.Data != nil {
		b, err := json.Marshal(entry.Data)
		if err != nil {
			a.logger.WarnContext(ctx, "audit payload not encodable", "action", entry.Action, "err", err)
		} else {
			data = b
		}
	}

	var actor *string
	if entry.ActorID != "" {
		id := entry.ActorID
		actor = &id
	}
	meta := domain.RequestMetaFromContext(ctx)
	now := a.now()
	ev := &domain.AuditOutboxEvent{
		ID:            uuid.NewString(),
		ClubID:        entry.ClubID,
		ActorID:       actor,
		Action:        entry.Action,
		Data:          data,
		IP:            meta.IP,
		UserAgent:     meta.UserAgent,
		Status:        domain.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := outbox.Enqueue(ctx, ev); err != nil {
		return fmt.Errorf("enqueue audit event: %w", err)
	}
	return nil
}
