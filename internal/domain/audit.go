package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AuditLogRetentionMonths is how long audit rows are kept.
const AuditLogRetentionMonths = 12

// AuditAction is the type of a recorded action.
type AuditAction string

const (
	AuditMemberInvite       AuditAction = "MEMBER_INVITE"
	AuditMemberRequest      AuditAction = "MEMBER_REQUEST"
	AuditInviteAccept       AuditAction = "INVITE_ACCEPT"
	AuditInviteReject       AuditAction = "INVITE_REJECT"
	AuditInviteExpire       AuditAction = "INVITE_EXPIRE"
	AuditMemberRemove       AuditAction = "MEMBER_REMOVE"
	AuditMemberLeave        AuditAction = "MEMBER_LEAVE"
	AuditMemberPromote      AuditAction = "MEMBER_PROMOTE"
	AuditMemberDemote       AuditAction = "MEMBER_DEMOTE"
	AuditRegistrationCreate AuditAction = "EVENT_REGISTRATION_CREATE"
	AuditRegistrationUpdate AuditAction = "EVENT_REGISTRATION_UPDATE"
	AuditRegistrationDelete AuditAction = "EVENT_REGISTRATION_DELETE"
	AuditAttendanceToggle   AuditAction = "EVENT_ATTENDANCE_TOGGLE"
)

// Outbox statuses.
const (
	OutboxPending   = "pending"
	OutboxLeased    = "leased"
	OutboxProcessed = "processed"
	OutboxDead      = "dead"
)

// AuditOutboxEvent is an audit entry written in the same transaction as the
// mutation it describes and later copied to the audit log by the dispatcher.
type AuditOutboxEvent struct {
	ID             string
	ClubID         string
	ActorID        *string
	Action         AuditAction
	Data           json.RawMessage
	IP             string
	UserAgent      string
	Status         string
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	CreatedAt      time.Time
}

// AuditLog is an immutable record of a mutating action.
// swagger:model AuditLog
type AuditLog struct {
	ID        string          `json:"id"`
	OutboxID  string          `json:"-"`
	ClubID    string          `json:"club_id"`
	ActorID   *string         `json:"actor_id,omitempty"`
	Action    AuditAction     `json:"action_type"`
	Data      json.RawMessage `json:"action_data"`
	IP        string          `json:"ip"`
	UserAgent string          `json:"user_agent"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditOutboxRepository defines storage operations for the audit outbox.
type AuditOutboxRepository interface {
	Enqueue(ctx context.Context, ev *AuditOutboxEvent) error
	// Lease claims up to limit due events for consumer until now+leaseTTL.
	Lease(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]*AuditOutboxEvent, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	// MarkFailed reschedules the event at nextAttemptAt, or buries it when dead is true.
	MarkFailed(ctx context.Context, id, lastError string, nextAttemptAt time.Time, dead bool) error
}

// AuditLogRepository is the sink the dispatcher writes to.
type AuditLogRepository interface {
	// Insert is idempotent on OutboxID.
	Insert(ctx context.Context, log *AuditLog) error
}

// AuditEntry is what an engine records about one of its mutations.
type AuditEntry struct {
	ClubID  string
	ActorID string
	Action  AuditAction
	Data    any
}

// AuditRecorder appends audit entries through the given transaction's outbox.
type AuditRecorder interface {
	Record(ctx context.Context, outbox AuditOutboxRepository, entry AuditEntry) error
}

// AuditNotifier wakes the dispatcher after a commit. Implementations must not block.
type AuditNotifier interface {
	Notify()
}
