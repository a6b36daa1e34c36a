package domain

import (
	"context"
	"time"
)

// CleanupReport holds per-category counts of one sweeper pass. Errors lists
// the steps that failed; the remaining steps still ran.
// swagger:model CleanupReport
type CleanupReport struct {
	DeletedUnverifiedUsers int64    `json:"deleted_unverified_users"`
	DeletedFiles           int      `json:"deleted_files"`
	ExpiredInvitations     int64    `json:"expired_invitations"`
	DeletedInvitations     int64    `json:"deleted_invitations"`
	DeletedEventInvites    int64    `json:"deleted_event_invites"`
	UnbannedUsers          int64    `json:"unbanned_users"`
	UnbannedClubs          int64    `json:"unbanned_clubs"`
	DeletedAuditLogs       int64    `json:"deleted_audit_logs"`
	Errors                 []string `json:"errors,omitempty"`
}

// ReminderReport holds the outcome of a membership reminder run.
// swagger:model ReminderReport
type ReminderReport struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// CleanupRepository holds the sweeper's statements. Each is a single
// conditional statement that needs no prior read.
type CleanupRepository interface {
	// DeleteUnverifiedUsers removes unverified accounts created before cutoff
	// and returns the image keys they referenced.
	DeleteUnverifiedUsers(ctx context.Context, cutoff time.Time) (deleted int64, imageKeys []string, err error)
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredInvitations(ctx context.Context, expiredBefore time.Time) (int64, error)
	DeleteExpiredEventInvites(ctx context.Context, expiredBefore time.Time) (int64, error)
	LiftUserBans(ctx context.Context, now time.Time) (int64, error)
	LiftClubBans(ctx context.Context, now time.Time) (int64, error)
	DeleteAuditLogs(ctx context.Context, before time.Time) (int64, error)
}

// MaintenanceService runs the externally scheduled jobs.
type MaintenanceService interface {
	Cleanup(ctx context.Context) (*CleanupReport, error)
	SendMembershipReminders(ctx context.Context) (*ReminderReport, error)
}

// FileStorage is the object storage collaborator.
type FileStorage interface {
	DeleteFile(ctx context.Context, key string) error
	DeleteFiles(ctx context.Context, keys []string) error
}
