package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reconned/internal/domain"
)

type maintenanceService struct {
	store        domain.Store
	storage      domain.FileStorage
	emailService domain.EmailService
	logger       *slog.Logger
	now          func() time.Time
}

// NewMaintenanceService returns the sweeper and the membership reminder job.
func NewMaintenanceService(store domain.Store, storage domain.FileStorage, emailService domain.EmailService, logger *slog.Logger) domain.MaintenanceService {
	return &maintenanceService{
		store:        store,
		storage:      storage,
		emailService: emailService,
		logger:       logger,
		now:          time.Now,
	}
}

// Cleanup runs every sweeper step as its own statement. A failing step is
// recorded in the report and the remaining steps still run; the next pass
// picks up whatever was left.
func (s *maintenanceService) Cleanup(ctx context.Context) (*domain.CleanupReport, error) {
	repo := s.store.Repos().Cleanup
	now := s.now()
	report := &domain.CleanupReport{}

	s.step(ctx, report, "delete unverified users", func() error {
		deleted, keys, err := repo.DeleteUnverifiedUsers(ctx, now.Add(-domain.UnverifiedAccountTTL))
		if err != nil {
			return err
		}
		report.DeletedUnverifiedUsers = deleted
		if len(keys) == 0 {
			return nil
		}
		if err := s.storage.DeleteFiles(ctx, keys); err != nil {
			// Orphaned images are harmless; the accounts are already gone.
			s.logger.WarnContext(ctx, "delete user images failed", "count", len(keys), "err", err)
			return nil
		}
		report.DeletedFiles = len(keys)
		return nil
	})
	s.step(ctx, report, "expire invitations", func() error {
		n, err := repo.ExpireInvitations(ctx, now)
		report.ExpiredInvitations = n
		return err
	})
	s.step(ctx, report, "delete expired invitations", func() error {
		n, err := repo.DeleteExpiredInvitations(ctx, now.AddDate(0, -domain.InvitationRetentionMonths, 0))
		report.DeletedInvitations = n
		return err
	})
	s.step(ctx, report, "delete expired event invites", func() error {
		n, err := repo.DeleteExpiredEventInvites(ctx, now.AddDate(0, -domain.EventInviteRetentionMonths, 0))
		report.DeletedEventInvites = n
		return err
	})
	s.step(ctx, report, "lift user bans", func() error {
		n, err := repo.LiftUserBans(ctx, now)
		report.UnbannedUsers = n
		return err
	})
	s.step(ctx, report, "lift club bans", func() error {
		n, err := repo.LiftClubBans(ctx, now)
		report.UnbannedClubs = n
		return err
	})
	s.step(ctx, report, "delete audit logs", func() error {
		n, err := repo.DeleteAuditLogs(ctx, now.AddDate(0, -domain.AuditLogRetentionMonths, 0))
		report.DeletedAuditLogs = n
		return err
	})

	s.logger.InfoContext(ctx, "cleanup finished",
		"deleted_unverified_users", report.DeletedUnverifiedUsers,
		"expired_invitations", report.ExpiredInvitations,
		"deleted_invitations", report.DeletedInvitations,
		"deleted_event_invites", report.DeletedEventInvites,
		"unbanned_users", report.UnbannedUsers,
		"unbanned_clubs", report.UnbannedClubs,
		"deleted_audit_logs", report.DeletedAuditLogs,
		"failed_steps", len(report.Errors),
	)
	return report, nil
}

func (s *maintenanceService) step(ctx context.Context, report *domain.CleanupReport, name string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "cleanup step failed", "step", name, "err", err)
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
	}
}

// SendMembershipReminders mails members whose membership ends within the
// reminder lead time. Each membership is reminded once.
func (s *maintenanceService) SendMembershipReminders(ctx context.Context) (*domain.ReminderReport, error) {
	repos := s.store.Repos()
	now := s.now()
	members, err := repos.Memberships.ListEndingBetween(ctx, now, now.Add(domain.MembershipReminderLead))
	if err != nil {
		return nil, fmt.Errorf("list ending memberships: %w", err)
	}

	report := &domain.ReminderReport{Candidates: len(members)}
	clubs := make(map[string]*domain.Club)
	for _, m := range members {
		club, ok := clubs[m.ClubID]
		if !ok {
			club, err = repos.Clubs.GetByID(ctx, m.ClubID)
			if err != nil {
				s.logger.WarnContext(ctx, "membership reminder skipped", "membership_id", m.MembershipID, "err", err)
				report.Failed++
				continue
			}
			clubs[m.ClubID] = club
		}
		if err := s.emailService.SendMembershipReminder(ctx, &domain.MembershipReminderEmailData{
			Email:    m.Email,
			Name:     m.Name,
			ClubName: club.Name,
			EndDate:  *m.EndDate,
		}); err != nil {
			s.logger.WarnContext(ctx, "membership reminder email failed", "membership_id", m.MembershipID, "err", err)
			report.Failed++
			continue
		}
		if err := repos.Memberships.MarkReminderSent(ctx, m.MembershipID, now); err != nil {
			s.logger.WarnContext(ctx, "mark reminder sent failed", "membership_id", m.MembershipID, "err", err)
		}
		report.Sent++
	}
	return report, nil
}
