package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"reconned/internal/domain"
)

type store struct {
	DB *sql.DB
}

// NewStore returns the unit of work backed by db.
func NewStore(db *sql.DB) domain.Store {
	return &store{DB: db}
}

func newRepositories(db DBTX) domain.Repositories {
	return domain.Repositories{
		Users:         NewUserRepository(db),
		Clubs:         NewClubRepository(db),
		Events:        NewEventRepository(db),
		Invitations:   NewInvitationRepository(db),
		Memberships:   NewMembershipRepository(db),
		Registrations: NewEventRegistrationRepository(db),
		AuditOutbox:   NewAuditOutboxRepository(db),
		AuditLogs:     NewAuditLogRepository(db),
		Cleanup:       NewCleanupRepository(db),
	}
}

func (s *store) Repos() domain.Repositories {
	return newRepositories(s.DB)
}

func (s *store) WithinTx(ctx context.Context, fn func(r domain.Repositories) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
