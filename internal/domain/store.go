package domain

import "context"

// Repositories bundles the repositories bound to one connection or transaction.
type Repositories struct {
	Users         UserRepository
	Clubs         ClubRepository
	Events        EventRepository
	Invitations   InvitationRepository
	Memberships   MembershipRepository
	Registrations EventRegistrationRepository
	AuditOutbox   AuditOutboxRepository
	AuditLogs     AuditLogRepository
	Cleanup       CleanupRepository
}

// Store is the unit of work over the relational store.
type Store interface {
	// Repos returns repositories that run each statement on its own.
	Repos() Repositories
	// WithinTx runs fn in one transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
}
