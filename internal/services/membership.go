package services

import (
	"context"
	"fmt"
	"time"

	"reconned/internal/domain"
)

type membershipService struct {
	store          domain.Store
	audit          domain.AuditRecorder
	notifier       domain.AuditNotifier
	contextTimeout time.Duration
}

// NewMembershipService returns the club membership engine.
func NewMembershipService(store domain.Store, audit domain.AuditRecorder, notifier domain.AuditNotifier, timeout time.Duration) domain.MembershipService {
	return &membershipService{
		store:          store,
		audit:          audit,
		notifier:       notifier,
		contextTimeout: timeout,
	}
}

func (s *membershipService) ListMembers(ctx context.Context, clubID string, actor *domain.Identity, params domain.PaginationParams) ([]*domain.ClubMember, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	repos := s.store.Repos()
	if _, err := clubMembership(ctx, repos.Memberships, clubID, actor); err != nil {
		return nil, 0, err
	}
	members, total, err := repos.Memberships.ListByClubID(ctx, clubID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	return members, total, nil
}

func (s *membershipService) RemoveMember(ctx context.Context, clubID, membershipID string, actor *domain.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		actorMembership, err := requireManager(ctx, r.Memberships, clubID, actor)
		if err != nil {
			return err
		}
		target, err := targetMembership(ctx, r, clubID, membershipID)
		if err != nil {
			return err
		}
		if target.Role == domain.RoleClubOwner {
			return domain.ErrOwnerProtected
		}
		// Managers are removed by the owner only.
		if target.Role == domain.RoleManager && actorMembership.Role != domain.RoleClubOwner {
			return domain.ErrInsufficientRole
		}
		if err := r.Memberships.Delete(ctx, target.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  clubID,
			ActorID: actor.UserID,
			Action:  domain.AuditMemberRemove,
			Data:    map[string]any{"membership_id": target.ID, "user_id": target.UserID, "role": target.Role},
		})
	})
	if err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

func (s *membershipService) LeaveClub(ctx context.Context, clubID string, caller *domain.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if caller == nil || caller.UserID == "" {
		return domain.ErrUnauthorized
	}
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		m, err := r.Memberships.GetByClubAndUser(ctx, clubID, caller.UserID)
		if err != nil {
			return err
		}
		if m.Role == domain.RoleClubOwner {
			return domain.ErrOwnerProtected
		}
		if err := r.Memberships.Delete(ctx, m.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  clubID,
			ActorID: caller.UserID,
			Action:  domain.AuditMemberLeave,
			Data:    map[string]any{"membership_id": m.ID},
		})
	})
	if err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

func (s *membershipService) Promote(ctx context.Context, clubID, membershipID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	return s.changeRole(ctx, clubID, membershipID, actor, domain.RoleUser, domain.RoleManager, domain.AuditMemberPromote)
}

func (s *membershipService) Demote(ctx context.Context, clubID, membershipID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	return s.changeRole(ctx, clubID, membershipID, actor, domain.RoleManager, domain.RoleUser, domain.AuditMemberDemote)
}

// changeRole moves a member between USER and MANAGER. The owner role is never
// granted or taken here.
func (s *membershipService) changeRole(ctx context.Context, clubID, membershipID string, actor *domain.Identity, from, to domain.Role, action domain.AuditAction) (*domain.ClubMembership, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var target *domain.ClubMembership
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		if _, err := requireOwner(ctx, r.Memberships, clubID, actor); err != nil {
			return err
		}
		m, err := targetMembership(ctx, r, clubID, membershipID)
		if err != nil {
			return err
		}
		if m.Role == domain.RoleClubOwner {
			return domain.ErrOwnerProtected
		}
		if m.Role != from {
			return fmt.Errorf("%w: member role is %s", domain.ErrConflict, m.Role)
		}
		if err := r.Memberships.UpdateRole(ctx, m.ID, to); err != nil {
			return err
		}
		m.Role = to
		target = m
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  clubID,
			ActorID: actor.UserID,
			Action:  action,
			Data:    map[string]any{"membership_id": m.ID, "user_id": m.UserID, "from": from, "to": to},
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	return target, nil
}

// targetMembership loads membershipID and hides memberships of other clubs.
func targetMembership(ctx context.Context, r domain.Repositories, clubID, membershipID string) (*domain.ClubMembership, error) {
	m, err := r.Memberships.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.ClubID != clubID {
		return nil, domain.ErrMembershipNotFound
	}
	return m, nil
}
