package services

import (
	"context"
	"errors"
	"fmt"

	"reconned/internal/domain"
)

// clubMembership returns actor's membership of clubID. A caller without a
// membership gets ErrInsufficientRole, not NotFound.
func clubMembership(ctx context.Context, memberships domain.MembershipRepository, clubID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	if actor == nil || actor.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	m, err := memberships.GetByClubAndUser(ctx, clubID, actor.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return nil, domain.ErrInsufficientRole
		}
		return nil, fmt.Errorf("get actor membership: %w", err)
	}
	return m, nil
}

func requireManager(ctx context.Context, memberships domain.MembershipRepository, clubID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	m, err := clubMembership(ctx, memberships, clubID, actor)
	if err != nil {
		return nil, err
	}
	if !m.Role.CanManage() {
		return nil, domain.ErrInsufficientRole
	}
	return m, nil
}

func requireOwner(ctx context.Context, memberships domain.MembershipRepository, clubID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	m, err := clubMembership(ctx, memberships, clubID, actor)
	if err != nil {
		return nil, err
	}
	if m.Role != domain.RoleClubOwner {
		return nil, domain.ErrInsufficientRole
	}
	return m, nil
}

func actorID(actor *domain.Identity) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}
