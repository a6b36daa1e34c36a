package domain

import (
	"context"
	"fmt"
	"time"
)

// MembershipReminderLead is how far ahead of a membership's end date the reminder is sent.
const MembershipReminderLead = 7 * 24 * time.Hour

// Role is a member's role within a club.
type Role string

const (
	RoleUser      Role = "USER"
	RoleManager   Role = "MANAGER"
	RoleClubOwner Role = "CLUB_OWNER"
)

// ParseRole validates s.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleManager, RoleClubOwner:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// CanManage reports whether the role may administer club members and invitations.
func (r Role) CanManage() bool {
	return r == RoleManager || r == RoleClubOwner
}

// ClubMembership links a user to a club.
// swagger:model ClubMembership
type ClubMembership struct {
	ID             string     `json:"id"`
	ClubID         string     `json:"club_id"`
	UserID         string     `json:"user_id"`
	Role           Role       `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	ReminderSentAt *time.Time `json:"-"`
}

// NewClubMembership returns a membership. ID is set by the repository on create.
func NewClubMembership(clubID, userID string, role Role, createdAt time.Time) *ClubMembership {
	return &ClubMembership{
		ClubID:    clubID,
		UserID:    userID,
		Role:      role,
		CreatedAt: createdAt,
	}
}

// ClubMember is a membership joined with the member's account details.
// swagger:model ClubMember
type ClubMember struct {
	MembershipID string     `json:"membership_id"`
	ClubID       string     `json:"club_id"`
	UserID       string     `json:"user_id"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	CreatedAt    time.Time  `json:"created_at"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// MembershipRepository defines storage operations for club memberships.
type MembershipRepository interface {
	// Create returns ErrAlreadyMember when (user, club) already exists.
	Create(ctx context.Context, m *ClubMembership) error
	GetByID(ctx context.Context, id string) (*ClubMembership, error)
	GetByClubAndUser(ctx context.Context, clubID, userID string) (*ClubMembership, error)
	ExistsByClubAndEmail(ctx context.Context, clubID, email string) (bool, error)
	ListByClubID(ctx context.Context, clubID string, params PaginationParams) ([]*ClubMember, int, error)
	UpdateRole(ctx context.Context, id string, role Role) error
	Delete(ctx context.Context, id string) error
	// ListEndingBetween returns un-reminded memberships whose end date falls in [from, to).
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]*ClubMember, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
}

// MembershipReminderEmailData holds data for the membership expiry reminder.
type MembershipReminderEmailData struct {
	Email    string
	Name     string
	ClubName string
	EndDate  time.Time
}

// MembershipService defines the club membership engine.
type MembershipService interface {
	ListMembers(ctx context.Context, clubID string, actor *Identity, params PaginationParams) ([]*ClubMember, int, error)
	RemoveMember(ctx context.Context, clubID, membershipID string, actor *Identity) error
	LeaveClub(ctx context.Context, clubID string, caller *Identity) error
	Promote(ctx context.Context, clubID, membershipID string, actor *Identity) (*ClubMembership, error)
	Demote(ctx context.Context, clubID, membershipID string, actor *Identity) (*ClubMembership, error)
}
