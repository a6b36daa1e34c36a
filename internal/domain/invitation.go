package domain

import (
	"context"
	"time"
)

// InvitationTTL is how long an invitation code stays redeemable.
const InvitationTTL = 30 * 24 * time.Hour

// InvitationRetentionMonths is how long EXPIRED invitations are kept before deletion.
const InvitationRetentionMonths = 3

// Invitation offers membership of a club to an email address. It is created
// PENDING by a club manager or REQUESTED by the prospective member.
// swagger:model Invitation
type Invitation struct {
	ID         string           `json:"id"`
	InviteCode string           `json:"invite_code"`
	Email      string           `json:"email"`
	UserID     *string          `json:"user_id,omitempty"`
	ClubID     string           `json:"club_id"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewInvitation returns an invitation in the given initial status. ID is set by the repository on create.
func NewInvitation(clubID, email, code string, status InvitationStatus, now time.Time) *Invitation {
	return &Invitation{
		InviteCode: code,
		Email:      email,
		ClubID:     clubID,
		Status:     status,
		ExpiresAt:  now.Add(InvitationTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsExpired reports whether the invitation's validity has passed at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationExpired || !now.Before(i.ExpiresAt)
}

// Apply moves the invitation through the state machine. The receiver is left
// untouched when the transition is illegal.
func (i *Invitation) Apply(action InvitationAction, now time.Time) error {
	next, err := i.Status.Next(action)
	if err != nil {
		return err
	}
	i.Status = next
	i.UpdatedAt = now
	return nil
}

// InvitationRepository defines storage operations for club invitations.
type InvitationRepository interface {
	// Create inserts inv. Returns ErrCodeTaken when the code collides and
	// ErrDuplicatePending when an active invitation exists for (club, email).
	Create(ctx context.Context, inv *Invitation) error
	GetByID(ctx context.Context, id string) (*Invitation, error)
	// GetByCodeForUpdate locks the row for the rest of the transaction.
	GetByCodeForUpdate(ctx context.Context, code string) (*Invitation, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Invitation, error)
	FindActive(ctx context.Context, clubID, email string) (*Invitation, error)
	ListPendingByEmailForUpdate(ctx context.Context, email string) ([]*Invitation, error)
	ListByClubID(ctx context.Context, clubID string, status InvitationStatus, params PaginationParams) ([]*Invitation, int, error)
	UpdateStatus(ctx context.Context, inv *Invitation) error
}

// InvitationDecision is a manager's answer to an access request.
type InvitationDecision string

const (
	DecisionAccept InvitationDecision = "accept"
	DecisionReject InvitationDecision = "reject"
)

// Valid reports whether d is a known decision.
func (d InvitationDecision) Valid() bool {
	return d == DecisionAccept || d == DecisionReject
}

// RedeemOutcome tells the redemption endpoint where to send the caller.
type RedeemOutcome string

const (
	RedeemAccepted          RedeemOutcome = "accepted"
	RedeemNeedsLogin        RedeemOutcome = "needs_login"
	RedeemNeedsRegistration RedeemOutcome = "needs_registration"
)

// RedeemResult is returned by a redemption attempt that did not fail.
type RedeemResult struct {
	Outcome    RedeemOutcome   `json:"outcome"`
	ClubID     string          `json:"club_id"`
	Email      string          `json:"email"`
	Membership *ClubMembership `json:"membership,omitempty"`
}

// InvitationEmailData holds data for the club invitation email.
type InvitationEmailData struct {
	Email     string
	ClubName  string
	Code      string
	InviteURL string
	ExpiresAt time.Time
}

// InviteAcceptedEmailData holds data for the welcome-to-club email.
type InviteAcceptedEmailData struct {
	Email    string
	ClubName string
	ClubURL  string
}

// InvitationService defines the invitation lifecycle operations.
type InvitationService interface {
	CreateInvite(ctx context.Context, clubID, email string, actor *Identity) (*Invitation, error)
	RequestAccess(ctx context.Context, clubID string, caller *Identity) (*Invitation, error)
	// Redeem consumes code. caller is nil for unauthenticated requests.
	Redeem(ctx context.Context, code string, caller *Identity) (*RedeemResult, error)
	Decline(ctx context.Context, code string, caller *Identity) (*Invitation, error)
	Decide(ctx context.Context, clubID, invitationID string, decision InvitationDecision, actor *Identity) (*Invitation, error)
	// AcceptForVerifiedEmail accepts every PENDING invitation addressed to email
	// once the identity provider has proven ownership of it.
	AcceptForVerifiedEmail(ctx context.Context, userID, email string) (int, error)
	ListClubInvitations(ctx context.Context, clubID string, status InvitationStatus, actor *Identity, params PaginationParams) ([]*Invitation, int, error)
}
