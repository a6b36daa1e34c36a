package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Off-platform invitee token lifetime and retention after expiry.
const (
	EventInviteTTL             = 7 * 24 * time.Hour
	EventInviteRetentionMonths = InvitationRetentionMonths
)

// RegistrationType is how the registrant takes part in the event.
type RegistrationType string

const (
	RegistrationSolo RegistrationType = "solo"
	RegistrationTeam RegistrationType = "team"
)

// PaymentMethod is how the registrant pays the event fee.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentBank PaymentMethod = "bank"
)

// EventRegistration represents a registrant's sign-up for an event, with the
// co-participants they bring.
// swagger:model EventRegistration
type EventRegistration struct {
	ID              string                 `json:"id"`
	EventID         string                 `json:"event_id"`
	CreatedByID     string                 `json:"created_by_id"`
	Type            RegistrationType       `json:"type"`
	PaymentMethod   PaymentMethod          `json:"payment_method"`
	Attended        bool                   `json:"attended"`
	InvitedUserIDs  []string               `json:"invited_user_ids"`
	InvitedNotOnApp []*EventInviteNotOnApp `json:"invited_users_not_on_app"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// NewEventRegistration creates a new EventRegistration. ID is typically set by the repository on create.
func NewEventRegistration(eventID, userID string, in *RegistrationInput, createdAt, updatedAt time.Time) *EventRegistration {
	return &EventRegistration{
		EventID:       eventID,
		CreatedByID:   userID,
		Type:          in.Type,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// EventInviteNotOnApp is a co-participant without a platform account.
// swagger:model EventInviteNotOnApp
type EventInviteNotOnApp struct {
	ID                  string    `json:"id"`
	EventRegistrationID string    `json:"event_registration_id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Token               string    `json:"-"`
	ExpiresAt           time.Time `json:"expires_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// NotOnAppInvitee is the submitted form of an off-platform co-participant.
type NotOnAppInvitee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegistrationInput is the registrant's submission.
type RegistrationInput struct {
	Type            RegistrationType  `json:"type"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	RulesAccepted   bool              `json:"rules_accepted"`
	InvitedUserIDs  []string          `json:"invited_user_ids"`
	InvitedNotOnApp []NotOnAppInvitee `json:"invited_users_not_on_app"`
}

// Normalize validates the input, trims and de-duplicates the invitee lists
// and drops the registrant from their own invitee list.
func (in *RegistrationInput) Normalize(registrantID string) error {
	switch in.Type {
	case RegistrationSolo, RegistrationTeam:
	default:
		return fmt.Errorf("%w: type must be solo or team", ErrInvalidInput)
	}
	switch in.PaymentMethod {
	case PaymentCash, PaymentBank:
	default:
		return fmt.Errorf("%w: payment_method must be cash or bank", ErrInvalidInput)
	}
	if !in.RulesAccepted {
		return ErrRulesNotAccepted
	}

	seenIDs := make(map[string]struct{}, len(in.InvitedUserIDs))
	ids := make([]string, 0, len(in.InvitedUserIDs))
	for _, id := range in.InvitedUserIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == registrantID {
			continue
		}
		if _, ok := seenIDs[id]; ok {
			continue
		}
		seenIDs[id] = struct{}{}
		ids = append(ids, id)
	}
	in.InvitedUserIDs = ids

	seenEmails := make(map[string]struct{}, len(in.InvitedNotOnApp))
	invitees := make([]NotOnAppInvitee, 0, len(in.InvitedNotOnApp))
	for _, inv := range in.InvitedNotOnApp {
		name := strings.TrimSpace(inv.Name)
		email := NormalizeEmail(inv.Email)
		if name == "" || email == "" {
			return fmt.Errorf("%w: invitees need a name and an email", ErrInvalidInput)
		}
		if !strings.Contains(email, "@") {
			return fmt.Errorf("%w: invalid invitee email %q", ErrInvalidInput, inv.Email)
		}
		if _, ok := seenEmails[email]; ok {
			continue
		}
		seenEmails[email] = struct{}{}
		invitees = append(invitees, NotOnAppInvitee{Name: name, Email: email})
	}
	in.InvitedNotOnApp = invitees

	if in.Type == RegistrationSolo && (len(in.InvitedUserIDs) > 0 || len(in.InvitedNotOnApp) > 0) {
		return fmt.Errorf("%w: solo registrations cannot bring co-participants", ErrInvalidInput)
	}
	return nil
}

// EventRegistrationRepository defines storage operations for event registrations.
type EventRegistrationRepository interface {
	// Upsert inserts the registration or, when one exists for (event, registrant),
	// updates it in place. created reports which of the two happened.
	Upsert(ctx context.Context, reg *EventRegistration) (created bool, err error)
	GetByID(ctx context.Context, id string) (*EventRegistration, error)
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*EventRegistration, error)
	Delete(ctx context.Context, id string) error
	SetAttended(ctx context.Context, id string, attended bool, updatedAt time.Time) error
	ReplaceInvitedUsers(ctx context.Context, registrationID string, userIDs []string) error
	ListInvitedUserIDs(ctx context.Context, registrationID string) ([]string, error)
	// ReplaceInviteesNotOnApp deletes every placeholder of the registration and inserts invitees.
	ReplaceInviteesNotOnApp(ctx context.Context, registrationID string, invitees []*EventInviteNotOnApp) error
	ListInviteesNotOnApp(ctx context.Context, registrationID string) ([]*EventInviteNotOnApp, error)
}

// EventInvitationEmailData holds data for the email sent to an off-platform co-participant.
type EventInvitationEmailData struct {
	Email       string
	Name        string
	InviterName string
	EventName   string
	JoinURL     string
	ExpiresAt   time.Time
}

// RegistrationService defines the event registration engine.
type RegistrationService interface {
	// Submit creates or updates the caller's registration. created is true for a new registration.
	Submit(ctx context.Context, eventID string, caller *Identity, in *RegistrationInput) (*EventRegistration, bool, error)
	GetMine(ctx context.Context, eventID string, caller *Identity) (*EventRegistration, error)
	Delete(ctx context.Context, eventID string, caller *Identity) error
	ToggleAttendance(ctx context.Context, registrationID string, attended bool, actor *Identity) (*EventRegistration, error)
	EventWindow(ctx context.Context, eventID string) (*EventWindowStatus, error)
}
