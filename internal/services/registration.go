package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"reconned/internal/domain"
)

type registrationService struct {
	store          domain.Store
	audit          domain.AuditRecorder
	notifier       domain.AuditNotifier
	emailService   domain.EmailService
	logger         *slog.Logger
	appURL         string
	contextTimeout time.Duration
	now            func() time.Time
}

// NewRegistrationService returns the event registration engine.
func NewRegistrationService(
	store domain.Store,
	audit domain.AuditRecorder,
	notifier domain.AuditNotifier,
	emailService domain.EmailService,
	logger *slog.Logger,
	appURL string,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		store:          store,
		audit:          audit,
		notifier:       notifier,
		emailService:   emailService,
		logger:         logger,
		appURL:         strings.TrimRight(appURL, "/"),
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *registrationService) Submit(ctx context.Context, eventID string, caller *domain.Identity, in *domain.RegistrationInput) (*domain.EventRegistration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if caller == nil || caller.UserID == "" {
		return nil, false, domain.ErrUnauthorized
	}
	if in == nil {
		return nil, false, fmt.Errorf("%w: registration body is required", domain.ErrInvalidInput)
	}

	repos := s.store.Repos()
	ev, err := repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	now := s.now()
	if err := domain.RegistrationWindowError(ev, now); err != nil {
		return nil, false, err
	}
	if err := s.checkPrivateAccess(ctx, repos, ev, caller); err != nil {
		return nil, false, err
	}
	if err := in.Normalize(caller.UserID); err != nil {
		return nil, false, err
	}
	for _, id := range in.InvitedUserIDs {
		if _, err := repos.Users.GetByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return nil, false, fmt.Errorf("%w: invited user %s does not exist", domain.ErrInvalidInput, id)
			}
			return nil, false, fmt.Errorf("get invited user: %w", err)
		}
	}

	reg := domain.NewEventRegistration(eventID, caller.UserID, in, now, now)
	var created bool
	err = s.store.WithinTx(ctx, func(r domain.Repositories) error {
		var err error
		created, err = r.Registrations.Upsert(ctx, reg)
		if err != nil {
			return fmt.Errorf("upsert registration: %w", err)
		}
		if err := r.Registrations.ReplaceInvitedUsers(ctx, reg.ID, in.InvitedUserIDs); err != nil {
			return fmt.Errorf("replace invited users: %w", err)
		}
		invitees, err := replaceInviteeSet(ctx, r.Registrations, reg.ID, in.InvitedNotOnApp, now)
		if err != nil {
			return err
		}
		reg.InvitedUserIDs = in.InvitedUserIDs
		reg.InvitedNotOnApp = invitees

		action := domain.AuditRegistrationUpdate
		if created {
			action = domain.AuditRegistrationCreate
		}
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  ev.ClubID,
			ActorID: caller.UserID,
			Action:  action,
			Data: map[string]any{
				"event_id":        ev.ID,
				"registration_id": reg.ID,
				"type":            reg.Type,
				"payment_method":  reg.PaymentMethod,
				"invited_users":   len(reg.InvitedUserIDs),
				"invited_off_app": len(reg.InvitedNotOnApp),
			},
		})
	})
	if err != nil {
		return nil, false, err
	}
	s.notifier.Notify()
	s.sendInviteeEmails(ctx, ev, caller, reg.InvitedNotOnApp)
	return reg, created, nil
}

// replaceInviteeSet holds the policy for off-platform invitees: every edit
// deletes the whole set and recreates it with fresh tokens.
func replaceInviteeSet(ctx context.Context, repo domain.EventRegistrationRepository, registrationID string, invitees []domain.NotOnAppInvitee, now time.Time) ([]*domain.EventInviteNotOnApp, error) {
	records := make([]*domain.EventInviteNotOnApp, 0, len(invitees))
	for _, inv := range invitees {
		token, err := generateInviteToken()
		if err != nil {
			return nil, fmt.Errorf("generate invite token: %w", err)
		}
		records = append(records, &domain.EventInviteNotOnApp{
			EventRegistrationID: registrationID,
			Name:                inv.Name,
			Email:               inv.Email,
			Token:               token,
			ExpiresAt:           now.Add(domain.EventInviteTTL),
			CreatedAt:           now,
		})
	}
	if err := repo.ReplaceInviteesNotOnApp(ctx, registrationID, records); err != nil {
		return nil, fmt.Errorf("replace invitees: %w", err)
	}
	return records, nil
}

func (s *registrationService) checkPrivateAccess(ctx context.Context, repos domain.Repositories, ev *domain.Event, caller *domain.Identity) error {
	if !ev.IsPrivate {
		return nil
	}
	if _, err := repos.Memberships.GetByClubAndUser(ctx, ev.ClubID, caller.UserID); err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.ErrPrivateEventForbidden
		}
		return fmt.Errorf("get membership: %w", err)
	}
	return nil
}

func (s *registrationService) sendInviteeEmails(ctx context.Context, ev *domain.Event, caller *domain.Identity, invitees []*domain.EventInviteNotOnApp) {
	if len(invitees) == 0 {
		return
	}
	inviterName := caller.Email
	if u, err := s.store.Repos().Users.GetByID(ctx, caller.UserID); err == nil && u.Name != "" {
		inviterName = u.Name
	}
	for _, inv := range invitees {
		err := s.emailService.SendEventInvitation(ctx, &domain.EventInvitationEmailData{
			Email:       inv.Email,
			Name:        inv.Name,
			InviterName: inviterName,
			EventName:   ev.Name,
			JoinURL:     s.appURL + "/register?eventInvite=" + url.QueryEscape(inv.Token) + "&email=" + url.QueryEscape(inv.Email),
			ExpiresAt:   inv.ExpiresAt,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "event invitation email failed", "event_id", ev.ID, "err", err)
		}
	}
}

func (s *registrationService) GetMine(ctx context.Context, eventID string, caller *domain.Identity) (*domain.EventRegistration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if caller == nil || caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	repos := s.store.Repos()
	reg, err := repos.Registrations.GetByEventAndUser(ctx, eventID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if reg.InvitedUserIDs, err = repos.Registrations.ListInvitedUserIDs(ctx, reg.ID); err != nil {
		return nil, fmt.Errorf("list invited users: %w", err)
	}
	if reg.InvitedNotOnApp, err = repos.Registrations.ListInviteesNotOnApp(ctx, reg.ID); err != nil {
		return nil, fmt.Errorf("list invitees: %w", err)
	}
	return reg, nil
}

func (s *registrationService) Delete(ctx context.Context, eventID string, caller *domain.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if caller == nil || caller.UserID == "" {
		return domain.ErrUnauthorized
	}
	repos := s.store.Repos()
	ev, err := repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if err := domain.RegistrationWindowError(ev, s.now()); err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(r domain.Repositories) error {
		reg, err := r.Registrations.GetByEventAndUser(ctx, eventID, caller.UserID)
		if err != nil {
			return err
		}
		// Invited-user links and placeholders go with the row (ON DELETE CASCADE).
		if err := r.Registrations.Delete(ctx, reg.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  ev.ClubID,
			ActorID: caller.UserID,
			Action:  domain.AuditRegistrationDelete,
			Data:    map[string]any{"event_id": ev.ID, "registration_id": reg.ID},
		})
	})
	if err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

func (s *registrationService) ToggleAttendance(ctx context.Context, registrationID string, attended bool, actor *domain.Identity) (*domain.EventRegistration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	repos := s.store.Repos()
	reg, err := repos.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	ev, err := repos.Events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	if _, err := requireManager(ctx, repos.Memberships, ev.ClubID, actor); err != nil {
		return nil, err
	}
	now := s.now()
	if err := domain.AttendanceWindowError(ev, now); err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(r domain.Repositories) error {
		if err := r.Registrations.SetAttended(ctx, reg.ID, attended, now); err != nil {
			return err
		}
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  ev.ClubID,
			ActorID: actor.UserID,
			Action:  domain.AuditAttendanceToggle,
			Data:    map[string]any{"event_id": ev.ID, "registration_id": reg.ID, "attended": attended},
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	reg.Attended = attended
	reg.UpdatedAt = now
	return reg, nil
}

func (s *registrationService) EventWindow(ctx context.Context, eventID string) (*domain.EventWindowStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	ev, err := s.store.Repos().Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return domain.NewEventWindowStatus(ev, s.now()), nil
}
