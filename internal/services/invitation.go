package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reconned/internal/domain"
)

type invitationService struct {
	store          domain.Store
	audit          domain.AuditRecorder
	notifier       domain.AuditNotifier
	emailService   domain.EmailService
	logger         *slog.Logger
	appURL         string
	contextTimeout time.Duration
	now            func() time.Time
}

// NewInvitationService returns the invitation lifecycle engine. appURL is the
// public base URL used to build links in outgoing mail.
func NewInvitationService(
	store domain.Store,
	audit domain.AuditRecorder,
	notifier domain.AuditNotifier,
	emailService domain.EmailService,
	logger *slog.Logger,
	appURL string,
	timeout time.Duration,
) domain.InvitationService {
	return &invitationService{
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

func (s *invitationService) CreateInvite(ctx context.Context, clubID, email string, actor *domain.Identity) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = domain.NormalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)
	}

	var inv *domain.Invitation
	var club *domain.Club
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		if _, err := requireManager(ctx, r.Memberships, clubID, actor); err != nil {
			return err
		}
		c, err := r.Clubs.GetByID(ctx, clubID)
		if err != nil {
			return err
		}
		club = c
		created, err := s.insertInvitation(ctx, r, clubID, email, domain.InvitationPending, nil)
		if err != nil {
			return err
		}
		inv = created
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  clubID,
			ActorID: actor.UserID,
			Action:  domain.AuditMemberInvite,
			Data:    map[string]any{"invitation_id": inv.ID, "email": inv.Email},
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()

	if err := s.emailService.SendClubInvitation(ctx, &domain.InvitationEmailData{
		Email:     inv.Email,
		ClubName:  club.Name,
		Code:      inv.InviteCode,
		InviteURL: s.appURL + "/invite/" + inv.InviteCode,
		ExpiresAt: inv.ExpiresAt,
	}); err != nil {
		s.logger.WarnContext(ctx, "club invitation email failed", "invitation_id", inv.ID, "err", err)
	}
	return inv, nil
}

func (s *invitationService) RequestAccess(ctx context.Context, clubID string, caller *domain.Identity) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if caller == nil || caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	email := domain.NormalizeEmail(caller.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: account has no email", domain.ErrInvalidInput)
	}

	var inv *domain.Invitation
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		if _, err := r.Clubs.GetByID(ctx, clubID); err != nil {
			return err
		}
		userID := caller.UserID
		created, err := s.insertInvitation(ctx, r, clubID, email, domain.InvitationRequested, &userID)
		if err != nil {
			return err
		}
		inv = created
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  clubID,
			ActorID: caller.UserID,
			Action:  domain.AuditMemberRequest,
			Data:    map[string]any{"invitation_id": inv.ID, "email": inv.Email},
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	return inv, nil
}

// insertInvitation checks membership and the active-invitation rule, then
// inserts with a fresh code. The partial unique index still guards the race
// between the check and the insert.
func (s *invitationService) insertInvitation(ctx context.Context, r domain.Repositories, clubID, email string, status domain.InvitationStatus, userID *string) (*domain.Invitation, error) {
	member, err := r.Memberships.ExistsByClubAndEmail(ctx, clubID, email)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member {
		return nil, domain.ErrAlreadyMember
	}
	if _, err := r.Invitations.FindActive(ctx, clubID, email); err == nil {
		return nil, domain.ErrDuplicatePending
	} else if !errors.Is(err, domain.ErrInvitationNotFound) {
		return nil, fmt.Errorf("find active invitation: %w", err)
	}

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}
		inv := domain.NewInvitation(clubID, email, code, status, s.now())
		inv.UserID = userID
		err = r.Invitations.Create(ctx, inv)
		if errors.Is(err, domain.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
	return nil, fmt.Errorf("no unique invite code after %d attempts: %w", inviteCodeAttempts, domain.ErrCodeTaken)
}

func (s *invitationService) Redeem(ctx context.Context, code string, caller *domain.Identity) (*domain.RedeemResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	code = normalizeInviteCode(code)
	if code == "" {
		return nil, domain.ErrInvitationNotFound
	}

	var result *domain.RedeemResult
	expired := false
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		inv, err := r.Invitations.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		now := s.now()
		if inv.Status.IsTerminal() && inv.Status != domain.InvitationExpired {
			return domain.ErrInviteAlreadyUsed
		}
		if inv.IsExpired(now) {
			expired = true
			return s.expire(ctx, r, inv, actorID(caller), now)
		}
		if inv.Status != domain.InvitationPending {
			return domain.ErrInviteAlreadyUsed
		}

		if caller == nil {
			// Read-only branch: the caller is routed to log in or sign up first.
			_, err := r.Users.GetByEmail(ctx, inv.Email)
			switch {
			case err == nil:
				result = &domain.RedeemResult{Outcome: domain.RedeemNeedsLogin, ClubID: inv.ClubID, Email: inv.Email}
			case errors.Is(err, domain.ErrUserNotFound):
				result = &domain.RedeemResult{Outcome: domain.RedeemNeedsRegistration, ClubID: inv.ClubID, Email: inv.Email}
			default:
				return fmt.Errorf("get user by email: %w", err)
			}
			return nil
		}
		if !domain.SameEmail(caller.Email, inv.Email) {
			return domain.ErrAccountMismatch
		}

		m, err := s.accept(ctx, r, inv, caller.UserID, caller.UserID, now, "code")
		if err != nil {
			return err
		}
		result = &domain.RedeemResult{Outcome: domain.RedeemAccepted, ClubID: inv.ClubID, Email: inv.Email, Membership: m}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.notifier.Notify()
		return nil, domain.ErrInviteExpired
	}
	if result.Outcome == domain.RedeemAccepted {
		s.notifier.Notify()
		s.sendAccepted(ctx, result.ClubID, result.Email)
	}
	return result, nil
}

func (s *invitationService) Decline(ctx context.Context, code string, caller *domain.Identity) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if caller == nil || caller.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	code = normalizeInviteCode(code)
	if code == "" {
		return nil, domain.ErrInvitationNotFound
	}

	var inv *domain.Invitation
	expired := false
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		found, err := r.Invitations.GetByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		inv = found
		now := s.now()
		if inv.Status.IsTerminal() && inv.Status != domain.InvitationExpired {
			return domain.ErrInviteAlreadyUsed
		}
		if inv.IsExpired(now) {
			expired = true
			return s.expire(ctx, r, inv, caller.UserID, now)
		}
		if inv.Status != domain.InvitationPending {
			return domain.ErrInviteAlreadyUsed
		}
		if !domain.SameEmail(caller.Email, inv.Email) {
			return domain.ErrAccountMismatch
		}
		if err := inv.Apply(domain.ActionReject, now); err != nil {
			return err
		}
		userID := caller.UserID
		inv.UserID = &userID
		if err := r.Invitations.UpdateStatus(ctx, inv); err != nil {
			return fmt.Errorf("update invitation: %w", err)
		}
		return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
			ClubID:  inv.ClubID,
			ActorID: caller.UserID,
			Action:  domain.AuditInviteReject,
			Data:    map[string]any{"invitation_id": inv.ID, "email": inv.Email, "declined": true},
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	if expired {
		return nil, domain.ErrInviteExpired
	}
	return inv, nil
}

func (s *invitationService) Decide(ctx context.Context, clubID, invitationID string, decision domain.InvitationDecision, actor *domain.Identity) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if !decision.Valid() {
		return nil, fmt.Errorf("%w: decision must be accept or reject", domain.ErrInvalidInput)
	}

	var inv *domain.Invitation
	expired := false
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		if _, err := requireManager(ctx, r.Memberships, clubID, actor); err != nil {
			return err
		}
		found, err := r.Invitations.GetByIDForUpdate(ctx, invitationID)
		if err != nil {
			return err
		}
		if found.ClubID != clubID {
			return domain.ErrInvitationNotFound
		}
		inv = found
		now := s.now()
		if inv.Status == domain.InvitationAccepted || inv.Status == domain.InvitationRejected {
			return domain.ErrInviteAlreadyUsed
		}
		if inv.IsExpired(now) {
			expired = true
			return s.expire(ctx, r, inv, actor.UserID, now)
		}
		if inv.Status != domain.InvitationRequested {
			return fmt.Errorf("%w: only requested invitations can be decided", domain.ErrIllegalTransition)
		}

		if decision == domain.DecisionReject {
			if err := inv.Apply(domain.ActionReject, now); err != nil {
				return err
			}
			if err := r.Invitations.UpdateStatus(ctx, inv); err != nil {
				return fmt.Errorf("update invitation: %w", err)
			}
			return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
				ClubID:  inv.ClubID,
				ActorID: actor.UserID,
				Action:  domain.AuditInviteReject,
				Data:    map[string]any{"invitation_id": inv.ID, "email": inv.Email},
			})
		}

		userID, err := s.requesterID(ctx, r, inv)
		if err != nil {
			return err
		}
		_, err = s.accept(ctx, r, inv, userID, actor.UserID, now, "decision")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	if expired {
		return nil, domain.ErrInviteExpired
	}
	if inv.Status == domain.InvitationAccepted {
		s.sendAccepted(ctx, inv.ClubID, inv.Email)
	}
	return inv, nil
}

// requesterID resolves the account an access request belongs to.
func (s *invitationService) requesterID(ctx context.Context, r domain.Repositories, inv *domain.Invitation) (string, error) {
	if inv.UserID != nil && *inv.UserID != "" {
		return *inv.UserID, nil
	}
	u, err := r.Users.GetByEmail(ctx, inv.Email)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *invitationService) AcceptForVerifiedEmail(ctx context.Context, userID, email string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = domain.NormalizeEmail(email)
	if userID == "" || email == "" {
		return 0, fmt.Errorf("%w: user id and email are required", domain.ErrInvalidInput)
	}

	var accepted []*domain.Invitation
	touched := false
	err := s.store.WithinTx(ctx, func(r domain.Repositories) error {
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !domain.SameEmail(u.Email, email) {
			return domain.ErrAccountMismatch
		}
		if !u.EmailVerified {
			return fmt.Errorf("%w: email is not verified", domain.ErrForbidden)
		}

		pending, err := r.Invitations.ListPendingByEmailForUpdate(ctx, email)
		if err != nil {
			return fmt.Errorf("list pending invitations: %w", err)
		}
		now := s.now()
		for _, inv := range pending {
			touched = true
			if inv.IsExpired(now) {
				if err := s.expire(ctx, r, inv, userID, now); err != nil {
					return err
				}
				continue
			}
			if _, err := r.Memberships.GetByClubAndUser(ctx, inv.ClubID, userID); err == nil {
				// Already a member: close the invitation without a second membership.
				if err := s.markAccepted(ctx, r, inv, userID, userID, now, "email_verified", nil); err != nil {
					return err
				}
				accepted = append(accepted, inv)
				continue
			} else if !errors.Is(err, domain.ErrMembershipNotFound) {
				return fmt.Errorf("get membership: %w", err)
			}
			if _, err := s.accept(ctx, r, inv, userID, userID, now, "email_verified"); err != nil {
				return err
			}
			accepted = append(accepted, inv)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if touched {
		s.notifier.Notify()
	}
	for _, inv := range accepted {
		s.sendAccepted(ctx, inv.ClubID, inv.Email)
	}
	return len(accepted), nil
}

func (s *invitationService) ListClubInvitations(ctx context.Context, clubID string, status domain.InvitationStatus, actor *domain.Identity, params domain.PaginationParams) ([]*domain.Invitation, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	repos := s.store.Repos()
	if _, err := requireManager(ctx, repos.Memberships, clubID, actor); err != nil {
		return nil, 0, err
	}
	invitations, total, err := repos.Invitations.ListByClubID(ctx, clubID, status, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}
	return invitations, total, nil
}

// accept moves inv to ACCEPTED, binds userID and creates the membership in
// the same transaction. A duplicate membership fails the whole transaction.
func (s *invitationService) accept(ctx context.Context, r domain.Repositories, inv *domain.Invitation, userID, actorID string, now time.Time, via string) (*domain.ClubMembership, error) {
	m := domain.NewClubMembership(inv.ClubID, userID, domain.RoleUser, now)
	if err := s.markAccepted(ctx, r, inv, userID, actorID, now, via, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *invitationService) markAccepted(ctx context.Context, r domain.Repositories, inv *domain.Invitation, userID, actorID string, now time.Time, via string, m *domain.ClubMembership) error {
	if err := inv.Apply(domain.ActionAccept, now); err != nil {
		return err
	}
	inv.UserID = &userID
	if err := r.Invitations.UpdateStatus(ctx, inv); err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	data := map[string]any{"invitation_id": inv.ID, "email": inv.Email, "user_id": userID, "via": via}
	if m != nil {
		if err := r.Memberships.Create(ctx, m); err != nil {
			return err
		}
		data["membership_id"] = m.ID
	}
	return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
		ClubID:  inv.ClubID,
		ActorID: actorID,
		Action:  domain.AuditInviteAccept,
		Data:    data,
	})
}

// expire records the lazy expiry of an active invitation. The caller commits
// the transaction and then reports ErrInviteExpired.
func (s *invitationService) expire(ctx context.Context, r domain.Repositories, inv *domain.Invitation, actorID string, now time.Time) error {
	if !inv.Status.IsActive() {
		return nil
	}
	if err := inv.Apply(domain.ActionExpire, now); err != nil {
		return err
	}
	if err := r.Invitations.UpdateStatus(ctx, inv); err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	return s.audit.Record(ctx, r.AuditOutbox, domain.AuditEntry{
		ClubID:  inv.ClubID,
		ActorID: actorID,
		Action:  domain.AuditInviteExpire,
		Data:    map[string]any{"invitation_id": inv.ID, "email": inv.Email},
	})
}

func (s *invitationService) sendAccepted(ctx context.Context, clubID, email string) {
	club, err := s.store.Repos().Clubs.GetByID(ctx, clubID)
	if err != nil {
		s.logger.WarnContext(ctx, "invite accepted email skipped", "club_id", clubID, "err", err)
		return
	}
	if err := s.emailService.SendInviteAccepted(ctx, &domain.InviteAcceptedEmailData{
		Email:    email,
		ClubName: club.Name,
		ClubURL:  s.appURL + "/dashboard/" + clubID + "/club",
	}); err != nil {
		s.logger.WarnContext(ctx, "invite accepted email failed", "club_id", clubID, "err", err)
	}
}

func normalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
