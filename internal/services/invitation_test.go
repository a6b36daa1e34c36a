package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reconned/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type invitationFixture struct {
	store    *memStore
	emails   *mockEmailService
	notifier *countingNotifier
	clock    *fixedClock
	svc      domain.InvitationService
}

// newInvitationFixture seeds club c1 with an owner, a manager and a plain member.
func newInvitationFixture(t *testing.T) *invitationFixture {
	t.Helper()
	store := newMemStore()
	store.addClub("c1", "Tvrđava")
	store.addClub("c2", "Bunker")
	store.addUser(&domain.User{ID: "u-owner", Email: "owner@example.com", Name: "Owner", EmailVerified: true})
	store.addUser(&domain.User{ID: "u-manager", Email: "manager@example.com", Name: "Manager", EmailVerified: true})
	store.addUser(&domain.User{ID: "u-member", Email: "member@example.com", Name: "Member", EmailVerified: true})
	store.addMember("m-owner", "c1", "u-owner", domain.RoleClubOwner)
	store.addMember("m-manager", "c1", "u-manager", domain.RoleManager)
	store.addMember("m-member", "c1", "u-member", domain.RoleUser)

	f := &invitationFixture{
		store:    store,
		emails:   &mockEmailService{},
		notifier: &countingNotifier{},
		clock:    &fixedClock{t: testNow},
	}
	f.svc = NewInvitationService(store, NewAuditRecorder(discardLogger()), f.notifier, f.emails, discardLogger(), "https://app.test/", 5*time.Second)
	f.svc.(*invitationService).now = f.clock.Now
	return f
}

// pending seeds a PENDING invitation for email in c1.
func (f *invitationFixture) pending(id, code, email string, expiresAt time.Time) *domain.Invitation {
	return f.store.addInvitation(&domain.Invitation{
		ID:         id,
		InviteCode: code,
		Email:      email,
		ClubID:     "c1",
		Status:     domain.InvitationPending,
		ExpiresAt:  expiresAt,
		CreatedAt:  expiresAt.Add(-domain.InvitationTTL),
		UpdatedAt:  expiresAt.Add(-domain.InvitationTTL),
	})
}

func TestInvitationService_CreateInvite(t *testing.T) {
	tests := []struct {
		name    string
		actor   *domain.Identity
		email   string
		seed    func(f *invitationFixture)
		wantErr error
	}{
		{name: "owner invites", actor: identity("u-owner", "owner@example.com"), email: "newbie@example.com"},
		{name: "manager invites and email is normalized", actor: identity("u-manager", "manager@example.com"), email: "  NewBie@Example.com "},
		{name: "plain member cannot invite", actor: identity("u-member", "member@example.com"), email: "newbie@example.com", wantErr: domain.ErrInsufficientRole},
		{name: "anonymous", actor: nil, email: "newbie@example.com", wantErr: domain.ErrUnauthorized},
		{name: "outsider", actor: identity("u-x", "x@example.com"), email: "newbie@example.com", wantErr: domain.ErrInsufficientRole},
		{name: "invalid email", actor: identity("u-owner", "owner@example.com"), email: "not-an-email", wantErr: domain.ErrInvalidInput},
		{name: "already a member", actor: identity("u-owner", "owner@example.com"), email: "MEMBER@example.com", wantErr: domain.ErrAlreadyMember},
		{
			name:  "active invitation exists",
			actor: identity("u-owner", "owner@example.com"),
			email: "newbie@example.com",
			seed: func(f *invitationFixture) {
				f.pending("inv-1", "AAAA2222", "Newbie@example.com", testNow.Add(time.Hour))
			},
			wantErr: domain.ErrDuplicatePending,
		},
		{
			name:  "previous invitation is terminal",
			actor: identity("u-owner", "owner@example.com"),
			email: "newbie@example.com",
			seed: func(f *invitationFixture) {
				inv := f.pending("inv-1", "AAAA2222", "newbie@example.com", testNow.Add(-time.Hour))
				inv.Status = domain.InvitationExpired
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvitationFixture(t)
			if tt.seed != nil {
				tt.seed(f)
			}
			inv, err := f.svc.CreateInvite(context.Background(), "c1", tt.email, tt.actor)
			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				require.Nil(t, inv)
				require.Empty(t, f.store.outboxActions())
				require.Empty(t, f.emails.kinds())
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, inv.ID)
			require.Equal(t, "newbie@example.com", inv.Email)
			require.Equal(t, domain.InvitationPending, inv.Status)
			require.Len(t, inv.InviteCode, inviteCodeLength)
			require.Equal(t, testNow.Add(domain.InvitationTTL), inv.ExpiresAt)
			require.Equal(t, []domain.AuditAction{domain.AuditMemberInvite}, f.store.outboxActions())
			require.Equal(t, 1, f.notifier.count)

			require.Len(t, f.emails.sent, 1)
			data := f.emails.sent[0].Data.(*domain.InvitationEmailData)
			require.Equal(t, "Tvrđava", data.ClubName)
			require.Equal(t, "https://app.test/invite/"+inv.InviteCode, data.InviteURL)
		})
	}
}

func TestInvitationService_CreateInvite_EmailFailureDoesNotFail(t *testing.T) {
	f := newInvitationFixture(t)
	f.emails.err = errBoom

	inv, err := f.svc.CreateInvite(context.Background(), "c1", "newbie@example.com", identity("u-owner", "owner@example.com"))
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, f.store.invitation(inv.ID).Status)
}

func TestInvitationService_Redeem(t *testing.T) {
	f := newInvitationFixture(t)
	f.store.addUser(&domain.User{ID: "u-new", Email: "newbie@example.com", EmailVerified: true})
	f.pending("inv-1", "ABCD2345", "newbie@example.com", testNow.Add(24*time.Hour))
	caller := identity("u-new", "Newbie@Example.com")

	res, err := f.svc.Redeem(context.Background(), "abcd2345", caller)
	require.NoError(t, err)
	require.Equal(t, domain.RedeemAccepted, res.Outcome)
	require.Equal(t, "c1", res.ClubID)
	require.NotNil(t, res.Membership)
	require.Equal(t, domain.RoleUser, res.Membership.Role)

	inv := f.store.invitation("inv-1")
	require.Equal(t, domain.InvitationAccepted, inv.Status)
	require.NotNil(t, inv.UserID)
	require.Equal(t, "u-new", *inv.UserID)
	require.NotNil(t, f.store.membershipOf("c1", "u-new"))
	require.Equal(t, []domain.AuditAction{domain.AuditInviteAccept}, f.store.outboxActions())
	require.Equal(t, []string{"invite_accepted"}, f.emails.kinds())
	require.Equal(t, "https://app.test/dashboard/c1/club", f.emails.sent[0].Data.(*domain.InviteAcceptedEmailData).ClubURL)

	_, err = f.svc.Redeem(context.Background(), "ABCD2345", caller)
	require.ErrorIs(t, err, domain.ErrInviteAlreadyUsed)
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestInvitationService_Redeem_Failures(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		caller    *domain.Identity
		expiresAt time.Time
		status    domain.InvitationStatus
		wantErr   error
		// wantStatus is the committed status after the call.
		wantStatus domain.InvitationStatus
		wantAudit  []domain.AuditAction
	}{
		{
			name:       "unknown code",
			code:       "ZZZZ9999",
			caller:     identity("u-new", "newbie@example.com"),
			expiresAt:  testNow.Add(time.Hour),
			status:     domain.InvitationPending,
			wantErr:    domain.ErrInvitationNotFound,
			wantStatus: domain.InvitationPending,
		},
		{
			name:       "expired by time",
			code:       "ABCD2345",
			caller:     identity("u-new", "newbie@example.com"),
			expiresAt:  testNow.Add(-time.Second),
			status:     domain.InvitationPending,
			wantErr:    domain.ErrInviteExpired,
			wantStatus: domain.InvitationExpired,
			wantAudit:  []domain.AuditAction{domain.AuditInviteExpire},
		},
		{
			name:       "expires exactly now",
			code:       "ABCD2345",
			caller:     nil,
			expiresAt:  testNow,
			status:     domain.InvitationPending,
			wantErr:    domain.ErrInviteExpired,
			wantStatus: domain.InvitationExpired,
			wantAudit:  []domain.AuditAction{domain.AuditInviteExpire},
		},
		{
			name:       "already expired status",
			code:       "ABCD2345",
			caller:     identity("u-new", "newbie@example.com"),
			expiresAt:  testNow.Add(time.Hour),
			status:     domain.InvitationExpired,
			wantErr:    domain.ErrInviteExpired,
			wantStatus: domain.InvitationExpired,
		},
		{
			name:       "rejected",
			code:       "ABCD2345",
			caller:     identity("u-new", "newbie@example.com"),
			expiresAt:  testNow.Add(-time.Hour),
			status:     domain.InvitationRejected,
			wantErr:    domain.ErrInviteAlreadyUsed,
			wantStatus: domain.InvitationRejected,
		},
		{
			name:       "requested cannot be redeemed by code",
			code:       "ABCD2345",
			caller:     identity("u-new", "newbie@example.com"),
			expiresAt:  testNow.Add(time.Hour),
			status:     domain.InvitationRequested,
			wantErr:    domain.ErrInviteAlreadyUsed,
			wantStatus: domain.InvitationRequested,
		},
		{
			name:       "signed in with another account",
			code:       "ABCD2345",
			caller:     identity("u-member", "member@example.com"),
			expiresAt:  testNow.Add(time.Hour),
			status:     domain.InvitationPending,
			wantErr:    domain.ErrAccountMismatch,
			wantStatus: domain.InvitationPending,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvitationFixture(t)
			inv := f.pending("inv-1", "ABCD2345", "newbie@example.com", tt.expiresAt)
			inv.Status = tt.status

			res, err := f.svc.Redeem(context.Background(), tt.code, tt.caller)
			require.Nil(t, res)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, tt.wantStatus, f.store.invitation("inv-1").Status)
			require.Equal(t, tt.wantAudit, nilIfEmpty(f.store.outboxActions()))
			require.Nil(t, f.store.membershipOf("c1", "u-new"))
		})
	}
}

func nilIfEmpty(actions []domain.AuditAction) []domain.AuditAction {
	if len(actions) == 0 {
		return nil
	}
	return actions
}

func TestInvitationService_Redeem_Anonymous(t *testing.T) {
	tests := []struct {
		name        string
		seedUser    bool
		wantOutcome domain.RedeemOutcome
	}{
		{name: "account exists", seedUser: true, wantOutcome: domain.RedeemNeedsLogin},
		{name: "no account", seedUser: false, wantOutcome: domain.RedeemNeedsRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvitationFixture(t)
			if tt.seedUser {
				f.store.addUser(&domain.User{ID: "u-new", Email: "NEWBIE@example.com"})
			}
			f.pending("inv-1", "ABCD2345", "newbie@example.com", testNow.Add(time.Hour))

			res, err := f.svc.Redeem(context.Background(), "ABCD2345", nil)
			require.NoError(t, err)
			require.Equal(t, tt.wantOutcome, res.Outcome)
			require.Equal(t, "newbie@example.com", res.Email)
			require.Nil(t, res.Membership)
			require.Equal(t, domain.InvitationPending, f.store.invitation("inv-1").Status)
			require.Empty(t, f.store.outboxActions())
			require.Zero(t, f.notifier.count)
		})
	}
}

func TestInvitationService_Redeem_RollsBackWhenAuditFails(t *testing.T) {
	f := newInvitationFixture(t)
	f.pending("inv-1", "ABCD2345", "newbie@example.com", testNow.Add(time.Hour))
	f.store.failOn["AuditOutbox.Enqueue"] = errBoom

	_, err := f.svc.Redeem(context.Background(), "ABCD2345", identity("u-new", "newbie@example.com"))
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, domain.InvitationPending, f.store.invitation("inv-1").Status)
	require.Nil(t, f.store.membershipOf("c1", "u-new"))
	require.Empty(t, f.emails.kinds())
}

func TestInvitationService_Redeem_Concurrent(t *testing.T) {
	f := newInvitationFixture(t)
	f.pending("inv-1", "ABCD2345", "newbie@example.com", testNow.Add(time.Hour))
	caller := identity("u-new", "newbie@example.com")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Redeem(context.Background(), "ABCD2345", caller)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInviteAlreadyUsed)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, []domain.AuditAction{domain.AuditInviteAccept}, f.store.outboxActions())
}

func TestInvitationService_Decline(t *testing.T) {
	f := newInvitationFixture(t)
	f.pending("inv-1", "ABCD2345", "newbie@example.com", testNow.Add(time.Hour))

	_, err := f.svc.Decline(context.Background(), "ABCD2345", identity("u-member", "member@example.com"))
	require.ErrorIs(t, err, domain.ErrAccountMismatch)

	inv, err := f.svc.Decline(context.Background(), "ABCD2345", identity("u-new", "newbie@example.com"))
	require.NoError(t, err)
	require.Equal(t, domain.InvitationRejected, inv.Status)
	require.Equal(t, domain.InvitationRejected, f.store.invitation("inv-1").Status)
	require.Equal(t, []domain.AuditAction{domain.AuditInviteReject}, f.store.outboxActions())

	_, err = f.svc.Redeem(context.Background(), "ABCD2345", identity("u-new", "newbie@example.com"))
	require.ErrorIs(t, err, domain.ErrInviteAlreadyUsed)

	_, err = f.svc.Decline(context.Background(), "ABCD2345", nil)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestInvitationService_RequestAccessAndDecide(t *testing.T) {
	f := newInvitationFixture(t)
	f.store.addUser(&domain.User{ID: "u-new", Email: "newbie@example.com", EmailVerified: true})
	requester := identity("u-new", "newbie@example.com")
	manager := identity("u-manager", "manager@example.com")

	req, err := f.svc.RequestAccess(context.Background(), "c1", requester)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationRequested, req.Status)
	require.NotNil(t, req.UserID)

	_, err = f.svc.RequestAccess(context.Background(), "c1", requester)
	require.ErrorIs(t, err, domain.ErrDuplicatePending)

	_, err = f.svc.CreateInvite(context.Background(), "c1", "newbie@example.com", manager)
	require.ErrorIs(t, err, domain.ErrDuplicatePending)

	_, err = f.svc.Decide(context.Background(), "c1", req.ID, domain.DecisionAccept, identity("u-member", "member@example.com"))
	require.ErrorIs(t, err, domain.ErrInsufficientRole)

	_, err = f.svc.Decide(context.Background(), "c2", req.ID, domain.DecisionAccept, manager)
	require.ErrorIs(t, err, domain.ErrInsufficientRole)

	_, err = f.svc.Decide(context.Background(), "c1", req.ID, "maybe", manager)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	inv, err := f.svc.Decide(context.Background(), "c1", req.ID, domain.DecisionAccept, manager)
	require.NoError(t, err)
	require.Equal(t, domain.InvitationAccepted, inv.Status)
	m := f.store.membershipOf("c1", "u-new")
	require.NotNil(t, m)
	require.Equal(t, domain.RoleUser, m.Role)
	require.Equal(t, []domain.AuditAction{domain.AuditMemberRequest, domain.AuditInviteAccept}, f.store.outboxActions())

	_, err = f.svc.Decide(context.Background(), "c1", req.ID, domain.DecisionReject, manager)
	require.ErrorIs(t, err, domain.ErrInviteAlreadyUsed)
}

func TestInvitationService_Decide(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.InvitationStatus
		expiresAt  time.Time
		decision   domain.InvitationDecision
		wantErr    error
		wantStatus domain.InvitationStatus
	}{
		{name: "reject request", status: domain.InvitationRequested, expiresAt: testNow.Add(time.Hour), decision: domain.DecisionReject, wantStatus: domain.InvitationRejected},
		{name: "pending invite is not decidable", status: domain.InvitationPending, expiresAt: testNow.Add(time.Hour), decision: domain.DecisionAccept, wantErr: domain.ErrIllegalTransition, wantStatus: domain.InvitationPending},
		{name: "expired request", status: domain.InvitationRequested, expiresAt: testNow.Add(-time.Minute), decision: domain.DecisionAccept, wantErr: domain.ErrInviteExpired, wantStatus: domain.InvitationExpired},
		{name: "already rejected", status: domain.InvitationRejected, expiresAt: testNow.Add(time.Hour), decision: domain.DecisionAccept, wantErr: domain.ErrInviteAlreadyUsed, wantStatus: domain.InvitationRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvitationFixture(t)
			f.store.addUser(&domain.User{ID: "u-new", Email: "newbie@example.com", EmailVerified: true})
			inv := f.pending("inv-1", "ABCD2345", "newbie@example.com", tt.expiresAt)
			inv.Status = tt.status
			userID := "u-new"
			inv.UserID = &userID

			_, err := f.svc.Decide(context.Background(), "c1", "inv-1", tt.decision, identity("u-owner", "owner@example.com"))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantStatus, f.store.invitation("inv-1").Status)
			require.Nil(t, f.store.membershipOf("c1", "u-new"))
		})
	}
}

func TestInvitationService_AcceptForVerifiedEmail(t *testing.T) {
	f := newInvitationFixture(t)
	// Invited before the account existed, then signed up and verified.
	f.pending("inv-1", "ABCD2345", "newbie@example.com", testNow.Add(time.Hour))
	f.store.addInvitation(&domain.Invitation{
		ID: "inv-2", InviteCode: "EFGH2345", Email: "newbie@example.com", ClubID: "c2",
		Status: domain.InvitationPending, ExpiresAt: testNow.Add(-time.Hour),
	})
	f.store.addUser(&domain.User{ID: "u-new", Email: "newbie@example.com", EmailVerified: true})

	n, err := f.svc.AcceptForVerifiedEmail(context.Background(), "u-new", "NEWBIE@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, domain.InvitationAccepted, f.store.invitation("inv-1").Status)
	require.Equal(t, domain.InvitationExpired, f.store.invitation("inv-2").Status)
	require.NotNil(t, f.store.membershipOf("c1", "u-new"))
	require.Nil(t, f.store.membershipOf("c2", "u-new"))
	require.ElementsMatch(t, []domain.AuditAction{domain.AuditInviteAccept, domain.AuditInviteExpire}, f.store.outboxActions())
	require.Equal(t, []string{"invite_accepted"}, f.emails.kinds())

	n, err = f.svc.AcceptForVerifiedEmail(context.Background(), "u-new", "newbie@example.com")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestInvitationService_AcceptForVerifiedEmail_AlreadyMember(t *testing.T) {
	f := newInvitationFixture(t)
	f.pending("inv-1", "ABCD2345", "member@example.com", testNow.Add(time.Hour))

	n, err := f.svc.AcceptForVerifiedEmail(context.Background(), "u-member", "member@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, domain.InvitationAccepted, f.store.invitation("inv-1").Status)
	require.Equal(t, "m-member", f.store.membershipOf("c1", "u-member").ID)
}

func TestInvitationService_AcceptForVerifiedEmail_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		email   string
		wantErr error
	}{
		{name: "missing user id", userID: "", email: "newbie@example.com", wantErr: domain.ErrInvalidInput},
		{name: "unknown user", userID: "u-nobody", email: "newbie@example.com", wantErr: domain.ErrUserNotFound},
		{name: "email of another account", userID: "u-new", email: "other@example.com", wantErr: domain.ErrAccountMismatch},
		{name: "email not verified", userID: "u-unverified", email: "late@example.com", wantErr: domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvitationFixture(t)
			f.store.addUser(&domain.User{ID: "u-new", Email: "newbie@example.com", EmailVerified: true})
			f.store.addUser(&domain.User{ID: "u-unverified", Email: "late@example.com"})
			f.pending("inv-1", "ABCD2345", "late@example.com", testNow.Add(time.Hour))

			_, err := f.svc.AcceptForVerifiedEmail(context.Background(), tt.userID, tt.email)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, domain.InvitationPending, f.store.invitation("inv-1").Status)
		})
	}
}

func TestInvitationService_ListClubInvitations(t *testing.T) {
	f := newInvitationFixture(t)
	f.pending("inv-1", "AAAA2222", "a@example.com", testNow.Add(time.Hour))
	f.pending("inv-2", "BBBB2222", "b@example.com", testNow.Add(time.Hour))
	f.pending("inv-3", "CCCC2222", "c@example.com", testNow.Add(time.Hour)).Status = domain.InvitationAccepted

	list, total, err := f.svc.ListClubInvitations(context.Background(), "c1", domain.InvitationPending, identity("u-manager", "manager@example.com"), domain.PaginationParams{Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, list, 1)

	_, _, err = f.svc.ListClubInvitations(context.Background(), "c1", "", identity("u-member", "member@example.com"), domain.PaginationParams{Page: 1, PageSize: 20})
	require.ErrorIs(t, err, domain.ErrInsufficientRole)
}
