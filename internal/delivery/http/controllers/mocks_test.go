package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"reconned/internal/delivery/http/helpers"
	"reconned/internal/delivery/http/middleware"
	"reconned/internal/domain"
)

const (
	testClubID  = "6f1d2a3b-4c5d-4e6f-8a9b-0c1d2e3f4a5b"
	testEventID = "0a9b8c7d-6e5f-4a3b-9c1d-2e3f4a5b6c7d"
	testOtherID = "11111111-2222-4333-8444-555555555555"
)

var testCaller = &domain.Identity{UserID: "u-1", Email: "marko@example.com", EmailVerified: true}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newRequest builds a request with path values and, when identity is non-nil,
// an authenticated caller in the context.
func newRequest(method, target, body string, identity *domain.Identity, pathValues map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	if identity != nil {
		req = req.WithContext(middleware.SetIdentity(req.Context(), identity))
	}
	return req
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (json.RawMessage, *helpers.APIError) {
	t.Helper()
	var env struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data, env.Error
}

type mockInvitationService struct {
	invitation *domain.Invitation
	list       []*domain.Invitation
	total      int
	redeem     *domain.RedeemResult
	accepted   int
	err        error

	gotCaller   *domain.Identity
	gotEmail    string
	gotDecision domain.InvitationDecision
	gotStatus   domain.InvitationStatus
	gotParams   domain.PaginationParams
}

func (m *mockInvitationService) CreateInvite(ctx context.Context, clubID, email string, actor *domain.Identity) (*domain.Invitation, error) {
	m.gotEmail, m.gotCaller = email, actor
	return m.invitation, m.err
}

func (m *mockInvitationService) RequestAccess(ctx context.Context, clubID string, caller *domain.Identity) (*domain.Invitation, error) {
	m.gotCaller = caller
	return m.invitation, m.err
}

func (m *mockInvitationService) Redeem(ctx context.Context, code string, caller *domain.Identity) (*domain.RedeemResult, error) {
	m.gotCaller = caller
	return m.redeem, m.err
}

func (m *mockInvitationService) Decline(ctx context.Context, code string, caller *domain.Identity) (*domain.Invitation, error) {
	m.gotCaller = caller
	return m.invitation, m.err
}

func (m *mockInvitationService) Decide(ctx context.Context, clubID, invitationID string, decision domain.InvitationDecision, actor *domain.Identity) (*domain.Invitation, error) {
	m.gotDecision, m.gotCaller = decision, actor
	return m.invitation, m.err
}

func (m *mockInvitationService) AcceptForVerifiedEmail(ctx context.Context, userID, email string) (int, error) {
	m.gotEmail = email
	return m.accepted, m.err
}

func (m *mockInvitationService) ListClubInvitations(ctx context.Context, clubID string, status domain.InvitationStatus, actor *domain.Identity, params domain.PaginationParams) ([]*domain.Invitation, int, error) {
	m.gotStatus, m.gotParams, m.gotCaller = status, params, actor
	return m.list, m.total, m.err
}

type mockMembershipService struct {
	members    []*domain.ClubMember
	total      int
	membership *domain.ClubMembership
	err        error
	called     string
}

func (m *mockMembershipService) ListMembers(ctx context.Context, clubID string, actor *domain.Identity, params domain.PaginationParams) ([]*domain.ClubMember, int, error) {
	m.called = "list"
	return m.members, m.total, m.err
}

func (m *mockMembershipService) RemoveMember(ctx context.Context, clubID, membershipID string, actor *domain.Identity) error {
	m.called = "remove"
	return m.err
}

func (m *mockMembershipService) LeaveClub(ctx context.Context, clubID string, caller *domain.Identity) error {
	m.called = "leave"
	return m.err
}

func (m *mockMembershipService) Promote(ctx context.Context, clubID, membershipID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	m.called = "promote"
	return m.membership, m.err
}

func (m *mockMembershipService) Demote(ctx context.Context, clubID, membershipID string, actor *domain.Identity) (*domain.ClubMembership, error) {
	m.called = "demote"
	return m.membership, m.err
}

type mockRegistrationService struct {
	registration *domain.EventRegistration
	created      bool
	window       *domain.EventWindowStatus
	err          error

	gotInput    *domain.RegistrationInput
	gotAttended bool
}

func (m *mockRegistrationService) Submit(ctx context.Context, eventID string, caller *domain.Identity, in *domain.RegistrationInput) (*domain.EventRegistration, bool, error) {
	m.gotInput = in
	return m.registration, m.created, m.err
}

func (m *mockRegistrationService) GetMine(ctx context.Context, eventID string, caller *domain.Identity) (*domain.EventRegistration, error) {
	return m.registration, m.err
}

func (m *mockRegistrationService) Delete(ctx context.Context, eventID string, caller *domain.Identity) error {
	return m.err
}

func (m *mockRegistrationService) ToggleAttendance(ctx context.Context, registrationID string, attended bool, actor *domain.Identity) (*domain.EventRegistration, error) {
	m.gotAttended = attended
	return m.registration, m.err
}

func (m *mockRegistrationService) EventWindow(ctx context.Context, eventID string) (*domain.EventWindowStatus, error) {
	return m.window, m.err
}

type mockMaintenanceService struct {
	cleanup  *domain.CleanupReport
	reminder *domain.ReminderReport
	err      error
}

func (m *mockMaintenanceService) Cleanup(ctx context.Context) (*domain.CleanupReport, error) {
	return m.cleanup, m.err
}

func (m *mockMaintenanceService) SendMembershipReminders(ctx context.Context) (*domain.ReminderReport, error) {
	return m.reminder, m.err
}
