package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"reconned/internal/domain"
)

// memState is the in-memory database behind memStore.
type memState struct {
	users         map[string]*domain.User
	clubs         map[string]*domain.Club
	events        map[string]*domain.Event
	invitations   map[string]*domain.Invitation
	memberships   map[string]*domain.ClubMembership
	registrations map[string]*domain.EventRegistration
	invitedUsers  map[string][]string
	invitees      map[string][]*domain.EventInviteNotOnApp
	outbox        map[string]*domain.AuditOutboxEvent
	auditLogs     map[string]*domain.AuditLog
	seq           int
}

func newMemState() *memState {
	return &memState{
		users:         map[string]*domain.User{},
		clubs:         map[string]*domain.Club{},
		events:        map[string]*domain.Event{},
		invitations:   map[string]*domain.Invitation{},
		memberships:   map[string]*domain.ClubMembership{},
		registrations: map[string]*domain.EventRegistration{},
		invitedUsers:  map[string][]string{},
		invitees:      map[string][]*domain.EventInviteNotOnApp{},
		outbox:        map[string]*domain.AuditOutboxEvent{},
		auditLogs:     map[string]*domain.AuditLog{},
	}
}

func cloneMap[V any](m map[string]*V) map[string]*V {
	out := make(map[string]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *memState) clone() *memState {
	c := &memState{
		users:         cloneMap(s.users),
		clubs:         cloneMap(s.clubs),
		events:        cloneMap(s.events),
		invitations:   cloneMap(s.invitations),
		memberships:   cloneMap(s.memberships),
		registrations: cloneMap(s.registrations),
		invitedUsers:  make(map[string][]string, len(s.invitedUsers)),
		invitees:      make(map[string][]*domain.EventInviteNotOnApp, len(s.invitees)),
		outbox:        cloneMap(s.outbox),
		auditLogs:     cloneMap(s.auditLogs),
		seq:           s.seq,
	}
	for k, v := range s.invitedUsers {
		c.invitedUsers[k] = append([]string(nil), v...)
	}
	for k, v := range s.invitees {
		list := make([]*domain.EventInviteNotOnApp, len(v))
		for i, inv := range v {
			cp := *inv
			list[i] = &cp
		}
		c.invitees[k] = list
	}
	return c
}

func (s *memState) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// memStore is a transactional fake of domain.Store. WithinTx serializes
// transactions and restores a snapshot when fn fails.
type memStore struct {
	mu     sync.Mutex
	state  *memState
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), failOn: map[string]error{}}
}

func (m *memStore) Repos() domain.Repositories {
	return m.repos(func() func() {
		m.mu.Lock()
		return m.mu.Unlock
	})
}

func (m *memStore) WithinTx(ctx context.Context, fn func(r domain.Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(m.repos(func() func() { return func() {} })); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memStore) repos(lock func() func()) domain.Repositories {
	base := memRepo{store: m, lock: lock}
	return domain.Repositories{
		Users:         &memUsers{base},
		Clubs:         &memClubs{base},
		Events:        &memEvents{base},
		Invitations:   &memInvitations{base},
		Memberships:   &memMemberships{base},
		Registrations: &memRegistrations{base},
		AuditOutbox:   &memOutbox{base},
		AuditLogs:     &memAuditLogs{base},
		Cleanup:       &memCleanup{base},
	}
}

// with runs fn under the store lock unless a transaction already holds it.
func (r memRepo) with(op string, fn func(s *memState) error) error {
	unlock := r.lock()
	defer unlock()
	if err, ok := r.store.failOn[op]; ok {
		return err
	}
	return fn(r.store.state)
}

type memRepo struct {
	store *memStore
	lock  func() func()
}

// seeding helpers, used outside transactions

func (m *memStore) addUser(u *domain.User) *domain.User {
	m.state.users[u.ID] = u
	return u
}

func (m *memStore) addClub(id, name string) *domain.Club {
	c := &domain.Club{ID: id, Name: name}
	m.state.clubs[id] = c
	return c
}

func (m *memStore) addMember(id, clubID, userID string, role domain.Role) *domain.ClubMembership {
	mem := &domain.ClubMembership{ID: id, ClubID: clubID, UserID: userID, Role: role}
	m.state.memberships[id] = mem
	return mem
}

func (m *memStore) addEvent(ev *domain.Event) *domain.Event {
	m.state.events[ev.ID] = ev
	return ev
}

func (m *memStore) addInvitation(inv *domain.Invitation) *domain.Invitation {
	m.state.invitations[inv.ID] = inv
	return inv
}

func (m *memStore) invitation(id string) *domain.Invitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.invitations[id]
}

func (m *memStore) membershipOf(clubID, userID string) *domain.ClubMembership {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.state.memberships {
		if mem.ClubID == clubID && mem.UserID == userID {
			return mem
		}
	}
	return nil
}

func (m *memStore) outboxActions() []domain.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]*domain.AuditOutboxEvent, 0, len(m.state.outbox))
	for _, ev := range m.state.outbox {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) || (events[i].CreatedAt.Equal(events[j].CreatedAt) && events[i].ID < events[j].ID) })
	actions := make([]domain.AuditAction, len(events))
	for i, ev := range events {
		actions[i] = ev.Action
	}
	return actions
}

type memUsers struct{ memRepo }

func (r *memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.with("Users.GetByID", func(s *memState) error {
		u, ok := s.users[id]
		if !ok {
			return domain.ErrUserNotFound
		}
		c := *u
		out = &c
		return nil
	})
	return out, err
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.with("Users.GetByEmail", func(s *memState) error {
		for _, u := range s.users {
			if domain.SameEmail(u.Email, email) {
				c := *u
				out = &c
				return nil
			}
		}
		return domain.ErrUserNotFound
	})
	return out, err
}

type memClubs struct{ memRepo }

func (r *memClubs) GetByID(ctx context.Context, id string) (*domain.Club, error) {
	var out *domain.Club
	err := r.with("Clubs.GetByID", func(s *memState) error {
		c, ok := s.clubs[id]
		if !ok {
			return domain.ErrClubNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

type memEvents struct{ memRepo }

func (r *memEvents) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var out *domain.Event
	err := r.with("Events.GetByID", func(s *memState) error {
		ev, ok := s.events[id]
		if !ok {
			return domain.ErrEventNotFound
		}
		cp := *ev
		out = &cp
		return nil
	})
	return out, err
}

type memInvitations struct{ memRepo }

func (r *memInvitations) Create(ctx context.Context, inv *domain.Invitation) error {
	return r.with("Invitations.Create", func(s *memState) error {
		for _, existing := range s.invitations {
			if existing.InviteCode == inv.InviteCode {
				return domain.ErrCodeTaken
			}
			if existing.ClubID == inv.ClubID && domain.SameEmail(existing.Email, inv.Email) &&
				existing.Status.IsActive() && inv.Status.IsActive() {
				return domain.ErrDuplicatePending
			}
		}
		inv.ID = s.nextID("inv")
		cp := *inv
		s.invitations[inv.ID] = &cp
		return nil
	})
}

func (r *memInvitations) get(op string, match func(*domain.Invitation) bool) (*domain.Invitation, error) {
	var out *domain.Invitation
	err := r.with(op, func(s *memState) error {
		for _, inv := range s.invitations {
			if match(inv) {
				cp := *inv
				out = &cp
				return nil
			}
		}
		return domain.ErrInvitationNotFound
	})
	return out, err
}

func (r *memInvitations) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	return r.get("Invitations.GetByID", func(i *domain.Invitation) bool { return i.ID == id })
}

func (r *memInvitations) GetByCodeForUpdate(ctx context.Context, code string) (*domain.Invitation, error) {
	return r.get("Invitations.GetByCodeForUpdate", func(i *domain.Invitation) bool { return i.InviteCode == code })
}

func (r *memInvitations) GetByIDForUpdate(ctx context.Context, id string) (*domain.Invitation, error) {
	return r.get("Invitations.GetByIDForUpdate", func(i *domain.Invitation) bool { return i.ID == id })
}

func (r *memInvitations) FindActive(ctx context.Context, clubID, email string) (*domain.Invitation, error) {
	return r.get("Invitations.FindActive", func(i *domain.Invitation) bool {
		return i.ClubID == clubID && domain.SameEmail(i.Email, email) && i.Status.IsActive()
	})
}

func (r *memInvitations) ListPendingByEmailForUpdate(ctx context.Context, email string) ([]*domain.Invitation, error) {
	var out []*domain.Invitation
	err := r.with("Invitations.ListPendingByEmailForUpdate", func(s *memState) error {
		for _, inv := range s.invitations {
			if domain.SameEmail(inv.Email, email) && inv.Status == domain.InvitationPending {
				cp := *inv
				out = append(out, &cp)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *memInvitations) ListByClubID(ctx context.Context, clubID string, status domain.InvitationStatus, params domain.PaginationParams) ([]*domain.Invitation, int, error) {
	var out []*domain.Invitation
	err := r.with("Invitations.ListByClubID", func(s *memState) error {
		for _, inv := range s.invitations {
			if inv.ClubID == clubID && (status == "" || inv.Status == status) {
				cp := *inv
				out = append(out, &cp)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return paginate(out, params), len(out), nil
}

func (r *memInvitations) UpdateStatus(ctx context.Context, inv *domain.Invitation) error {
	return r.with("Invitations.UpdateStatus", func(s *memState) error {
		existing, ok := s.invitations[inv.ID]
		if !ok {
			return domain.ErrInvitationNotFound
		}
		existing.Status = inv.Status
		existing.UserID = inv.UserID
		existing.UpdatedAt = inv.UpdatedAt
		return nil
	})
}

type memMemberships struct{ memRepo }

func (r *memMemberships) Create(ctx context.Context, m *domain.ClubMembership) error {
	return r.with("Memberships.Create", func(s *memState) error {
		for _, existing := range s.memberships {
			if existing.ClubID == m.ClubID && existing.UserID == m.UserID {
				return domain.ErrAlreadyMember
			}
			if existing.ClubID == m.ClubID && existing.Role == domain.RoleClubOwner && m.Role == domain.RoleClubOwner {
				return domain.ErrConflict
			}
		}
		m.ID = s.nextID("mem")
		cp := *m
		s.memberships[m.ID] = &cp
		return nil
	})
}

func (r *memMemberships) GetByID(ctx context.Context, id string) (*domain.ClubMembership, error) {
	var out *domain.ClubMembership
	err := r.with("Memberships.GetByID", func(s *memState) error {
		m, ok := s.memberships[id]
		if !ok {
			return domain.ErrMembershipNotFound
		}
		cp := *m
		out = &cp
		return nil
	})
	return out, err
}

func (r *memMemberships) GetByClubAndUser(ctx context.Context, clubID, userID string) (*domain.ClubMembership, error) {
	var out *domain.ClubMembership
	err := r.with("Memberships.GetByClubAndUser", func(s *memState) error {
		for _, m := range s.memberships {
			if m.ClubID == clubID && m.UserID == userID {
				cp := *m
				out = &cp
				return nil
			}
		}
		return domain.ErrMembershipNotFound
	})
	return out, err
}

func (r *memMemberships) ExistsByClubAndEmail(ctx context.Context, clubID, email string) (bool, error) {
	found := false
	err := r.with("Memberships.ExistsByClubAndEmail", func(s *memState) error {
		for _, m := range s.memberships {
			if u, ok := s.users[m.UserID]; ok && m.ClubID == clubID && domain.SameEmail(u.Email, email) {
				found = true
			}
		}
		return nil
	})
	return found, err
}

func (r *memMemberships) ListByClubID(ctx context.Context, clubID string, params domain.PaginationParams) ([]*domain.ClubMember, int, error) {
	var out []*domain.ClubMember
	err := r.with("Memberships.ListByClubID", func(s *memState) error {
		for _, m := range s.memberships {
			if m.ClubID == clubID {
				out = append(out, s.member(m))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].MembershipID < out[j].MembershipID })
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return paginate(out, params), len(out), nil
}

func (s *memState) member(m *domain.ClubMembership) *domain.ClubMember {
	cm := &domain.ClubMember{MembershipID: m.ID, ClubID: m.ClubID, UserID: m.UserID, Role: m.Role, CreatedAt: m.CreatedAt, EndDate: m.EndDate}
	if u, ok := s.users[m.UserID]; ok {
		cm.Name = u.Name
		cm.Email = u.Email
	}
	return cm
}

func (r *memMemberships) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.with("Memberships.UpdateRole", func(s *memState) error {
		m, ok := s.memberships[id]
		if !ok {
			return domain.ErrMembershipNotFound
		}
		m.Role = role
		return nil
	})
}

func (r *memMemberships) Delete(ctx context.Context, id string) error {
	return r.with("Memberships.Delete", func(s *memState) error {
		if _, ok := s.memberships[id]; !ok {
			return domain.ErrMembershipNotFound
		}
		delete(s.memberships, id)
		return nil
	})
}

func (r *memMemberships) ListEndingBetween(ctx context.Context, from, to time.Time) ([]*domain.ClubMember, error) {
	var out []*domain.ClubMember
	err := r.with("Memberships.ListEndingBetween", func(s *memState) error {
		for _, m := range s.memberships {
			if m.EndDate != nil && m.ReminderSentAt == nil && !m.EndDate.Before(from) && m.EndDate.Before(to) {
				out = append(out, s.member(m))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].MembershipID < out[j].MembershipID })
		return nil
	})
	return out, err
}

func (r *memMemberships) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	return r.with("Memberships.MarkReminderSent", func(s *memState) error {
		m, ok := s.memberships[id]
		if !ok {
			return domain.ErrMembershipNotFound
		}
		m.ReminderSentAt = &at
		return nil
	})
}

type memRegistrations struct{ memRepo }

func (r *memRegistrations) Upsert(ctx context.Context, reg *domain.EventRegistration) (bool, error) {
	created := false
	err := r.with("Registrations.Upsert", func(s *memState) error {
		for _, existing := range s.registrations {
			if existing.EventID == reg.EventID && existing.CreatedByID == reg.CreatedByID {
				existing.Type = reg.Type
				existing.PaymentMethod = reg.PaymentMethod
				existing.UpdatedAt = reg.UpdatedAt
				reg.ID = existing.ID
				reg.Attended = existing.Attended
				reg.CreatedAt = existing.CreatedAt
				return nil
			}
		}
		created = true
		reg.ID = s.nextID("reg")
		cp := *reg
		cp.InvitedUserIDs = nil
		cp.InvitedNotOnApp = nil
		s.registrations[reg.ID] = &cp
		return nil
	})
	return created, err
}

func (r *memRegistrations) GetByID(ctx context.Context, id string) (*domain.EventRegistration, error) {
	var out *domain.EventRegistration
	err := r.with("Registrations.GetByID", func(s *memState) error {
		reg, ok := s.registrations[id]
		if !ok {
			return domain.ErrRegistrationNotFound
		}
		cp := *reg
		out = &cp
		return nil
	})
	return out, err
}

func (r *memRegistrations) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.EventRegistration, error) {
	var out *domain.EventRegistration
	err := r.with("Registrations.GetByEventAndUser", func(s *memState) error {
		for _, reg := range s.registrations {
			if reg.EventID == eventID && reg.CreatedByID == userID {
				cp := *reg
				out = &cp
				return nil
			}
		}
		return domain.ErrRegistrationNotFound
	})
	return out, err
}

func (r *memRegistrations) Delete(ctx context.Context, id string) error {
	return r.with("Registrations.Delete", func(s *memState) error {
		if _, ok := s.registrations[id]; !ok {
			return domain.ErrRegistrationNotFound
		}
		delete(s.registrations, id)
		delete(s.invitedUsers, id)
		delete(s.invitees, id)
		return nil
	})
}

func (r *memRegistrations) SetAttended(ctx context.Context, id string, attended bool, updatedAt time.Time) error {
	return r.with("Registrations.SetAttended", func(s *memState) error {
		reg, ok := s.registrations[id]
		if !ok {
			return domain.ErrRegistrationNotFound
		}
		reg.Attended = attended
		reg.UpdatedAt = updatedAt
		return nil
	})
}

func (r *memRegistrations) ReplaceInvitedUsers(ctx context.Context, registrationID string, userIDs []string) error {
	return r.with("Registrations.ReplaceInvitedUsers", func(s *memState) error {
		s.invitedUsers[registrationID] = append([]string(nil), userIDs...)
		return nil
	})
}

func (r *memRegistrations) ListInvitedUserIDs(ctx context.Context, registrationID string) ([]string, error) {
	var out []string
	err := r.with("Registrations.ListInvitedUserIDs", func(s *memState) error {
		out = append([]string{}, s.invitedUsers[registrationID]...)
		return nil
	})
	return out, err
}

func (r *memRegistrations) ReplaceInviteesNotOnApp(ctx context.Context, registrationID string, invitees []*domain.EventInviteNotOnApp) error {
	return r.with("Registrations.ReplaceInviteesNotOnApp", func(s *memState) error {
		list := make([]*domain.EventInviteNotOnApp, 0, len(invitees))
		for _, inv := range invitees {
			inv.ID = s.nextID("ph")
			inv.EventRegistrationID = registrationID
			cp := *inv
			list = append(list, &cp)
		}
		s.invitees[registrationID] = list
		return nil
	})
}

func (r *memRegistrations) ListInviteesNotOnApp(ctx context.Context, registrationID string) ([]*domain.EventInviteNotOnApp, error) {
	var out []*domain.EventInviteNotOnApp
	err := r.with("Registrations.ListInviteesNotOnApp", func(s *memState) error {
		for _, inv := range s.invitees[registrationID] {
			cp := *inv
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

type memOutbox struct{ memRepo }

func (r *memOutbox) Enqueue(ctx context.Context, ev *domain.AuditOutboxEvent) error {
	return r.with("AuditOutbox.Enqueue", func(s *memState) error {
		s.seq++
		cp := *ev
		// Keep enqueue order observable even when the clock does not move.
		cp.CreatedAt = ev.CreatedAt.Add(time.Duration(s.seq) * time.Nanosecond)
		s.outbox[ev.ID] = &cp
		return nil
	})
}

func (r *memOutbox) Lease(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]*domain.AuditOutboxEvent, error) {
	var out []*domain.AuditOutboxEvent
	err := r.with("AuditOutbox.Lease", func(s *memState) error {
		var due []*domain.AuditOutboxEvent
		for _, ev := range s.outbox {
			pending := ev.Status == domain.OutboxPending && !ev.NextAttemptAt.After(now)
			lapsed := ev.Status == domain.OutboxLeased && ev.LeaseExpiresAt != nil && !ev.LeaseExpiresAt.After(now)
			if pending || lapsed {
				due = append(due, ev)
			}
		}
		sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
		if len(due) > limit {
			due = due[:limit]
		}
		until := now.Add(leaseTTL)
		for _, ev := range due {
			ev.Status = domain.OutboxLeased
			ev.LeaseOwner = consumer
			ev.LeaseExpiresAt = &until
			ev.AttemptCount++
			cp := *ev
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r *memOutbox) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.with("AuditOutbox.MarkProcessed", func(s *memState) error {
		s.outbox[id].Status = domain.OutboxProcessed
		s.outbox[id].LeaseExpiresAt = nil
		return nil
	})
}

func (r *memOutbox) MarkFailed(ctx context.Context, id, lastError string, nextAttemptAt time.Time, dead bool) error {
	return r.with("AuditOutbox.MarkFailed", func(s *memState) error {
		ev := s.outbox[id]
		ev.Status = domain.OutboxPending
		if dead {
			ev.Status = domain.OutboxDead
		}
		ev.LastError = lastError
		ev.NextAttemptAt = nextAttemptAt
		ev.LeaseExpiresAt = nil
		return nil
	})
}

type memAuditLogs struct{ memRepo }

func (r *memAuditLogs) Insert(ctx context.Context, log *domain.AuditLog) error {
	return r.with("AuditLogs.Insert", func(s *memState) error {
		if _, ok := s.auditLogs[log.OutboxID]; ok {
			return nil
		}
		cp := *log
		s.auditLogs[log.OutboxID] = &cp
		return nil
	})
}

type memCleanup struct{ memRepo }

func (r *memCleanup) DeleteUnverifiedUsers(ctx context.Context, cutoff time.Time) (int64, []string, error) {
	var n int64
	var keys []string
	err := r.with("Cleanup.DeleteUnverifiedUsers", func(s *memState) error {
		for id, u := range s.users {
			if !u.EmailVerified && u.CreatedAt.Before(cutoff) {
				n++
				if u.Image != nil {
					keys = append(keys, *u.Image)
				}
				delete(s.users, id)
			}
		}
		sort.Strings(keys)
		return nil
	})
	return n, keys, err
}

func (r *memCleanup) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.with("Cleanup.ExpireInvitations", func(s *memState) error {
		for _, inv := range s.invitations {
			if inv.Status.IsActive() && !inv.ExpiresAt.After(now) {
				inv.Status = domain.InvitationExpired
				inv.UpdatedAt = now
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memCleanup) DeleteExpiredInvitations(ctx context.Context, expiredBefore time.Time) (int64, error) {
	var n int64
	err := r.with("Cleanup.DeleteExpiredInvitations", func(s *memState) error {
		for id, inv := range s.invitations {
			if inv.Status == domain.InvitationExpired && inv.ExpiresAt.Before(expiredBefore) {
				delete(s.invitations, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memCleanup) DeleteExpiredEventInvites(ctx context.Context, expiredBefore time.Time) (int64, error) {
	var n int64
	err := r.with("Cleanup.DeleteExpiredEventInvites", func(s *memState) error {
		for regID, list := range s.invitees {
			kept := list[:0]
			for _, inv := range list {
				if inv.ExpiresAt.Before(expiredBefore) {
					n++
					continue
				}
				kept = append(kept, inv)
			}
			s.invitees[regID] = kept
		}
		return nil
	})
	return n, err
}

func (r *memCleanup) LiftUserBans(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.with("Cleanup.LiftUserBans", func(s *memState) error {
		for _, u := range s.users {
			if u.BanExpires != nil && u.BanExpires.Before(now) {
				u.Banned, u.BanReason, u.BanExpires = false, nil, nil
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memCleanup) LiftClubBans(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.with("Cleanup.LiftClubBans", func(s *memState) error {
		for _, c := range s.clubs {
			if c.BanExpires != nil && c.BanExpires.Before(now) {
				c.Banned, c.BanReason, c.BanExpires = false, nil, nil
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memCleanup) DeleteAuditLogs(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.with("Cleanup.DeleteAuditLogs", func(s *memState) error {
		for id, l := range s.auditLogs {
			if l.CreatedAt.Before(before) {
				delete(s.auditLogs, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func paginate[T any](items []T, params domain.PaginationParams) []T {
	if params.PageSize <= 0 {
		return items
	}
	start := params.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + params.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Collaborator fakes.

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

type sentEmail struct {
	Kind string
	To   string
	Data any
}

type mockEmailService struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *mockEmailService) record(kind, to string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{Kind: kind, To: to, Data: data})
	return nil
}

func (m *mockEmailService) SendClubInvitation(ctx context.Context, data *domain.InvitationEmailData) error {
	return m.record("club_invitation", data.Email, data)
}

func (m *mockEmailService) SendInviteAccepted(ctx context.Context, data *domain.InviteAcceptedEmailData) error {
	return m.record("invite_accepted", data.Email, data)
}

func (m *mockEmailService) SendEventInvitation(ctx context.Context, data *domain.EventInvitationEmailData) error {
	return m.record("event_invitation", data.Email, data)
}

func (m *mockEmailService) SendMembershipReminder(ctx context.Context, data *domain.MembershipReminderEmailData) error {
	return m.record("membership_reminder", data.Email, data)
}

func (m *mockEmailService) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, e := range m.sent {
		out[i] = e.Kind
	}
	return out
}

type mockStorage struct {
	deleted []string
	err     error
}

func (m *mockStorage) DeleteFile(ctx context.Context, key string) error {
	return m.DeleteFiles(ctx, []string{key})
}

func (m *mockStorage) DeleteFiles(ctx context.Context, keys []string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}

// fixedClock is a settable clock.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBoom = errors.New("boom")

func identity(userID, email string) *domain.Identity {
	return &domain.Identity{UserID: userID, Email: strings.ToLower(email), EmailVerified: true}
}
