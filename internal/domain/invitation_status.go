package domain

import "fmt"

// InvitationStatus is the state of an Invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationRequested InvitationStatus = "REQUESTED"
	InvitationAccepted  InvitationStatus = "ACCEPTED"
	InvitationRejected  InvitationStatus = "REJECTED"
	InvitationExpired   InvitationStatus = "EXPIRED"
)

// InvitationAction is an event that moves an invitation between states.
type InvitationAction string

const (
	ActionAccept InvitationAction = "accept"
	ActionReject InvitationAction = "reject"
	ActionExpire InvitationAction = "expire"
)

// invitationTransitions is the complete transition table. States missing
// from the table (or actions missing from a state) are terminal.
var invitationTransitions = map[InvitationStatus]map[InvitationAction]InvitationStatus{
	InvitationPending: {
		ActionAccept: InvitationAccepted,
		ActionReject: InvitationRejected,
		ActionExpire: InvitationExpired,
	},
	InvitationRequested: {
		ActionAccept: InvitationAccepted,
		ActionReject: InvitationRejected,
		ActionExpire: InvitationExpired,
	},
	InvitationAccepted: {},
	InvitationRejected: {},
	InvitationExpired:  {},
}

// ParseInvitationStatus validates s.
func ParseInvitationStatus(s string) (InvitationStatus, error) {
	st := InvitationStatus(s)
	if _, ok := invitationTransitions[st]; !ok {
		return "", fmt.Errorf("%w: unknown invitation status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// Next returns the state reached from s by action.
func (s InvitationStatus) Next(action InvitationAction) (InvitationStatus, error) {
	edges, ok := invitationTransitions[s]
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, s)
	}
	next, ok := edges[action]
	if !ok {
		return "", fmt.Errorf("%w: %s cannot %s", ErrIllegalTransition, s, action)
	}
	return next, nil
}

// IsActive reports whether the invitation still awaits an answer.
func (s InvitationStatus) IsActive() bool {
	return s == InvitationPending || s == InvitationRequested
}

// IsTerminal reports whether no transition leaves s.
func (s InvitationStatus) IsTerminal() bool {
	return len(invitationTransitions[s]) == 0
}

// ActiveInvitationStatuses lists the statuses covered by the one-active-invite-per-email rule.
func ActiveInvitationStatuses() []InvitationStatus {
	return []InvitationStatus{InvitationPending, InvitationRequested}
}
