package domain

import (
	"context"
	"time"
)

// Event is a club event that members register for.
// swagger:model Event
type Event struct {
	ID                     string    `json:"id"`
	ClubID                 string    `json:"club_id"`
	Name                   string    `json:"name"`
	IsPrivate              bool      `json:"is_private"`
	DateRegistrationsOpen  time.Time `json:"date_registrations_open"`
	DateRegistrationsClose time.Time `json:"date_registrations_close"`
	DateStart              time.Time `json:"date_start"`
	DateEnd                time.Time `json:"date_end"`
	CreatedAt              time.Time `json:"created_at"`
}

// EventRepository defines read access to events.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*Event, error)
}

// Window is the phase an event is in with respect to registrations.
type Window string

const (
	// WindowUpcoming: registrations have not opened yet.
	WindowUpcoming Window = "upcoming"
	// WindowRegistration: [open, close), registrations are mutable.
	WindowRegistration Window = "registration"
	// WindowAttendance: [close, end], registrations are frozen and attendance may be recorded.
	WindowAttendance Window = "attendance"
	// WindowEnded: after the event ended.
	WindowEnded Window = "ended"
)

// CurrentWindow is the single place registration and attendance boundaries
// are evaluated.
func CurrentWindow(ev *Event, now time.Time) Window {
	switch {
	case now.Before(ev.DateRegistrationsOpen):
		return WindowUpcoming
	case now.Before(ev.DateRegistrationsClose):
		return WindowRegistration
	case !now.After(ev.DateEnd):
		return WindowAttendance
	default:
		return WindowEnded
	}
}

// RegistrationWindowError returns nil when registrations may be created,
// updated or deleted at now, otherwise a *WindowError naming the boundary.
func RegistrationWindowError(ev *Event, now time.Time) error {
	switch CurrentWindow(ev, now) {
	case WindowRegistration:
		return nil
	case WindowUpcoming:
		return NewWindowError(ErrWindowNotOpenYet, ev.DateRegistrationsOpen)
	default:
		return NewWindowError(ErrRegistrationClosed, ev.DateRegistrationsClose)
	}
}

// AttendanceWindowError returns nil when attendance may be recorded at now.
func AttendanceWindowError(ev *Event, now time.Time) error {
	switch CurrentWindow(ev, now) {
	case WindowAttendance:
		return nil
	case WindowEnded:
		return NewWindowError(ErrAttendanceWindowClosed, ev.DateEnd)
	default:
		return NewWindowError(ErrAttendanceWindowClosed, ev.DateRegistrationsClose)
	}
}

// EventWindowStatus is the window of an event together with its boundaries.
// swagger:model EventWindowStatus
type EventWindowStatus struct {
	EventID  string    `json:"event_id"`
	Window   Window    `json:"window"`
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// NewEventWindowStatus evaluates ev at now.
func NewEventWindowStatus(ev *Event, now time.Time) *EventWindowStatus {
	return &EventWindowStatus{
		EventID:  ev.ID,
		Window:   CurrentWindow(ev, now),
		OpensAt:  ev.DateRegistrationsOpen,
		ClosesAt: ev.DateRegistrationsClose,
		EndsAt:   ev.DateEnd,
	}
}
