package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by every engine. Specific errors wrap one of the
// category sentinels below so callers can match either level with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Invitation errors.
var (
	ErrInvitationNotFound = fmt.Errorf("invitation %w", ErrNotFound)
	ErrDuplicatePending   = fmt.Errorf("%w: an active invitation already exists for this email", ErrConflict)
	ErrAlreadyMember      = fmt.Errorf("%w: already a member of this club", ErrConflict)
	ErrInviteExpired      = errors.New("invitation expired")
	ErrInviteAlreadyUsed  = fmt.Errorf("%w: invitation already used", ErrConflict)
	ErrAccountMismatch    = fmt.Errorf("%w: signed in with a different account than the invitation email", ErrForbidden)
	ErrIllegalTransition  = fmt.Errorf("%w: illegal invitation status transition", ErrConflict)
	ErrCodeTaken          = errors.New("invitation code already taken")
)

// Membership errors.
var (
	ErrMembershipNotFound = fmt.Errorf("membership %w", ErrNotFound)
	ErrClubNotFound       = fmt.Errorf("club %w", ErrNotFound)
	ErrOwnerProtected     = fmt.Errorf("%w: the club owner cannot be removed, demoted or leave", ErrForbidden)
	ErrInsufficientRole   = fmt.Errorf("%w: insufficient club role", ErrForbidden)
)

// Registration errors.
var (
	ErrEventNotFound          = fmt.Errorf("event %w", ErrNotFound)
	ErrRegistrationNotFound   = fmt.Errorf("registration %w", ErrNotFound)
	ErrPrivateEventForbidden  = fmt.Errorf("%w: event is private to club members", ErrForbidden)
	ErrRulesNotAccepted       = fmt.Errorf("%w: event rules must be accepted", ErrInvalidInput)
	ErrWindowNotOpenYet       = errors.New("registrations are not open yet")
	ErrRegistrationClosed     = errors.New("registrations are closed")
	ErrAttendanceWindowClosed = errors.New("attendance can only be recorded between registration close and event end")
)

// ErrUserNotFound is returned when no platform account matches.
var ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

// WindowError reports a time window violation together with the boundary that
// was crossed, so the caller can explain when the action is (or was) allowed.
type WindowError struct {
	Err      error
	Boundary time.Time
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s (boundary %s)", e.Err.Error(), e.Boundary.UTC().Format(time.RFC3339))
}

func (e *WindowError) Unwrap() error { return e.Err }

// NewWindowError wraps err with the boundary instant.
func NewWindowError(err error, boundary time.Time) error {
	return &WindowError{Err: err, Boundary: boundary}
}

// ErrorKind is the caller-facing class of an error.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindWindowViolation
	KindAuthorization
	KindValidation
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindWindowViolation:
		return "window_violation"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// KindOf classifies err. Expired invitations are reported as window
// violations: the code existed but its validity window has passed.
func KindOf(err error) ErrorKind {
	var we *WindowError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &we),
		errors.Is(err, ErrInviteExpired),
		errors.Is(err, ErrWindowNotOpenYet),
		errors.Is(err, ErrRegistrationClosed),
		errors.Is(err, ErrAttendanceWindowClosed):
		return KindWindowViolation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthenticated
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	default:
		return KindInternal
	}
}
