package domain

import "context"

// Mailer delivers one rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer turns a named template into subject and bodies.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// EmailService sends the club's notification mails. Callers treat every
// failure as best-effort.
type EmailService interface {
	SendClubInvitation(ctx context.Context, data *InvitationEmailData) error
	SendInviteAccepted(ctx context.Context, data *InviteAcceptedEmailData) error
	SendEventInvitation(ctx context.Context, data *EventInvitationEmailData) error
	SendMembershipReminder(ctx context.Context, data *MembershipReminderEmailData) error
}
