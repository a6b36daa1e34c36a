package services

import (
	"context"
	"fmt"
	"log/slog"

	"reconned/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendClubInvitation sends the invitation code using the "club_invitation" template.
func (s *emailService) SendClubInvitation(ctx context.Context, data *domain.InvitationEmailData) error {
	if data == nil {
		return fmt.Errorf("club invitation data is nil")
	}
	return s.send(ctx, "club_invitation", data.Email, data)
}

// SendInviteAccepted sends the welcome-to-club email using the "invite_accepted" template.
func (s *emailService) SendInviteAccepted(ctx context.Context, data *domain.InviteAcceptedEmailData) error {
	if data == nil {
		return fmt.Errorf("invite accepted data is nil")
	}
	return s.send(ctx, "invite_accepted", data.Email, data)
}

// SendEventInvitation mails an off-platform co-participant their join link.
func (s *emailService) SendEventInvitation(ctx context.Context, data *domain.EventInvitationEmailData) error {
	if data == nil {
		return fmt.Errorf("event invitation data is nil")
	}
	return s.send(ctx, "event_invitation", data.Email, data)
}

func (s *emailService) SendMembershipReminder(ctx context.Context, data *domain.MembershipReminderEmailData) error {
	if data == nil {
		return fmt.Errorf("membership reminder data is nil")
	}
	return s.send(ctx, "membership_reminder", data.Email, data)
}

func (s *emailService) send(ctx context.Context, template, to string, data any) error {
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	if err := s.mailer.Send(ctx, to, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template)
	return nil
}
