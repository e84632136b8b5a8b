package services

import (
	"context"
	"fmt"
	"log/slog"

	"explorewithme/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	log      *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, log *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, log: log}
}

// SendRequestDecision mails a requester the outcome of batch moderation,
// using the "request_confirmed" or "request_rejected" template.
func (s *emailService) SendRequestDecision(ctx context.Context, data *domain.RequestDecisionEmailData) error {
	if data == nil {
		return fmt.Errorf("request decision data is nil")
	}
	name := "request_rejected"
	if data.Confirmed {
		name = "request_confirmed"
	}
	subject, htmlBody, textBody, err := s.renderer.Render(name, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", name, err)
	}
	if err := s.mailer.Send(ctx, data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send decision email: %w", err)
	}
	s.log.InfoContext(ctx, "decision email sent", "to", data.Email, "confirmed", data.Confirmed)
	return nil
}
