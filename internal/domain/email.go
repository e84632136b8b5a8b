package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RequestDecisionEmailData holds data for the moderation-result email sent
// to a requester after batch moderation.
type RequestDecisionEmailData struct {
	Email      string
	EventTitle string
	Confirmed  bool
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendRequestDecision(ctx context.Context, data *RequestDecisionEmailData) error
}

// RequesterEmailLookup resolves a requester id to a notification address.
// Implemented by the surrounding user CRUD layer.
type RequesterEmailLookup interface {
	EmailByUserID(ctx context.Context, userID string) (string, error)
}
