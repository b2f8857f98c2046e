package integrations

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Email is one transactional message
type Email struct {
	Template  string
	ToName    string
	ToAddress string
	Subject   string
	HTML      string
	Text      string
}

// Mailer delivers transactional email
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SendGrid is the Mailer backed by the SendGrid v3 API
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGrid returns a SendGrid mailer sending as fromName <fromAddress>
func NewSendGrid(apiKey, fromName, fromAddress string) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// Send delivers e
func (s *SendGrid) Send(ctx context.Context, e Email) error {
	to := mail.NewEmail(e.ToName, e.ToAddress)
	message := mail.NewSingleEmail(s.from, e.Subject, to, e.Text, e.HTML)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", e.ToAddress, "template", e.Template)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", e.ToAddress)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	zap.S().Infow("email sent successfully", "to", e.ToAddress, "subject", e.Subject, "template", e.Template)
	return nil
}

// NopMailer logs and drops every message. It is used when no SendGrid key is set.
type NopMailer struct{}

// Send implements Mailer
func (NopMailer) Send(_ context.Context, e Email) error {
	zap.S().Debugw("email delivery disabled, dropping message", "to", e.ToAddress, "template", e.Template)
	return nil
}
