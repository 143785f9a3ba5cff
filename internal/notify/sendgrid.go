package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const maxErrorBody = 4096

// Message is one outbound HTML email.
type Message struct {
	FromName    string
	FromAddress string
	To          string
	Subject     string
	HTML        string
}

// SendGridSender delivers messages through the SendGrid v3 mail API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender builds a sender for the given API key.
func NewSendGridSender(apiKey string) (*SendGridSender, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("sendgrid API key is required")
	}
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}, nil
}

// WithEndpoint points the sender at a different mail-send URL.
func (s *SendGridSender) WithEndpoint(url string) *SendGridSender {
	s.client.Request.BaseURL = url
	return s
}

// Send transmits msg and fails on transport errors and non-2xx responses.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}

	from := mail.NewEmail(msg.FromName, msg.FromAddress)
	to := mail.NewEmail("", msg.To)
	email := mail.NewSingleEmail(from, msg.Subject, to, plainText(msg.HTML), msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := resp.Body
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(body))
	}
	return nil
}
