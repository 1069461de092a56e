// Package sendgrid implements the NotificationService interface on top of
// the SendGrid v3 mail API.
package sendgrid

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/lysco/checkout-backend/notifications"
	sg "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const mailSendEndpoint = "/v3/mail/send"

// Config holds the sender identity and the API key. Host overrides the API
// host, it is empty in production.
type Config struct {
	FromName    string
	FromAddress string
	APIKey      string
	Host        string
}

// Email sends notifications through SendGrid.
type Email struct {
	config *Config
	client *sg.Client
}

var _ notifications.NotificationService = (*Email)(nil)

// New creates the SendGrid client.
func New(config *Config) (*Email, error) {
	if config == nil || config.APIKey == "" {
		return nil, fmt.Errorf("invalid SendGrid configuration")
	}
	if _, err := mail.ParseAddress(config.FromAddress); err != nil {
		return nil, fmt.Errorf("could not parse from email: %v", err)
	}
	client := sg.NewSendClient(config.APIKey)
	if config.Host != "" {
		request := sg.GetRequest(config.APIKey, mailSendEndpoint, config.Host)
		request.Method = http.MethodPost
		client = &sg.Client{Request: request}
	}
	return &Email{config: config, client: client}, nil
}

// SendNotification sends the notification to the recipient, with the CC
// address in the same personalization.
func (e *Email) SendNotification(ctx context.Context, notification *notifications.Notification) error {
	if err := notification.Validate(); err != nil {
		return err
	}
	message, err := e.buildMessage(notification)
	if err != nil {
		return err
	}
	resp, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected the message: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (e *Email) buildMessage(notification *notifications.Notification) (*sgmail.SGMailV3, error) {
	to, err := mail.ParseAddress(notification.ToAddress)
	if err != nil {
		return nil, err
	}
	if notification.ToName != "" {
		to.Name = notification.ToName
	}
	message := sgmail.NewV3Mail()
	message.SetFrom(sgmail.NewEmail(e.config.FromName, e.config.FromAddress))
	message.Subject = notification.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	if notification.CCAddress != "" {
		cc, err := mail.ParseAddress(notification.CCAddress)
		if err != nil {
			return nil, err
		}
		p.AddCCs(sgmail.NewEmail(cc.Name, cc.Address))
	}
	message.AddPersonalizations(p)

	if notification.ReplyTo != "" {
		replyTo, err := mail.ParseAddress(notification.ReplyTo)
		if err != nil {
			return nil, err
		}
		message.SetReplyTo(sgmail.NewEmail(replyTo.Name, replyTo.Address))
	}
	// text/plain must come before text/html
	if notification.PlainBody != "" {
		message.AddContent(sgmail.NewContent("text/plain", notification.PlainBody))
	}
	if notification.Body != "" {
		message.AddContent(sgmail.NewContent("text/html", notification.Body))
	}
	for _, attachment := range notification.Attachments {
		a := sgmail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(attachment.Data))
		a.SetType(attachment.ContentType)
		a.SetFilename(attachment.Filename)
		a.SetDisposition("attachment")
		message.AddAttachment(a)
	}
	if !notification.EnableTracking {
		disabled := false
		tracking := sgmail.NewTrackingSettings()
		tracking.SetClickTracking(&sgmail.ClickTrackingSetting{Enable: &disabled, EnableText: &disabled})
		message.SetTrackingSettings(tracking)
	}
	return message, nil
}
