// Package notifications defines the messages sent by the service and the
// interface of the services able to deliver them. The smtp and sendgrid
// packages implement it, the queue package delivers them in background.
package notifications

import (
	"context"
	"fmt"
	"net/mail"
)

// Attachment is a file sent along with a notification.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notification is an email ready to be delivered. Body holds the HTML
// version and PlainBody the text fallback.
type Notification struct {
	ToName         string
	ToAddress      string
	CCAddress      string
	ReplyTo        string
	Subject        string
	Body           string
	PlainBody      string
	Attachments    []Attachment
	EnableTracking bool
}

// Validate checks that the notification has a valid recipient and a
// subject. CC and Reply-To addresses are checked when present.
func (n *Notification) Validate() error {
	if n == nil {
		return fmt.Errorf("nil notification")
	}
	if _, err := mail.ParseAddress(n.ToAddress); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", n.ToAddress, err)
	}
	if n.CCAddress != "" {
		if _, err := mail.ParseAddress(n.CCAddress); err != nil {
			return fmt.Errorf("invalid cc %q: %w", n.CCAddress, err)
		}
	}
	if n.ReplyTo != "" {
		if _, err := mail.ParseAddress(n.ReplyTo); err != nil {
			return fmt.Errorf("invalid reply-to %q: %w", n.ReplyTo, err)
		}
	}
	if n.Subject == "" {
		return fmt.Errorf("empty subject")
	}
	return nil
}

// NotificationService delivers notifications.
type NotificationService interface {
	SendNotification(context.Context, *Notification) error
}
