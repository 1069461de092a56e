// Package smtp provides an SMTP-based implementation of the NotificationService interface
// for sending email notifications.
package smtp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/smtp"
	"net/textproto"

	"github.com/lysco/checkout-backend/notifications"
)

var disableTrackingFilter = []byte(`{"filters":{"clicktrack":{"settings":{"enable":0,"enable_text":false}}}}`)

// Config represents the configuration for the SMTP email service. It
// contains the sender's name, address, SMTP username, password, server and
// port. The TestAPIPort is used to define the port of the API service used
// for testing the email service locally to check messages (for example using
// MailHog).
type Config struct {
	FromName     string
	FromAddress  string
	SMTPUsername string
	SMTPPassword string
	SMTPServer   string
	SMTPPort     int
	TestAPIPort  int
}

// Email is the implementation of the NotificationService interface for the
// SMTP email service. It contains the configuration and the SMTP auth. It uses
// the net/smtp package to send emails.
type Email struct {
	config *Config
	auth   smtp.Auth
}

var _ notifications.NotificationService = (*Email)(nil)

// New initializes the SMTP email service with the configuration. It sets the
// SMTP auth if the username and password are provided. It returns an error if
// the configuration is invalid or if the from email could not be parsed.
func New(config *Config) (*Email, error) {
	if config == nil {
		return nil, fmt.Errorf("invalid SMTP configuration")
	}
	if config.SMTPServer == "" {
		return nil, fmt.Errorf("SMTP server is not defined")
	}
	// parse from email
	if _, err := mail.ParseAddress(config.FromAddress); err != nil {
		return nil, fmt.Errorf("could not parse from email: %v", err)
	}
	se := &Email{config: config}
	// init SMTP auth
	if config.SMTPUsername != "" && config.SMTPPassword != "" {
		se.auth = smtp.PlainAuth("", config.SMTPUsername, config.SMTPPassword, config.SMTPServer)
	}
	return se, nil
}

// SendNotification sends an email notification to the recipient and to the
// CC address if any. It composes the email body with the notification data
// and sends it using the SMTP server.
func (se *Email) SendNotification(ctx context.Context, notification *notifications.Notification) error {
	if err := notification.Validate(); err != nil {
		return err
	}
	// compose email body
	body, err := se.composeBody(notification)
	if err != nil {
		return fmt.Errorf("could not compose email body: %v", err)
	}
	recipients := []string{mustAddress(notification.ToAddress)}
	if notification.CCAddress != "" {
		recipients = append(recipients, mustAddress(notification.CCAddress))
	}
	server := fmt.Sprintf("%s:%d", se.config.SMTPServer, se.config.SMTPPort)
	// create a channel to handle errors
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(server, se.auth, se.config.FromAddress, recipients, body)
		close(errCh)
	}()
	// wait for the message to be sent or the context to be done
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// composeBody creates the email with the notification data. The text and
// HTML versions go in a multipart/alternative part; when the notification
// has attachments the whole message is a multipart/mixed wrapping that part
// and one base64 part per attachment.
func (se *Email) composeBody(notification *notifications.Notification) ([]byte, error) {
	// parse 'to' email
	to, err := mail.ParseAddress(notification.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("could not parse to email: %v", err)
	}
	if notification.ToName != "" {
		to.Name = notification.ToName
	}
	var headers bytes.Buffer
	fromAddr := mail.Address{Name: se.config.FromName, Address: se.config.FromAddress}
	headers.WriteString(fmt.Sprintf("From: %s\r\n", fromAddr.String()))
	headers.WriteString(fmt.Sprintf("To: %s\r\n", to.String()))
	if notification.ReplyTo != "" {
		replyToAddress, err := mail.ParseAddress(notification.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("could not parse reply-to email: %v", err)
		}
		headers.WriteString(fmt.Sprintf("Reply-To: %s\r\n", replyToAddress.String()))
	}
	if notification.CCAddress != "" {
		cc, err := mail.ParseAddress(notification.CCAddress)
		if err != nil {
			return nil, fmt.Errorf("could not parse cc email: %v", err)
		}
		headers.WriteString(fmt.Sprintf("Cc: %s\r\n", cc.String()))
	}
	headers.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", notification.Subject)))
	if !notification.EnableTracking {
		headers.WriteString(fmt.Sprintf("X-SMTPAPI: %s\r\n", disableTrackingFilter))
	}
	headers.WriteString("MIME-Version: 1.0\r\n")

	var alternative bytes.Buffer
	altWriter := multipart.NewWriter(&alternative)
	if err := writeTextPart(altWriter, "text/plain", notification.PlainBody); err != nil {
		return nil, fmt.Errorf("could not write plain text part: %v", err)
	}
	if err := writeTextPart(altWriter, "text/html", notification.Body); err != nil {
		return nil, fmt.Errorf("could not write HTML part: %v", err)
	}
	if err := altWriter.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %v", err)
	}

	var email bytes.Buffer
	if len(notification.Attachments) == 0 {
		headers.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", altWriter.Boundary()))
		headers.WriteString("\r\n") // blank line between headers and body
		email.Write(headers.Bytes())
		email.Write(alternative.Bytes())
		return email.Bytes(), nil
	}

	var mixed bytes.Buffer
	mixedWriter := multipart.NewWriter(&mixed)
	altPart, err := mixedWriter.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=\"%s\"", altWriter.Boundary())},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create alternative part: %v", err)
	}
	if _, err := altPart.Write(alternative.Bytes()); err != nil {
		return nil, fmt.Errorf("could not write alternative part: %v", err)
	}
	for _, attachment := range notification.Attachments {
		if err := writeAttachment(mixedWriter, attachment); err != nil {
			return nil, fmt.Errorf("could not write attachment %s: %v", attachment.Filename, err)
		}
	}
	if err := mixedWriter.Close(); err != nil {
		return nil, fmt.Errorf("could not close writer: %v", err)
	}
	headers.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", mixedWriter.Boundary()))
	headers.WriteString("\r\n")
	email.Write(headers.Bytes())
	email.Write(mixed.Bytes())
	return email.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, contentType, content string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType + "; charset=\"UTF-8\""},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := io.WriteString(qp, content); err != nil {
		return err
	}
	return qp.Close()
}

func writeAttachment(w *multipart.Writer, attachment notifications.Attachment) error {
	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("%s; name=%q", contentType, attachment.Filename)},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.Filename)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(attachment.Data)
	// RFC 2045 limits encoded lines to 76 characters
	for len(encoded) > 76 {
		if _, err := io.WriteString(part, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = io.WriteString(part, encoded+"\r\n")
	return err
}

// mustAddress returns the bare address of an already validated address.
func mustAddress(raw string) string {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return raw
	}
	return addr.Address
}
