package smtp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

const (
	searchInboxTestEndpoint = "http://%s:%d/api/v2/search?kind=to&query=%s"
	clearInboxTestEndpoint  = "http://%s:%d/api/v1/messages"
)

// ReceivedEmail is an email as stored by the test API service.
type ReceivedEmail struct {
	Subject string
	Headers map[string][]string
	// Body is the raw MIME body, parts included.
	Body string
}

// FindEmail searches the test API service for the last email sent to the
// recipient. If the email is found, it is returned and the inbox is cleared.
// If the email is not found, it returns an EOF error. This method is used
// for testing the email service with MailHog.
func (sm *Email) FindEmail(ctx context.Context, to string) (*ReceivedEmail, error) {
	searchEndpoint := fmt.Sprintf(searchInboxTestEndpoint, sm.config.SMTPServer,
		sm.config.TestAPIPort, url.QueryEscape(to))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	//revive:disable:nested-structs
	type mailResponse struct {
		Items []struct {
			Content struct {
				Headers map[string][]string `json:"Headers"`
				Body    string              `json:"Body"`
			} `json:"Content"`
		} `json:"items"`
	}
	mailResults := mailResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&mailResults); err != nil {
		return nil, fmt.Errorf("could not decode response: %v", err)
	}
	if len(mailResults.Items) == 0 {
		return nil, io.EOF
	}
	content := mailResults.Items[0].Content
	received := &ReceivedEmail{Headers: content.Headers, Body: content.Body}
	if subjects := content.Headers["Subject"]; len(subjects) > 0 {
		dec := new(mime.WordDecoder)
		if received.Subject, err = dec.DecodeHeader(subjects[0]); err != nil {
			received.Subject = subjects[0]
		}
	}
	return received, sm.ClearInbox(ctx)
}

// ClearInbox deletes every message stored by the test API service.
func (sm *Email) ClearInbox(ctx context.Context) error {
	clearEndpoint := fmt.Sprintf(clearInboxTestEndpoint, sm.config.SMTPServer, sm.config.TestAPIPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, clearEndpoint, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
