package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSink POSTs notifications as JSON to a URL, for desktop notifiers
// and chat integrations.
type WebhookSink struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// WebhookPayload is the body sent to the webhook.
type WebhookPayload struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NewWebhookSink creates a webhook sink with the given request timeout.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Show implements Sink. Any non-2xx response is an error.
func (s *WebhookSink) Show(ctx context.Context, id, title, message string) error {
	var body bytes.Buffer
	payload := WebhookPayload{ID: id, Title: title, Message: message, Time: s.now()}
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
