package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink posts a short human-readable message per record to a team chat incoming webhook.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

type webhookMessage struct {
	Text string `json:"text"`
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (ws *WebhookSink) Append(ctx context.Context, record Record) error {
	body, err := json.Marshal(webhookMessage{Text: formatText(record)})
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

func formatText(record Record) string {
	text := fmt.Sprintf("[%s] %s | %q (%s)", record.Timestamp.Format(time.RFC3339), record.Outcome, record.ListingTitle, record.ListingId)
	if record.RetryCount > 0 {
		text += fmt.Sprintf(" | retry %d", record.RetryCount)
	}
	if record.Reason != "" {
		text += " | " + record.Reason
	}
	return text
}
