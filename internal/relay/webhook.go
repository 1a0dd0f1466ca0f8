package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookSink posts notifications to a Discord-compatible webhook. On any
// failure it falls back to logging the match and reports the error; the
// caller treats the item as processed either way.
type WebhookSink struct {
	url      string
	client   HTTPClient
	fallback LogSink
	log      *slog.Logger
}

// NewWebhook creates a WebhookSink for the given webhook URL.
func NewWebhook(url string, log *slog.Logger) *WebhookSink {
	return &WebhookSink{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: LogSink{Log: log},
		log:      log,
	}
}

// NewWebhookWithHTTP creates a WebhookSink with a custom HTTP client
// (useful for testing).
func NewWebhookWithHTTP(url string, hc HTTPClient, log *slog.Logger) *WebhookSink {
	s := NewWebhook(url, log)
	s.client = hc
	return s
}

// Deliver posts the notification. The request is bounded by the client
// timeout; failure is degraded to the log fallback.
func (s *WebhookSink) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(map[string]string{"content": FormatMessage(p)})
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.degrade(ctx, p)
		return fmt.Errorf("webhook post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		s.degrade(ctx, p)
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) degrade(ctx context.Context, p Payload) {
	s.log.Warn("webhook delivery failed, logging match instead", "reddit_id", p.SourceID)
	_ = s.fallback.Deliver(ctx, p)
}
