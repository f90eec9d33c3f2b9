// Package notify provides Notifier implementations: a structured-log notifier
// for local runs and a webhook notifier with retry for real channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stagecoach-io/stagecoach/internal/logging"
)

// LogNotifier writes notifications to the application log. It is the default
// collaborator when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements ports.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, channel, message, severity string) error {
	level := slog.LevelInfo
	switch severity {
	case "warning":
		level = slog.LevelWarn
	case "critical", "error":
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "notification", "channel", channel, "message", message)
	return nil
}

// WebhookNotifier POSTs notifications as JSON to a single endpoint. Delivery
// retries with exponential backoff; the caller treats the result as
// best-effort either way.
type WebhookNotifier struct {
	url        string
	client     *http.Client
	maxElapsed time.Duration
	logger     *slog.Logger
}

// WebhookOption configures the webhook notifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(n *WebhookNotifier) { n.client = client }
}

// WithMaxElapsed bounds the total retry window.
func WithMaxElapsed(d time.Duration) WebhookOption {
	return func(n *WebhookNotifier) { n.maxElapsed = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) WebhookOption {
	return func(n *WebhookNotifier) { n.logger = logger }
}

// NewWebhookNotifier creates a notifier delivering to url.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxElapsed: 30 * time.Second,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type webhookPayload struct {
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Notify implements ports.Notifier. A 4xx response is not retried, the
// payload will not get better; network errors and 5xx responses are.
func (n *WebhookNotifier) Notify(ctx context.Context, channel, message, severity string) error {
	body, err := json.Marshal(webhookPayload{Channel: channel, Message: message, Severity: severity})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(n.maxElapsed),
	), ctx)

	attempt := 0
	deliver := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("webhook delivery failed", "attempt", attempt, "err", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("webhook rejected notification: %s", resp.Status))
		}
		n.logger.Warn("webhook delivery failed", "attempt", attempt, "status", resp.Status)
		return fmt.Errorf("webhook returned %s", resp.Status)
	}

	if err := backoff.Retry(deliver, policy); err != nil {
		return fmt.Errorf("notification to %q undelivered: %w", channel, err)
	}
	return nil
}
