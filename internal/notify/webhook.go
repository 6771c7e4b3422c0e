package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookSink delivers notifications to a Slack-compatible incoming
// webhook.
type WebhookSink struct {
	webhookURL string
	username   string
	logger     *zap.Logger
	httpClient *http.Client
}

// WebhookMessage represents the webhook payload
type WebhookMessage struct {
	Text        string              `json:"text,omitempty"`
	Username    string              `json:"username,omitempty"`
	IconEmoji   string              `json:"icon_emoji,omitempty"`
	Attachments []WebhookAttachment `json:"attachments,omitempty"`
}

// WebhookAttachment represents a message attachment
type WebhookAttachment struct {
	Color     string `json:"color,omitempty"`
	Text      string `json:"text,omitempty"`
	Footer    string `json:"footer,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// NewWebhookSink creates a webhook-backed notification sink
func NewWebhookSink(webhookURL string, logger *zap.Logger) *WebhookSink {
	return &WebhookSink{
		webhookURL: webhookURL,
		username:   "opswatch",
		logger:     logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether a webhook URL is set
func (s *WebhookSink) Configured() bool {
	return s.webhookURL != ""
}

// Send posts the notification to the webhook. Any failure is logged
// and reported through the return value, never raised.
func (s *WebhookSink) Send(subject, body string, isHTML bool) bool {
	if s.webhookURL == "" {
		return false
	}

	message := WebhookMessage{
		Text:      subject,
		Username:  s.username,
		IconEmoji: ":rotating_light:",
		Attachments: []WebhookAttachment{
			{
				Color:     "danger",
				Text:      body,
				Footer:    "opswatch",
				Timestamp: time.Now().Unix(),
			},
		},
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal webhook message", zap.Error(err))
		return false
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		s.logger.Error("Failed to send webhook notification",
			zap.Error(err),
			zap.String("webhook_url", maskWebhookURL(s.webhookURL)))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("Webhook returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("webhook_url", maskWebhookURL(s.webhookURL)))
		return false
	}

	s.logger.Info("Sent webhook notification",
		zap.String("subject", subject),
		zap.String("webhook_url", maskWebhookURL(s.webhookURL)))

	return true
}

// maskWebhookURL masks the webhook URL for logging
func maskWebhookURL(url string) string {
	if len(url) < 20 {
		return "***"
	}
	return url[:20] + "***"
}
