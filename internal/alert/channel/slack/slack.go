// Package slack implements the Slack alert channel: formatted alert
// messages posted to a configured incoming webhook, grounded on the
// Python channel's slack_sdk AsyncWebhookClient usage, adapted to
// slack-go/slack's PostWebhook helper.
package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

var severityColor = map[model.Severity]string{
	model.SeverityLow:      "#36a64f",
	model.SeverityMedium:   "#daa038",
	model.SeverityHigh:     "#d9534f",
	model.SeverityCritical: "#a50000",
}

// Channel posts alerts to a Slack incoming webhook.
type Channel struct {
	webhookURL string
	enabled    bool
}

// New returns a Slack Channel posting to webhookURL.
func New(webhookURL string) *Channel {
	return &Channel{webhookURL: webhookURL, enabled: true}
}

// Name implements channel.Channel.
func (c *Channel) Name() string { return "slack" }

// Enabled implements channel.Channel.
func (c *Channel) Enabled() bool { return c.enabled }

// SetEnabled toggles delivery.
func (c *Channel) SetEnabled(enabled bool) { c.enabled = enabled }

// Send posts alert as a formatted Slack attachment.
func (c *Channel) Send(ctx context.Context, alert model.Alert) (bool, error) {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("VoxSentinel alert: %s on stream %s", alert.AlertType, alert.StreamID),
		Attachments: []slack.Attachment{
			{
				Color: severityColor[alert.Severity],
				Title: fmt.Sprintf("%s match: %s", alert.AlertType, alert.MatchedRule),
				Text:  alert.SurroundingContext,
				Fields: []slack.AttachmentField{
					{Title: "Severity", Value: string(alert.Severity), Short: true},
					{Title: "Stream", Value: alert.StreamID, Short: true},
					{Title: "Speaker", Value: alert.SpeakerLabel, Short: true},
				},
			},
		},
	}

	if err := slack.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return false, fmt.Errorf("slack channel: %w", err)
	}
	return true, nil
}
