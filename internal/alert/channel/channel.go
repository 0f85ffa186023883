// Package channel defines the alert delivery transport interface every
// channel implementation satisfies, grounded on the abstract AlertChannel
// base class every Python channel subclasses.
package channel

import (
	"context"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// Channel delivers alerts to one destination (WebSocket, webhook, Slack,
// ...). Send returning false tells the dispatcher to record a "failed"
// delivery status and, if configured, enqueue a retry; a returned error
// records "error" status instead of "failed" and also enqueues a retry.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert model.Alert) (bool, error)
}
